package delivery

import (
	"context"
	"strings"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/scanbill-go/model"
)

var ErrInvalidAddress = xerrors.New("delivery: invalid e-mail address")

// IService delivers a bill receipt to a customer.
type IService interface {
	Send(ctx context.Context, address string, bill model.Bill) error
}

// ValidateAddress accepts addresses with one "@" followed by a domain that
// contains a dot separator with text on both sides.
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at <= 0 || strings.Count(address, "@") != 1 || strings.ContainsAny(address, " \t\r\n") {
		return ErrInvalidAddress
	}

	domain := address[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return ErrInvalidAddress
	}
	return nil
}
