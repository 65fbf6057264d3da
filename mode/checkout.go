package mode

import (
	"bufio"
	"context"
	"io"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/pipeline"
	"github.com/khaledhikmat/scanbill-go/service/presenter"
)

// Checkout runs a live lane driven by cashier commands read from input, one
// per line. Closing input does not end the session; cancel the context or
// send "quit".
func Checkout(canxCtx context.Context,
	svcs pipeline.ServicesFactory,
	source model.Source,
	presenterSvc presenter.IService,
	input io.Reader) error {
	commands := make(chan string)
	go readCommands(canxCtx, input, commands)

	return runSession(canxCtx, svcs, source, presenterSvc, commands)
}

func readCommands(canxCtx context.Context, input io.Reader, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-canxCtx.Done():
			return
		}
	}
}
