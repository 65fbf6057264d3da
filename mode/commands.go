package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/khaledhikmat/scanbill-go/billing"
	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/pipeline"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
	"github.com/khaledhikmat/scanbill-go/service/presenter"
)

const usage = "cart | qty <line> <n> | rm <line> | bill | send <email> | stop | start | stats | help | quit"

type command struct {
	verb    string
	ref     string
	qty     int
	address string
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "cart", "ls":
		return command{verb: "cart"}, nil
	case "bill", "stop", "start", "stats", "help":
		return command{verb: verb}, nil
	case "quit", "exit", "q":
		return command{verb: "quit"}, nil
	case "qty":
		if len(args) != 2 {
			return command{}, fmt.Errorf("usage: qty <line> <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("invalid quantity %q", args[1])
		}
		return command{verb: verb, ref: args[0], qty: n}, nil
	case "rm":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: rm <line>")
		}
		return command{verb: verb, ref: args[0]}, nil
	case "send":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: send <email>")
		}
		return command{verb: verb, address: args[0]}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// resolveLine maps a 1-based cart position to a line id. Anything else is
// taken as an id.
func resolveLine(lines []model.CartLine, ref string) string {
	if i, err := strconv.Atoi(ref); err == nil && i >= 1 && i <= len(lines) {
		return lines[i-1].ID
	}
	return ref
}

// handleCommand executes one cashier input line. It reports whether the
// session should end.
func handleCommand(ctx context.Context, scanner *pipeline.Scanner, presenterSvc presenter.IService, line string) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		lgr.Logger.Warn("invalid command", slog.String("command", line), slog.Any("error", err))
		return false
	}

	switch cmd.verb {
	case "":
	case "quit":
		return true
	case "help":
		lgr.Logger.Info("commands", slog.String("usage", usage))
	case "cart":
		presenterSvc.Cart(scanner.Snapshot())
	case "qty":
		err = scanner.SetQuantity(ctx, resolveLine(scanner.Snapshot(), cmd.ref), cmd.qty)
	case "rm":
		err = scanner.Remove(ctx, resolveLine(scanner.Snapshot(), cmd.ref))
	case "bill":
		_, err = scanner.GenerateBill(ctx)
	case "send":
		err = scanner.SendBill(ctx, cmd.address)
	case "stop":
		err = scanner.StopCapture(ctx)
	case "start":
		err = scanner.StartCapture(ctx)
	case "stats":
		var stats model.ScannerStats
		stats, err = scanner.Stats(ctx)
		if err == nil {
			lgr.Logger.Info("scanner stats", slog.Any("stats", stats))
		}
	}

	if errors.Is(err, billing.ErrEmptyCart) {
		lgr.Logger.Info("cart is empty, nothing to bill")
		return false
	}
	if err != nil {
		lgr.Logger.Warn("command failed", slog.String("command", line), slog.Any("error", err))
	}
	return false
}
