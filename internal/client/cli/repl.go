package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bloodlink/internal/models"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

const helpText = `Available commands:
  request <id>                 start working on a blood request
  prescription <file>          select the signed prescription photo
  bag <file>                   select the blood bag tag photo
  select <prescription> <bag>  select both photos at once
  submit                       upload both photos and wait for approval
  status                       show the review status
  approve [note]               mark the verification approved (admin)
  reject [note]                mark the verification rejected (admin)
  history                      list submit attempts and review history
  exit | quit                  leave the program`

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Request(ctx context.Context, args []string) error
	SelectProof(ctx context.Context, kind models.ProofKind, args []string) error
	SelectBoth(ctx context.Context, args []string) error
	Submit(ctx context.Context) error
	Status(ctx context.Context) error
	Review(ctx context.Context, status models.VerificationStatus, args []string) error
	History(ctx context.Context) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF,
// "exit" or "quit". The prompt shows statusFn().
//
// Command errors are reported by the handlers themselves; the loop keeps
// going so a failed upload or a typo never ends the session.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("bloodlink %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "request":
			_ = a.Request(ctx, args)

		case "prescription":
			_ = a.SelectProof(ctx, models.ProofPrescription, args)

		case "bag":
			_ = a.SelectProof(ctx, models.ProofBloodBag, args)

		case "select":
			_ = a.SelectBoth(ctx, args)

		case "submit":
			_ = a.Submit(ctx)

		case "status":
			_ = a.Status(ctx)

		case "approve":
			_ = a.Review(ctx, models.StatusApproved, args)

		case "reject":
			_ = a.Review(ctx, models.StatusRejected, args)

		case "history":
			_ = a.History(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
