package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailpipe/mailpipe/config"
	"github.com/mailpipe/mailpipe/filter"
	"github.com/mailpipe/mailpipe/message"
	"github.com/mailpipe/mailpipe/pipe"
	"github.com/mailpipe/mailpipe/rules"
)

func main() {
	// A broken invocation must not lose mail: anything short of a clean
	// run asks the MTA to requeue.
	exitCode := filter.ExitTempFail

	rootCmd := &cobra.Command{
		Use:   "mailpipe",
		Short: "Filter a mail message from stdin into a mailbox",
		Long: `mailpipe reads one message from stdin, applies regex rules to its
header and body, and either delivers it to the configured mailboxes,
bounces it to the sender, drops it, or pipes it through an external
transform first. Exit status follows the MDA convention: 0 delivered,
75 temporary failure (requeue), 100 rejected (bounce).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			exitCode = run(cfg, logger)
			return nil
		},
	}
	config.RegisterFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(filter.ExitTempFail)
	}
	os.Exit(exitCode)
}

func run(cfg config.Config, logger *slog.Logger) int {
	ruleSet, err := rules.New(rules.Options{
		RejectHeader:  cfg.RejectHeader,
		RejectBody:    cfg.RejectBody,
		DiscardHeader: cfg.DiscardHeader,
		DiscardBody:   cfg.DiscardBody,
	})
	if err != nil {
		logger.Error("invalid rules", "err", err)
		return filter.ExitTempFail
	}

	session, err := filter.New(filter.Options{
		Emergency: cfg.Emergency,
		NoExit:    true,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("read message", "err", err)
		return filter.ExitTempFail
	}
	defer session.Close()

	msg := session.Message()
	action := ruleSet.Evaluate(msg.HeaderBytes(), msg.Body())
	logger.Debug("rules evaluated", "action", action.String(), "from", msg.From(), "subject", msg.Subject())

	switch action {
	case rules.ActionReject:
		err := session.Reject(cfg.RejectReason)
		var rejected *filter.RejectError
		if errors.As(err, &rejected) && rejected.Reason != "" {
			fmt.Fprintln(os.Stderr, rejected.Reason)
		}
		return filter.ExitCode(err)

	case rules.ActionDiscard:
		logger.Info("message discarded", "from", msg.From(), "subject", msg.Subject())
		return filter.ExitCode(session.Ignore())
	}

	applyTransform(session, pipe.NewRunner(), cfg.PipeCommand, logger)

	return filter.ExitCode(session.Accept(cfg.DeliverTo...))
}

// applyTransform pipes the message through the configured command and
// replaces the session message with the output. It deliberately does not
// use Session.Pipe: Pipe is a terminal action that finalizes the session
// on success, which would mask a later delivery failure. A failing
// transform leaves the original message in place so the delivery outcome
// alone decides the exit status.
func applyTransform(session *filter.Session, runner pipe.Runner, command []string, logger *slog.Logger) {
	if len(command) == 0 {
		return
	}

	out, err := runner.Run(command[0], command[1:], session.Message().Bytes())
	if err != nil {
		logger.Warn("transform failed, delivering original message", "command", command[0], "err", err)
		return
	}
	session.SetMessage(message.Parse(out))
}

func setupLogger(logLevel string) *slog.Logger {
	level := new(slog.LevelVar)
	switch logLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelWarn)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
