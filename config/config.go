package config

import (
	"strings"

	"github.com/spf13/cobra"
)

// Config captures all command-line options of the filter binary.
type Config struct {
	DeliverTo     []string
	Emergency     string
	RejectHeader  []string
	RejectBody    []string
	RejectReason  string
	DiscardHeader []string
	DiscardBody   []string
	PipeCommand   []string
	LogLevel      string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArray("deliver-to", nil, "Mailbox target: an mbox path, a maildir (trailing slash), or an imap[s]:// URL; repeatable, defaults to the system mailbox")
	flags.String("emergency", "", "Fallback mailbox used when every delivery attempt fails")
	flags.StringArray("reject-header", nil, "Regex bouncing the message when it matches the header")
	flags.StringArray("reject-body", nil, "Regex bouncing the message when it matches the body")
	flags.String("reject-reason", "message refused by filter", "Reason attached to bounced messages")
	flags.StringArray("discard-header", nil, "Regex silently dropping the message when it matches the header")
	flags.StringArray("discard-body", nil, "Regex silently dropping the message when it matches the body")
	flags.String("pipe", "", "External program the message is piped through before delivery; its output replaces the message")
	flags.StringArray("pipe-arg", nil, "Argument passed to the --pipe program; repeatable, order preserved")
	flags.String("log-level", "warn", "Logging level: debug, info, warn, error")
}

// LoadConfig converts the parsed Cobra flags into a Config struct.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	deliverTo, err := flags.GetStringArray("deliver-to")
	if err != nil {
		return Config{}, err
	}
	emergency, err := flags.GetString("emergency")
	if err != nil {
		return Config{}, err
	}
	rejectHeader, err := flags.GetStringArray("reject-header")
	if err != nil {
		return Config{}, err
	}
	rejectBody, err := flags.GetStringArray("reject-body")
	if err != nil {
		return Config{}, err
	}
	rejectReason, err := flags.GetString("reject-reason")
	if err != nil {
		return Config{}, err
	}
	discardHeader, err := flags.GetStringArray("discard-header")
	if err != nil {
		return Config{}, err
	}
	discardBody, err := flags.GetStringArray("discard-body")
	if err != nil {
		return Config{}, err
	}
	pipeProgram, err := flags.GetString("pipe")
	if err != nil {
		return Config{}, err
	}
	pipeArgs, err := flags.GetStringArray("pipe-arg")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	return Config{
		DeliverTo:     deliverTo,
		Emergency:     emergency,
		RejectHeader:  rejectHeader,
		RejectBody:    rejectBody,
		RejectReason:  rejectReason,
		DiscardHeader: discardHeader,
		DiscardBody:   discardBody,
		PipeCommand:   pipeCommand(pipeProgram, pipeArgs),
		LogLevel:      logLevel,
	}, nil
}

// pipeCommand assembles the transform invocation. Arguments are taken
// verbatim from repeated --pipe-arg flags, so spaces and shell metachars
// need no quoting gymnastics.
func pipeCommand(program string, args []string) []string {
	if program == "" {
		return nil
	}
	return append([]string{program}, args...)
}
