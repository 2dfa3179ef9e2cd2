// Package filter implements the delivery-decision core of a mail filter.
// A Session wraps one incoming message and routes it through exactly one
// terminal action: accept into a mailbox, reject back to the sender,
// pipe through an external program, or ignore. A fail-safe recovery
// cascade guarantees the message is never silently lost, even when a
// delivery attempt fails or the session is abandoned mid-flight.
package filter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mailpipe/mailpipe/delivery"
	"github.com/mailpipe/mailpipe/message"
	"github.com/mailpipe/mailpipe/pipe"
)

// Options configures a Session. The zero value reads the message from
// stdin and terminates the process on terminal actions, which is what an
// MTA-invoked filter wants.
type Options struct {
	// Data is the raw message. When nil the message is read from stdin.
	Data []byte

	// Emergency names a fallback mailbox used only by the recovery
	// cascade. Empty means no fallback.
	Emergency string

	// NoExit keeps terminal actions from terminating the process; they
	// return control to the caller instead.
	NoExit bool

	// Hooks receives the session at the named extension points. Optional.
	Hooks *Registry

	// Logger receives recovery warnings. Defaults to slog.Default.
	Logger *slog.Logger

	// Deliverer overrides the local mailbox agent. Optional.
	Deliverer delivery.Agent

	// Runner overrides the external-program runner. Optional.
	Runner pipe.Runner
}

// Session holds one in-progress message and its terminal-state flags.
// Sessions are single-use and not safe for concurrent access; hook
// callables run inline and may call back into the session, which is a
// documented hazard rather than a guarantee.
type Session struct {
	msg   *message.Message
	hooks *Registry

	emergency string
	noExit    bool

	delivered      bool
	gaveUp         bool
	emergencyTried bool

	deliverer delivery.Agent
	runner    pipe.Runner
	logger    *slog.Logger
	exit      func(int)
}

// New builds a Session from opts, strips a single leading mbox "From "
// envelope line, parses the message, and invokes the new hook. The only
// error path is failing to read stdin; malformed input still produces a
// best-effort message.
func New(opts Options) (*Session, error) {
	data := opts.Data
	if data == nil {
		var err error
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read message from stdin: %w", err)
		}
	}

	hooks := opts.Hooks
	if hooks == nil {
		hooks = NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deliverer := opts.Deliverer
	if deliverer == nil {
		deliverer = delivery.NewAgent(logger)
	}
	runner := opts.Runner
	if runner == nil {
		runner = pipe.NewRunner()
	}

	s := &Session{
		msg:       message.Parse(stripEnvelope(data)),
		hooks:     hooks,
		emergency: opts.Emergency,
		noExit:    opts.NoExit,
		deliverer: deliverer,
		runner:    runner,
		logger:    logger,
		exit:      os.Exit,
	}
	s.hooks.Invoke(HookNew, s)
	return s, nil
}

// stripEnvelope removes a single leading mbox "From " separator line.
// Only the very first line is considered; body lines starting with
// "From " are left alone.
func stripEnvelope(data []byte) []byte {
	if !bytes.HasPrefix(data, []byte("From ")) {
		return data
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[i+1:]
	}
	return nil
}

// Message returns the current message.
func (s *Session) Message() *message.Message {
	return s.msg
}

// SetMessage replaces the session's message wholesale, typically with the
// output of a Pipe transform.
func (s *Session) SetMessage(m *message.Message) {
	if m != nil {
		s.msg = m
	}
}

// Delivered reports whether a terminal action has definitively succeeded.
func (s *Session) Delivered() bool { return s.delivered }

// GaveUp reports whether the recovery cascade exhausted all options.
func (s *Session) GaveUp() bool { return s.gaveUp }

// Accept delivers the message to the given mailbox targets, or to the
// platform default mailbox when none are given. A failed delivery never
// surfaces directly: it runs the recovery cascade instead. When the exit
// policy terminates the process, Accept exits with status 0 on success
// and 75 once the cascade is exhausted.
func (s *Session) Accept(targets ...string) error {
	s.hooks.Invoke(HookBeforeAccept, s)

	if err := s.deliverer.Deliver(s.msg.Bytes(), targets); err != nil {
		return s.failGracefully(err)
	}

	s.hooks.Invoke(HookAfterAccept, s)
	return s.finalizeSuccess()
}

// Reject marks the message as definitively handled and returns a
// *RejectError carrying the bounce reason. The caller surfaces it to the
// MTA as exit status 100 (see ExitCode). The exit policy has no effect
// here: Reject always returns, and the recovery cascade never runs for a
// rejected message.
func (s *Session) Reject(reason string) error {
	s.hooks.Invoke(HookReject, s)
	s.delivered = true
	return &RejectError{Reason: reason}
}

// Ignore drops the message on purpose: the session finalizes as handled
// without contacting any mailbox or program.
func (s *Session) Ignore() error {
	s.hooks.Invoke(HookIgnore, s)
	return s.finalizeSuccess()
}

// Pipe feeds the message to an external program and returns the
// program's output, which lets a caller chain transforms by replacing
// the session message. A program that fails to launch counts the same as
// one exiting non-zero. On failure the recovery cascade runs only when
// the exit policy terminates the process; under NoExit a pipe failure is
// silent and the session stays non-terminal.
func (s *Session) Pipe(program string, args ...string) []byte {
	s.hooks.Invoke(HookPipe, s)

	out, err := s.runner.Run(program, args, s.msg.Bytes())
	if err != nil {
		if s.noExit {
			return nil
		}
		_ = s.failGracefully(fmt.Errorf("pipe through %s: %w", program, err))
		return nil
	}

	_ = s.finalizeSuccess()
	return out
}

// Close finalizes an abandoned session: if no terminal action has run,
// the recovery cascade is invoked so the message is not silently lost.
// Defer it right after New. Close is idempotent once the session reached
// a terminal state.
func (s *Session) Close() error {
	if s.delivered || s.gaveUp {
		return nil
	}
	return s.failGracefully(errors.New("session abandoned without a terminal action"))
}

// failGracefully is the recovery cascade: one attempt at the emergency
// mailbox, then give up. The guard flags make it idempotent, and the
// tried-once flag stops the cascade from recursing when the emergency
// delivery itself fails.
func (s *Session) failGracefully(cause error) error {
	if s.delivered || s.gaveUp {
		return nil
	}
	if s.emergency != "" && !s.emergencyTried {
		s.emergencyTried = true
		return s.Accept(s.emergency)
	}
	return s.failBadly(cause)
}

// failBadly records that every option is exhausted and hands the message
// back to the MTA, either as a temp-fail exit or as ErrGaveUp.
func (s *Session) failBadly(cause error) error {
	s.gaveUp = true
	if !s.noExit {
		s.logger.Error("message could not be delivered, requesting requeue", "err", cause)
		s.exit(ExitTempFail)
		return nil
	}
	s.logger.Warn("message was never properly handled", "err", cause)
	return fmt.Errorf("%w: %v", ErrGaveUp, cause)
}

func (s *Session) finalizeSuccess() error {
	s.delivered = true
	if !s.noExit {
		s.exit(ExitDelivered)
	}
	return nil
}
