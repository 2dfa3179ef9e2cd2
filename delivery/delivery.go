// Package delivery appends serialized messages to local mailbox targets.
// Three target kinds are supported: mbox files, maildirs (a trailing
// slash or an existing directory) and imap://-style URLs.
package delivery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-maildir"
	mboxlib "github.com/emersion/go-mbox"

	"github.com/mailpipe/mailpipe/message"
)

// ErrNoMailbox reports that no usable mailbox target could be resolved.
var ErrNoMailbox = errors.New("no usable mailbox target")

// Agent appends a serialized message to one or more mailbox targets.
// With an empty target list the default-mailbox policy applies: $MAIL,
// then the system spool for the current user, then ~/Maildir, tried in
// that order until one succeeds.
type Agent interface {
	Deliver(raw []byte, targets []string) error
}

type localAgent struct {
	logger *slog.Logger
}

// NewAgent returns the local delivery agent. logger may be nil.
func NewAgent(logger *slog.Logger) Agent {
	return &localAgent{logger: logger}
}

// Deliver writes raw to every target. Explicit targets succeed as a
// group when at least one of them took the message; per-target failures
// are joined into the returned error otherwise.
func (a *localAgent) Deliver(raw []byte, targets []string) error {
	if len(targets) == 0 {
		return a.deliverDefault(raw)
	}

	var delivered int
	var errs []error
	for _, target := range targets {
		if err := a.deliverOne(raw, target); err != nil {
			errs = append(errs, fmt.Errorf("deliver to %s: %w", target, err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errors.Join(errs...)
	}
	if len(errs) > 0 && a.logger != nil {
		a.logger.Warn("partial delivery", "delivered", delivered, "failed", len(errs), "err", errors.Join(errs...))
	}
	return nil
}

func (a *localAgent) deliverDefault(raw []byte) error {
	candidates := DefaultTargets()
	if len(candidates) == 0 {
		return ErrNoMailbox
	}

	var errs []error
	for _, target := range candidates {
		if err := a.deliverOne(raw, target); err != nil {
			errs = append(errs, fmt.Errorf("deliver to %s: %w", target, err))
			continue
		}
		if a.logger != nil {
			a.logger.Debug("delivered to default mailbox", "target", target)
		}
		return nil
	}
	return errors.Join(errs...)
}

// DefaultTargets lists the conventional local mailboxes for the current
// user, in the order they should be tried.
func DefaultTargets() []string {
	var targets []string
	if env := os.Getenv("MAIL"); env != "" {
		targets = append(targets, env)
	}
	if name := currentUsername(); name != "" {
		targets = append(targets,
			filepath.Join("/var/spool/mail", name),
			filepath.Join("/var/mail", name),
		)
	}
	if home, err := os.UserHomeDir(); err == nil {
		targets = append(targets, home+"/Maildir/")
	}
	return targets
}

func (a *localAgent) deliverOne(raw []byte, target string) error {
	if strings.HasPrefix(target, "imap://") || strings.HasPrefix(target, "imaps://") {
		return a.deliverIMAP(raw, target)
	}

	path, err := expandTilde(target)
	if err != nil {
		return err
	}
	if isMaildir(path) {
		return deliverMaildir(raw, path)
	}
	return deliverMbox(raw, path)
}

// isMaildir treats a trailing slash or an existing directory as a maildir
// target; everything else is an mbox file.
func isMaildir(path string) bool {
	if strings.HasSuffix(path, "/") {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func deliverMbox(raw []byte, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create mailbox directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	w := mboxlib.NewWriter(file)
	mw, err := w.CreateMessage(envelopeSender(raw), time.Now())
	if err != nil {
		return fmt.Errorf("mbox separator: %w", err)
	}
	if _, err := mw.Write(raw); err != nil {
		return fmt.Errorf("mbox write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mbox flush: %w", err)
	}
	return nil
}

func deliverMaildir(raw []byte, path string) error {
	dir := maildir.Dir(strings.TrimSuffix(path, "/"))
	if err := dir.Init(); err != nil {
		return fmt.Errorf("init maildir: %w", err)
	}

	del, err := maildir.NewDelivery(string(dir))
	if err != nil {
		return fmt.Errorf("open maildir delivery: %w", err)
	}
	if _, err := del.Write(raw); err != nil {
		_ = del.Abort()
		return fmt.Errorf("maildir write: %w", err)
	}
	if err := del.Close(); err != nil {
		return fmt.Errorf("maildir close: %w", err)
	}
	return nil
}

// envelopeSender derives the "From " separator address for mbox writes.
func envelopeSender(raw []byte) string {
	sender := message.Parse(raw).Header("Return-Path")
	sender = strings.Trim(strings.TrimSpace(sender), "<>")
	if sender == "" {
		return "MAILER-DAEMON"
	}
	return sender
}

// expandTilde resolves the ~ and ~user path prefixes.
func expandTilde(target string) (string, error) {
	if !strings.HasPrefix(target, "~") {
		return target, nil
	}

	rest := target[1:]
	name := rest
	var suffix string
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		name, suffix = rest[:i], rest[i:]
	}

	if name == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home + suffix, nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		return "", fmt.Errorf("resolve ~%s: %w", name, err)
	}
	return u.HomeDir + suffix, nil
}

func currentUsername() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
