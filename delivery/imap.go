package delivery

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// imapTarget is a parsed imap:// or imaps:// mailbox URL.
type imapTarget struct {
	address  string
	username string
	password string
	folder   string
	useTLS   bool
}

func parseIMAPTarget(target string) (imapTarget, error) {
	u, err := url.Parse(target)
	if err != nil {
		return imapTarget{}, fmt.Errorf("parse imap target: %w", err)
	}
	if u.Scheme != "imap" && u.Scheme != "imaps" {
		return imapTarget{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return imapTarget{}, fmt.Errorf("imap target %q has no host", target)
	}

	useTLS := u.Scheme == "imaps"
	port := u.Port()
	if port == "" {
		if useTLS {
			port = "993"
		} else {
			port = "143"
		}
	}

	folder := strings.TrimPrefix(u.Path, "/")
	if folder == "" {
		folder = "INBOX"
	}

	password, _ := u.User.Password()
	return imapTarget{
		address:  net.JoinHostPort(u.Hostname(), port),
		username: u.User.Username(),
		password: password,
		folder:   folder,
		useTLS:   useTLS,
	}, nil
}

func (a *localAgent) deliverIMAP(raw []byte, target string) error {
	t, err := parseIMAPTarget(target)
	if err != nil {
		return err
	}

	client, err := a.dialIMAP(t)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Logout().Wait(); err != nil && a.logger != nil {
			a.logger.Debug("imap logout failed", "err", err)
		}
		_ = client.Close()
	}()

	if err := ensureMailbox(client, t.folder); err != nil {
		return err
	}
	return appendMessage(client, t.folder, raw)
}

func (a *localAgent) dialIMAP(t imapTarget) (*imapclient.Client, error) {
	options := &imapclient.Options{}

	var (
		client *imapclient.Client
		err    error
	)
	if t.useTLS {
		host, _, _ := net.SplitHostPort(t.address)
		options.TLSConfig = &tls.Config{ServerName: host}
		client, err = imapclient.DialTLS(t.address, options)
	} else {
		client, err = imapclient.DialInsecure(t.address, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", t.address, err)
	}

	if err := client.Login(t.username, t.password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if a.logger != nil {
		a.logger.Debug("imap connection established", "address", t.address, "user", t.username, "folder", t.folder, "tls", t.useTLS)
	}
	return client, nil
}

func ensureMailbox(client *imapclient.Client, folder string) error {
	if err := client.Create(folder, nil).Wait(); err != nil {
		var respErr *imapv2.Error
		if errors.As(err, &respErr) && respErr.Code == imapv2.ResponseCodeAlreadyExists {
			return nil
		}
		return fmt.Errorf("ensure mailbox %s: %w", folder, err)
	}
	return nil
}

func appendMessage(client *imapclient.Client, folder string, raw []byte) error {
	cmd := client.Append(folder, int64(len(raw)), nil)

	remaining := raw
	for len(remaining) > 0 {
		n, err := cmd.Write(remaining)
		if err != nil {
			_ = cmd.Close()
			return fmt.Errorf("append write: %w", err)
		}
		if n == 0 {
			_ = cmd.Close()
			return fmt.Errorf("append write: wrote 0 bytes")
		}
		remaining = remaining[n:]
	}

	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append wait: %w", err)
	}
	return nil
}
