// Package mailbox connects mailrules to an IMAP mailbox.
//
// Source fetches messages into Records for the record store; Mutator
// implements the rule engine's mutation interface on top of IMAP folders
// and the \Seen flag. Both share one authenticated Session.
package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
	"github.com/solatis/mailrules/internal/core/config"
)

// Session is an authenticated IMAP connection. Commands are serialized.
type Session struct {
	c   *client.Client
	log zerolog.Logger

	mu       sync.Mutex
	selected string
	readOnly bool
}

// Dial connects and logs in using cfg.
func Dial(ctx context.Context, cfg config.IMAPConfig, log zerolog.Logger) (*Session, error) {
	if err := config.ValidateIMAP(cfg); err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	tlsConfig := &tls.Config{ServerName: cfg.Host}
	addr := cfg.Address()

	var (
		c   *client.Client
		err error
	)
	switch cfg.Security {
	case config.SecurityTLS:
		c, err = client.DialWithDialerTLS(dialer, addr, tlsConfig)
	case config.SecurityStartTLS:
		c, err = client.DialWithDialer(dialer, addr)
		if err == nil {
			if err = c.StartTLS(tlsConfig); err != nil {
				c.Logout()
			}
		}
	default:
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
	}
	c.Timeout = cfg.Timeout

	s := &Session{c: c, log: log.With().Str("imap", addr).Logger()}
	if err := s.do(ctx, func() error { return c.Login(cfg.Username, cfg.Password) }); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	s.log.Debug().Str("user", cfg.Username).Msg("imap session established")
	return s, nil
}

// Close logs out and closes the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Logout()
}

// do runs one blocking client command. A cancelled ctx terminates the
// connection, which makes the pending command return.
func (s *Session) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.c.Terminate()
		<-done
		return ctx.Err()
	}
}

// selectMailbox selects name unless it is already selected in a compatible
// mode. A read-write selection serves read-only callers too.
// Caller must hold s.mu.
func (s *Session) selectMailbox(ctx context.Context, name string, readOnly bool) (*imap.MailboxStatus, error) {
	if s.selected == name && (readOnly || !s.readOnly) && s.c.Mailbox() != nil {
		return s.c.Mailbox(), nil
	}

	var status *imap.MailboxStatus
	err := s.do(ctx, func() error {
		var err error
		status, err = s.c.Select(name, readOnly)
		return err
	})
	if err != nil {
		s.selected = ""
		return nil, fmt.Errorf("failed to select mailbox %s: %w", name, err)
	}
	s.selected, s.readOnly = name, readOnly
	return status, nil
}
