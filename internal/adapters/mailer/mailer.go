// Package mailer dispatches brief-submission and follow-up notifications by
// SMTP. This is the one ambient concern in the whole module built on the
// standard library rather than a third-party client: no mail library
// appears anywhere in the retrieved pack, and the spec's explicit low-level
// connect/greeting timeouts map directly onto net/smtp's dial-then-command
// shape without needing anything beyond it.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// Config carries the SMTP connection parameters.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	RecipientEmail string
	Timeout        time.Duration
}

// Mailer sends plain-text/HTML email over SMTP with explicit dial timeouts.
type Mailer struct {
	cfg Config
}

// New constructs a Mailer. A zero Timeout defaults to 12 seconds, within the
// spec's ~10-15s window.
func New(cfg Config) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	return &Mailer{cfg: cfg}
}

// dialIPv4Preferred resolves host and dials the first IPv4 address it finds,
// falling back to whatever the system resolver returns otherwise. Many SMTP
// relays are flaky over IPv6 from containerized hosts; preferring IPv4
// avoids a silent multi-second delay on the first connection attempt.
func dialIPv4Preferred(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{Timeout: timeout}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err == nil {
		for _, ip := range ips {
			if ip.IP.To4() != nil {
				return dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.IP.String(), port))
			}
		}
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

// Send delivers one email to the fixed recipient configured for operator
// notifications (brief submissions pending approval). It never returns a
// retry directive: per spec §7, an SMTP failure on submit surfaces as a 5xx
// to the caller, since the brief is already persisted and a client retry
// producing a duplicate submission is acceptable.
func (m *Mailer) Send(ctx context.Context, subject, htmlBody string) error {
	return m.SendTo(ctx, m.cfg.RecipientEmail, subject, htmlBody)
}

// SendTo delivers one email to an explicit recipient, used for the venue
// contact's follow-up check-in/refresh emails (the operator notification
// path always goes through Send to the fixed recipient instead).
func (m *Mailer) SendTo(ctx context.Context, to, subject, htmlBody string) error {
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))

	conn, err := dialIPv4Preferred(ctx, addr, m.cfg.Timeout)
	if err != nil {
		return errs.NewExternal("mailer.Send", "smtp", "failed to connect", err)
	}
	conn.SetDeadline(time.Now().Add(m.cfg.Timeout))

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return errs.NewExternal("mailer.Send", "smtp", "failed to establish protocol session", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: m.cfg.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return errs.NewExternal("mailer.Send", "smtp", "STARTTLS failed", err)
		}
	}

	if m.cfg.User != "" {
		auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return errs.NewExternal("mailer.Send", "smtp", "authentication failed", err)
		}
	}

	from := m.cfg.User
	if err := client.Mail(from); err != nil {
		return errs.NewExternal("mailer.Send", "smtp", "MAIL FROM rejected", err)
	}
	if err := client.Rcpt(to); err != nil {
		return errs.NewExternal("mailer.Send", "smtp", "RCPT TO rejected", err)
	}

	wc, err := client.Data()
	if err != nil {
		return errs.NewExternal("mailer.Send", "smtp", "DATA command rejected", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	if _, err := wc.Write([]byte(msg.String())); err != nil {
		wc.Close()
		return errs.NewExternal("mailer.Send", "smtp", "failed to write message body", err)
	}
	if err := wc.Close(); err != nil {
		return errs.NewExternal("mailer.Send", "smtp", "failed to finalize message", err)
	}

	return client.Quit()
}
