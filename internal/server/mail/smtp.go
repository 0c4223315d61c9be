package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

// SMTPMailer submits mail to a relay over STARTTLS. Relays without
// STARTTLS are refused unless they are on a loopback address or plaintext
// was allowed explicitly.
type SMTPMailer struct {
	host     string
	addr     string
	username string
	password string
	from     string

	allowPlaintext bool

	tlsConfig *tls.Config
	dialer    *net.Dialer
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:      host,
		addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		username:  username,
		password:  password,
		from:      from,
		tlsConfig: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		dialer:    &net.Dialer{Timeout: 10 * time.Second},
	}
}

// AllowPlaintext lets Send continue without STARTTLS on any relay.
func (m *SMTPMailer) AllowPlaintext(allow bool) *SMTPMailer {
	m.allowPlaintext = allow
	return m
}

func (m *SMTPMailer) requiresTLS() bool {
	if m.allowPlaintext || strings.EqualFold(m.host, "localhost") {
		return false
	}
	ip := net.ParseIP(m.host)
	return ip == nil || !ip.IsLoopback()
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	conn, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return oops.Code("SMTP_DIAL_FAILED").With("addr", m.addr).Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return oops.Code("SMTP_HANDSHAKE_FAILED").With("addr", m.addr).Wrap(err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(m.tlsConfig); err != nil {
			return oops.Code("SMTP_STARTTLS_FAILED").Wrap(err)
		}
	} else if m.requiresTLS() {
		return oops.Code("SMTP_STARTTLS_FAILED").With("addr", m.addr).Errorf("server does not offer STARTTLS")
	}
	if m.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
				return oops.Code("SMTP_AUTH_FAILED").Wrap(err)
			}
		}
	}

	if err := c.Mail(m.from); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "MAIL").Wrap(err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "RCPT").Wrap(err)
	}
	w, err := c.Data()
	if err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "DATA").Wrap(err)
	}
	if _, err := w.Write(m.render(msg)); err != nil {
		_ = w.Close()
		return oops.Code("SMTP_SEND_FAILED").With("stage", "DATA").Wrap(err)
	}
	if err := w.Close(); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("stage", "DATA").Wrap(err)
	}
	return c.Quit()
}

// render produces the RFC 5322 message with CRLF line endings.
func (m *SMTPMailer) render(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.Write(bytes.ReplaceAll([]byte(msg.Body), []byte("\n"), []byte("\r\n")))
	return b.Bytes()
}
