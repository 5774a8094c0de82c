// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/plz-cms/internal/config"
)

type endpoint struct {
	host string
	port int
}

// services maps well-known provider names to their submission endpoints.
var services = map[string]endpoint{
	"gmail":    {"smtp.gmail.com", 587},
	"outlook":  {"smtp.office365.com", 587},
	"hotmail":  {"smtp.office365.com", 587},
	"yahoo":    {"smtp.mail.yahoo.com", 465},
	"sendgrid": {"smtp.sendgrid.net", 587},
	"mailgun":  {"smtp.mailgun.org", 587},
}

// DefaultTimeout bounds dialing an SMTP server.
const DefaultTimeout = 30 * time.Second

// SMTPTransport sends mail through an SMTP server. Port 465 uses implicit
// TLS; other ports upgrade with STARTTLS when the server offers it.
type SMTPTransport struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	Timeout  time.Duration

	// TLSConfig overrides the TLS client configuration.
	TLSConfig *tls.Config
}

// NewSMTPTransport resolves cfg.Service (or cfg.Host/cfg.Port) into a transport.
// The sender address doubles as the login name.
func NewSMTPTransport(cfg config.MailerConfig) (*SMTPTransport, error) {
	t := &SMTPTransport{
		Host:     cfg.Host,
		Port:     cfg.Port,
		From:     cfg.Address,
		Username: cfg.Address,
		Password: cfg.Password,
		Timeout:  DefaultTimeout,
	}

	if t.Host == "" {
		ep, ok := services[strings.ToLower(strings.TrimSpace(cfg.Service))]
		if !ok {
			return nil, fmt.Errorf("unknown mail service %q", cfg.Service)
		}
		t.Host = ep.host
		if t.Port == 0 {
			t.Port = ep.port
		}
	}
	if t.Port == 0 {
		t.Port = 587
	}
	return t, nil
}

// Addr returns host:port.
func (t *SMTPTransport) Addr() string {
	return net.JoinHostPort(t.Host, fmt.Sprint(t.Port))
}

// SendMail implements Mailer.
func (t *SMTPTransport) SendMail(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, t.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if !t.implicitTLS() {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(t.tlsConfig()); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if t.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", t.Username, t.Password, t.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(t.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(t.compose(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

func (t *SMTPTransport) implicitTLS() bool {
	return t.Port == 465
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	if t.TLSConfig != nil {
		return t.TLSConfig
	}
	return &tls.Config{ServerName: t.Host, MinVersion: tls.VersionTLS12}
}

func (t *SMTPTransport) dial(ctx context.Context) (net.Conn, error) {
	nd := &net.Dialer{Timeout: t.Timeout}
	if t.implicitTLS() {
		conn, err := (&tls.Dialer{NetDialer: nd, Config: t.tlsConfig()}).DialContext(ctx, "tcp", t.Addr())
		if err != nil {
			return nil, fmt.Errorf("dial tls: %w", err)
		}
		return conn, nil
	}
	conn, err := nd.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

// compose renders msg as an RFC 5322 message, multipart when both bodies are set.
func (t *SMTPTransport) compose(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", t.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		boundary := "plz-" + uuid.NewString()
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)
		fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.TextBody)
		fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTMLBody)
		fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	case msg.HTMLBody != "":
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
	default:
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.TextBody)
	}
	return buf.Bytes()
}
