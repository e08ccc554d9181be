// Package mailer sends transactional email over SMTP. It implements the
// common.EmailSender interface used by the worker.
package mailer

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Pass     string
	From     string
	FromName string
	StartTLS bool
}

// SMTP sends mail through a single SMTP server. Safe for concurrent use; each
// Send opens its own connection.
type SMTP struct {
	cfg         Config
	dialTimeout time.Duration
}

// New constructs an SMTP sender.
func New(cfg Config) *SMTP {
	return &SMTP{cfg: cfg, dialTimeout: 10 * time.Second}
}

// Send delivers a single HTML email.
func (m *SMTP) Send(to, subject, html string) error {
	raw, err := buildMessage(m.cfg.From, m.cfg.FromName, to, subject, html)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, m.dialTimeout)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if m.cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server %s does not support STARTTLS", m.cfg.Host)
		}
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if m.cfg.User != "" && m.cfg.Pass != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return nil
}

func buildMessage(from, fromName, to, subject, html string) (string, error) {
	if from == "" || to == "" {
		return "", fmt.Errorf("mailer: from and to are required")
	}
	if subject == "" || html == "" {
		return "", fmt.Errorf("mailer: subject and body are required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", newMessageID(from))
	fmt.Fprintf(&b, "From: %s\r\n", formatAddress(fromName, from))
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	if !strings.HasSuffix(html, "\n") {
		b.WriteString("\r\n")
	}
	return b.String(), nil
}

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), addr)
}

func newMessageID(from string) string {
	domain := "swellway.local"
	if _, d, found := strings.Cut(from, "@"); found && d != "" {
		domain = d
	}
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(buf), domain)
}
