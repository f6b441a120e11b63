package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	Host       string   // SMTP server host
	Port       int      // SMTP server port (465 for implicit TLS, 587 for STARTTLS)
	Username   string   // SMTP username (optional)
	Password   string   // SMTP password (optional)
	From       string   // From address
	Recipients []string // Email recipients
}

// Validate validates the email configuration.
func (c *EmailConfig) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("SMTP host is required")
	case c.Port == 0:
		return fmt.Errorf("SMTP port is required")
	case c.From == "":
		return fmt.Errorf("from address is required")
	case len(c.Recipients) == 0:
		return fmt.Errorf("at least one recipient is required")
	}
	return nil
}

// EmailNotifier sends incident notifications via email.
type EmailNotifier struct {
	config    EmailConfig
	templates *Templates
}

// NewEmailNotifier creates a new email notifier.
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}

	templates, err := LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return &EmailNotifier{
		config:    config,
		templates: templates,
	}, nil
}

// Name returns "email".
func (e *EmailNotifier) Name() string {
	return "email"
}

// Send renders the notification templates and mails the result to all
// configured recipients in one SMTP transaction.
func (e *EmailNotifier) Send(ctx context.Context, n *Notification) error {
	data := NotificationToTemplateData(n)

	htmlBody, err := e.templates.RenderHTML(data)
	if err != nil {
		return fmt.Errorf("failed to render HTML template: %w", err)
	}

	plainBody, err := e.templates.RenderPlain(data)
	if err != nil {
		return fmt.Errorf("failed to render plain template: %w", err)
	}

	subject := fmt.Sprintf("[LogWarden] %s", n.Title)
	return e.deliver(ctx, e.buildMIMEMessage(subject, plainBody, htmlBody))
}

// Close is a no-op for email notifier.
func (e *EmailNotifier) Close() error {
	return nil
}

// buildMIMEMessage assembles a multipart/alternative message carrying
// the plain and HTML renderings.
func (e *EmailNotifier) buildMIMEMessage(subject, plainBody, htmlBody string) []byte {
	boundary := fmt.Sprintf("----=_Part_%d", time.Now().UnixNano())

	var b strings.Builder
	writeLine := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	writeLine("From: " + e.config.From)
	writeLine("To: " + strings.Join(e.config.Recipients, ", "))
	writeLine("Subject: " + subject)
	writeLine("MIME-Version: 1.0")
	writeLine(`Content-Type: multipart/alternative; boundary="` + boundary + `"`)
	writeLine("")

	for _, part := range []struct{ contentType, body string }{
		{"text/plain", plainBody},
		{"text/html", htmlBody},
	} {
		writeLine("--" + boundary)
		writeLine("Content-Type: " + part.contentType + "; charset=UTF-8")
		writeLine("Content-Transfer-Encoding: quoted-printable")
		writeLine("")
		writeLine(part.body)
	}
	writeLine("--" + boundary + "--")

	return []byte(b.String())
}

// deliver runs the SMTP envelope sequence for msg.
func (e *EmailNotifier) deliver(ctx context.Context, msg []byte) error {
	client, err := e.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if e.config.Username != "" && e.config.Password != "" {
		auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(e.extractEmail(e.config.From)); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range e.config.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data: %w", err)
	}

	return client.Quit()
}

// open dials the server. Port 465 gets implicit TLS; any other port
// connects in the clear and upgrades via STARTTLS when the server
// offers it.
func (e *EmailNotifier) open(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	tlsConfig := &tls.Config{ServerName: e.config.Host}
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	if e.config.Port == 465 {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, e.config.Host)
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, e.config.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	return client, nil
}

// extractEmail pulls the bare address out of a "Name <email>" header
// value. Unparseable input is passed through untouched.
func (e *EmailNotifier) extractEmail(addr string) string {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return addr
	}
	return parsed.Address
}
