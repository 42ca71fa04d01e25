// Package notify delivers citizen notifications by email.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/gauravmishra2744/Awaaj/internal/config"
)

// Dispatcher sends a single HTML message.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// New returns an SMTP dispatcher when SMTP is configured, otherwise a
// dispatcher that only logs.
func New(cfg config.SMTPConfig, logger *slog.Logger) Dispatcher {
	if cfg.Host == "" {
		return NewLogDispatcher(logger)
	}
	return NewSMTPDispatcher(cfg)
}

// defaultSMTPTimeout bounds a delivery when smtp.timeout is unset.
const defaultSMTPTimeout = 10 * time.Second

// sendFunc delivers msg to addr and must give up once ctx is done.
type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher sends mail through an SMTP relay.
type SMTPDispatcher struct {
	cfg  config.SMTPConfig
	send sendFunc
}

// NewSMTPDispatcher creates an SMTP dispatcher.
func NewSMTPDispatcher(cfg config.SMTPConfig) *SMTPDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &SMTPDispatcher{cfg: cfg, send: sendMail}
}

// Send delivers one message within the configured timeout or the deadline
// of ctx, whichever comes first.
func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, bodyHTML string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("send mail: header contains line break")
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	msg := buildMessage(d.cfg.From, to, subject, bodyHTML, time.Now())
	if err := d.send(ctx, addr, auth, d.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// sendMail is smtp.SendMail with a context: the connection is dialed with
// ctx and closed when ctx is done, which unblocks any pending exchange.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return ctxErr(ctx, err)
	}
	defer c.Close()

	if err := deliver(c, host, a, from, to, msg); err != nil {
		return ctxErr(ctx, err)
	}
	return c.Quit()
}

func deliver(c *smtp.Client, host string, a smtp.Auth, from string, to []string, msg []byte) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("server does not support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

// ctxErr prefers the context's error when ctx ended the exchange.
func ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

func buildMessage(from, to, subject, bodyHTML string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: Awaaz <%s>\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(bodyHTML)
	return b.Bytes()
}

// LogDispatcher logs messages instead of sending them.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a LogDispatcher. A nil logger uses slog.Default().
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Send logs the message and never fails.
func (d *LogDispatcher) Send(ctx context.Context, to, subject, bodyHTML string) error {
	d.logger.Info("notification (smtp not configured)", "to", to, "subject", subject, "bytes", len(bodyHTML))
	return nil
}

// Message is the data rendered into notification templates.
type Message struct {
	Title     string
	IssueID   string
	Status    string
	Category  string
	Priority  string
	Comment   string
	ChangedBy string
	Deadline  string
	Changes   []Change
}

// Change is one edited field shown in an update notification.
type Change struct {
	Field    string
	OldValue string
	NewValue string
}

var templates = template.Must(template.New("notify").Parse(`
{{define "submitted"}}<h2>Issue Submitted Successfully</h2>
<p>Your issue "<strong>{{.Title}}</strong>" has been received.</p>
<p>Reference: {{.IssueID}}</p>
<ul>
<li>Category: {{.Category}}</li>
<li>Priority: {{.Priority}}</li>
{{if .Deadline}}<li>Expected resolution by: {{.Deadline}}</li>{{end}}
</ul>
<p>We will notify you as the status changes.</p>{{end}}
{{define "status"}}<h2>Issue Status Update</h2>
<p>Your issue "<strong>{{.Title}}</strong>" is now <strong>{{.Status}}</strong>.</p>
{{if .ChangedBy}}<p>Updated by: {{.ChangedBy}}</p>{{end}}
{{if .Comment}}<p>Comment: {{.Comment}}</p>{{end}}
<p>Reference: {{.IssueID}}</p>{{end}}
{{define "updated"}}<h2>Issue Updated</h2>
<p>Your issue "<strong>{{.Title}}</strong>" was edited.</p>
<ul>
{{range .Changes}}<li>{{.Field}}: "{{.OldValue}}" &rarr; "{{.NewValue}}"</li>
{{end}}</ul>
<p>Reference: {{.IssueID}}</p>{{end}}
`))

// Template names.
const (
	TemplateSubmitted = "submitted"
	TemplateStatus    = "status"
	TemplateUpdated   = "updated"
)

// Render executes the named template.
func Render(name string, m Message) (string, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, m); err != nil {
		return "", fmt.Errorf("render %s notification: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
