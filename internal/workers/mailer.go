package workers

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/moviebox/internal/logger"
	"go.uber.org/zap"
)

// Mailer delivers rendered messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrPermanent marks delivery failures that retrying cannot fix
var ErrPermanent = errors.New("permanent delivery failure")

// LogMailer writes messages to the log instead of sending them. Used in development.
type LogMailer struct {
	log         *zap.Logger
	includeBody bool
}

// NewLogMailer creates a log mailer. includeBody logs the message text, links included.
func NewLogMailer(log *zap.Logger, includeBody bool) *LogMailer {
	return &LogMailer{log: logger.OrNop(log), includeBody: includeBody}
}

// Send logs msg
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	fields := []zap.Field{
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	}
	if m.includeBody {
		fields = append(fields, zap.String("body", msg.Body))
	}
	m.log.Info("mail_logged", fields...)
	return nil
}

// SMTPConfig configures SMTPMailer
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// DialTimeout bounds connection setup when ctx has no deadline
	DialTimeout time.Duration
}

// SMTPMailer submits messages to an SMTP relay, upgrading to TLS when offered
type SMTPMailer struct {
	cfg      SMTPConfig
	fromAddr string
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	now      func() time.Time
}

// NewSMTPMailer validates cfg and creates an SMTP mailer
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", cfg.From, err)
	}
	d := &net.Dialer{Timeout: cfg.DialTimeout}
	return &SMTPMailer{cfg: cfg, fromAddr: from.Address, dial: d.DialContext, now: time.Now}, nil
}

// Send delivers msg. 5xx answers from the relay are wrapped in ErrPermanent.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("%w: invalid recipient: %v", ErrPermanent, err)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to smtp relay: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", classify(err))
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", classify(err))
		}
	}
	if err := c.Mail(m.fromAddr); err != nil {
		return fmt.Errorf("smtp mail from: %w", classify(err))
	}
	if err := c.Rcpt(to.Address); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", classify(err))
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", classify(err))
	}
	if _, err := w.Write(m.compose(to.Address, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", classify(err))
	}
	return c.Quit()
}

// compose renders headers and body with CRLF line endings
func (m *SMTPMailer) compose(to string, msg Message) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k + ": " + stripNewlines(v) + "\r\n")
	}
	header("From", m.cfg.From)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// classify wraps 5xx SMTP replies in ErrPermanent
func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return err
}
