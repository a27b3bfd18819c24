package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/config"
)

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender selected by cfg.Driver.
func NewSender(cfg config.NotificationConfig, logger *zap.Logger) (Sender, error) {
	switch cfg.Driver {
	case "", "log":
		return &LogSender{logger: logger}, nil
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("notification.smtp.host is required for the smtp driver")
		}
		return &SMTPSender{
			addr:     net.JoinHostPort(cfg.SMTP.Host, strconv.Itoa(cfg.SMTP.Port)),
			host:     cfg.SMTP.Host,
			username: cfg.SMTP.Username,
			password: cfg.SMTP.Password,
		}, nil
	case "relay":
		if cfg.Relay.URL == "" {
			return nil, fmt.Errorf("notification.relay.url is required for the relay driver")
		}
		return NewRelaySender(cfg.Relay.URL, cfg.Relay.APIKey, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown notification driver %q", cfg.Driver)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("Email notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.Body)),
	)
	return nil
}

// defaultSMTPTimeout bounds a delivery when ctx carries no deadline.
const defaultSMTPTimeout = 30 * time.Second

type SMTPSender struct {
	addr     string
	host     string
	username string
	password string
	dialer   net.Dialer
}

// Send delivers msg over one SMTP session. The whole session, including
// reads from a stalled server, is bounded by ctx.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSMTPTimeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set deadline on %s: %w", s.addr, err)
	}
	// Cancellation before the deadline closes the connection too.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to greet %s: %w", s.addr, err)
	}
	defer c.Close()

	if err := s.deliver(c, msg); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", s.addr, err)
	}
	return nil
}

func (s *SMTPSender) deliver(c *smtp.Client, msg Message) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if s.username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return err
		}
	}
	if err := c.Mail(msg.From); err != nil {
		return err
	}
	if err := c.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(mimeMessage(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func mimeMessage(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// RelaySender posts messages as JSON to an HTTP mail relay.
type RelaySender struct {
	client *resty.Client
	logger *zap.Logger
}

func NewRelaySender(url, apiKey string, timeout time.Duration, logger *zap.Logger) *RelaySender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &RelaySender{
		client: client,
		logger: logger,
	}
}

func (s *RelaySender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post("")
	if err != nil {
		return fmt.Errorf("failed to call mail relay: %w", err)
	}

	if resp.IsError() {
		s.logger.Error("Mail relay returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("mail relay error: status %d", resp.StatusCode())
	}
	return nil
}
