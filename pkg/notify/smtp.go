package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

var errSMTPDisabled = fmt.Errorf("smtp notifier is disabled")

// SMTPConfig configures the email channel. Leaving Host or To empty disables
// the channel rather than failing startup.
type SMTPConfig struct {
	Enabled  bool     `json:"enabled"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// SMTPNotifier delivers notifications as plain-text email.
type SMTPNotifier struct {
	config SMTPConfig
}

func NewSMTPNotifier(config SMTPConfig) *SMTPNotifier {
	if config.Port == 0 {
		config.Port = 587
	}

	return &SMTPNotifier{config: config}
}

func (s *SMTPNotifier) IsEnabled() bool {
	return s.config.Enabled && s.config.Host != "" && len(s.config.To) > 0
}

func (s *SMTPNotifier) Notify(_ context.Context, n *Notification) error {
	if !s.IsEnabled() {
		return errSMTPDisabled
	}

	if n.Timestamp == "" {
		n.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	var msg strings.Builder

	fmt.Fprintf(&msg, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.config.To, ", "))
	fmt.Fprintf(&msg, "Subject: [%s] %s\r\n", strings.ToUpper(string(n.Level)), n.Subject)
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\nHost: %s (%s)\r\nTime: %s\r\n", n.Message, n.HostName, n.HostID, n.Timestamp)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := smtp.SendMail(addr, auth, s.config.From, s.config.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	return nil
}
