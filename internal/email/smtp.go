package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	SendTimeout time.Duration
}

type smtpService struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
}

// NewSMTPService returns an email service that sends through an SMTP relay.
// Template ids map to subject/body pairs registered with the relay-side
// template table; unknown ids fall back to a generic retention message.
func NewSMTPService(cfg SMTPConfig) Service {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &smtpService{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		timeout: cfg.SendTimeout,
	}
}

func (s *smtpService) SendTemplate(ctx context.Context, templateID, to string, vars Vars) error {
	subject, body := renderTemplate(templateID, vars)

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("X-Template-ID", templateID)
	msg.SetBody("text/plain", body)

	// gomail has no context support; bound the send with a goroutine so a
	// stuck SMTP connection cannot stall the executor batch.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("smtp send timed out after %s", s.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Built-in templates. Real deployments override these with provider-side
// templates keyed by the same ids.
var templates = map[string][2]string{
	"winback":    {"We miss you, {{name}}", "Hi {{name}},\n\nIt's been a while since you logged in. Here's what's new.\n"},
	"onboarding": {"Getting started, {{name}}?", "Hi {{name}},\n\nA few tips to get the most out of your first weeks.\n"},
	"billing":    {"A note about your account", "Hi {{name}},\n\nWe noticed a problem with your latest payment. Let's get it sorted.\n"},
}

func renderTemplate(templateID string, vars Vars) (subject, body string) {
	tmpl, ok := templates[templateID]
	if !ok {
		tmpl = [2]string{"Checking in, {{name}}", "Hi {{name}},\n\nJust checking in to see how things are going.\n"}
	}
	subject, body = tmpl[0], tmpl[1]
	for key, val := range vars {
		placeholder := "{{" + key + "}}"
		subject = strings.ReplaceAll(subject, placeholder, val)
		body = strings.ReplaceAll(body, placeholder, val)
	}
	return subject, body
}
