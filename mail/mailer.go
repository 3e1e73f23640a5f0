package mail

import (
	"context"
	"errors"
	"strings"
)

// Template names understood by downstream renderers.
const (
	TemplateTwoFactorCode = "two_factor_code"
	TemplatePasswordReset = "password_reset_required"
	TemplateWelcome       = "welcome"
)

var ErrNoRecipient = errors.New("mail: message has no recipient")

// Message is a templated notification.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to [Mailer].
type MailerFunc func(ctx context.Context, msg Message) error

func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// TwoFactorCode builds the login code message.
func TwoFactorCode(to, code string) Message {
	return Message{
		To:       to,
		Subject:  "Your sign-in code",
		Template: TemplateTwoFactorCode,
		Data:     map[string]string{"code": code},
	}
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// Templated builds a message rendered downstream from template and data.
func Templated(template, to, subject string, data map[string]string) Message {
	return Message{To: to, Subject: subject, Template: template, Data: data}
}
