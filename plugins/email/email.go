// Package email provides an interface for plugins and application code to
// send email. [Gomail](gopkg.in/gomail.v2) is used with SMTP as the default
// transport.
//
// SMTP can be configured using global configuration, either as ENV or from
// a configuration file:
//
//	TH__EMAIL__FROM           email.from
//	TH__EMAIL__SMTP__HOST     email.smtp.host
//	TH__EMAIL__SMTP__PORT     email.smtp.port
//	TH__EMAIL__SMTP__USER     email.smtp.username
//	TH__EMAIL__SMTP__PASS     email.smtp.password
package email

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
)

// Constant name for identifying the email plugin.
const PluginName = "email"

func init() {
	taskhub.RegisterConfigKeys(
		taskhub.ConfigKeyInfo{
			Key:         "email.from",
			Description: "Default from address for outgoing mail",
			Type:        "string",
		},
		taskhub.ConfigKeyInfo{
			Key:         "email.smtp.host",
			Description: "SMTP server host",
			Type:        "string",
		},
		taskhub.ConfigKeyInfo{
			Key:         "email.smtp.port",
			Description: "SMTP server port",
			Type:        "int",
		},
		taskhub.ConfigKeyInfo{
			Key:         "email.smtp.username",
			Description: "SMTP username",
			Type:        "string",
		},
		taskhub.ConfigKeyInfo{
			Key:         "email.smtp.password",
			Description: "SMTP password",
			Type:        "string",
		},
	)
}

// Sender is an interface for sending emails. The abstraction allows tests to
// run without a real SMTP connection.
type Sender interface {
	DialAndSend(*gomail.Message) error
}

// gomailDialer wraps gomail.Dialer to implement the Sender interface.
type gomailDialer struct {
	dialer *gomail.Dialer
}

func (g *gomailDialer) DialAndSend(msg *gomail.Message) error {
	return g.dialer.DialAndSend(msg)
}

// EmailOptions customize the configuration of the email plugin.
type EmailOption func(*EmailPlugin)

// WithSMTP configures the SMTP server to use.
func WithSMTP(host string, port int, username, password string) EmailOption {
	return func(p *EmailPlugin) {
		p.smtpHost = host
		p.smtpPort = port
		p.smtpUsername = username
		p.smtpPassword = password
	}
}

// WithFrom configures the default from address.
func WithFrom(from string) EmailOption {
	return func(p *EmailPlugin) {
		p.from = from
	}
}

// WithSender configures a custom Sender implementation, primarily useful for
// injecting a mock in tests.
func WithSender(sender Sender) EmailOption {
	return func(p *EmailPlugin) {
		p.sender = sender
	}
}

// Plugin returns a new EmailPlugin.
func Plugin(opts ...EmailOption) *EmailPlugin {
	p := &EmailPlugin{
		from:         taskhub.ConfigString("email.from"),
		smtpHost:     taskhub.ConfigString("email.smtp.host"),
		smtpPort:     taskhub.ConfigInt("email.smtp.port"),
		smtpUsername: taskhub.ConfigString("email.smtp.username"),
		smtpPassword: taskhub.ConfigString("email.smtp.password"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EmailPlugin exposes the ability to send emails.
type EmailPlugin struct {
	from         string
	smtpHost     string
	smtpPort     int
	smtpUsername string
	smtpPassword string
	sender       Sender
}

// From taskhub.Plugin.
func (p *EmailPlugin) Name() string {
	return PluginName
}

// From taskhub.InitializablePlugin.
func (p *EmailPlugin) Init(ctx context.Context, r *taskhub.Registry) error {
	if p.from == "" {
		return errors.New("email: config missing from address")
	}
	if p.sender != nil {
		// A custom sender doesn't need SMTP credentials.
		return nil
	}
	if p.smtpHost == "" {
		return errors.New("email: config missing smtp host")
	}
	if p.smtpPort == 0 {
		return errors.New("email: config missing smtp port")
	}
	if p.smtpUsername == "" {
		return errors.New("email: config missing smtp username")
	}
	if p.smtpPassword == "" {
		return errors.New("email: config missing smtp password")
	}
	return nil
}

// Send an email, filling in the default from address if the message doesn't
// carry one.
func (p *EmailPlugin) Send(ctx context.Context, msg *gomail.Message) error {
	logging.Infow(ctx, "email: sending mail",
		"to", msg.GetHeader("To"),
		"subject", msg.GetHeader("Subject"),
	)
	if len(msg.GetHeader("From")) == 0 {
		msg.SetHeader("From", p.from)
	}

	sender := p.sender
	if sender == nil {
		sender = &gomailDialer{
			dialer: gomail.NewDialer(p.smtpHost, p.smtpPort, p.smtpUsername, p.smtpPassword),
		}
	}

	if err := sender.DialAndSend(msg); err != nil {
		return errors.Wrap(err, 0).Append("email: failed to send")
	}
	return nil
}
