// Package mail sends the portal's account notification mails over SMTP.
package mail

import (
	"bytes"
	"fmt"
	"net/smtp"
	"net/url"
	"text/template"

	"go.uber.org/zap"

	"dyndnsd/internal/config"
)

const activationTemplate = `From: {{.Sender}}
To: {{.To}}
Subject: Your new account

Hello {{.Username}},

somebody, hopefully you, signed up for a new account.

To activate your account, visit

  {{.Link}}

If you did not request an account, just ignore this mail.

Regards,
{{.AdminName}}
`

const resetTemplate = `From: {{.Sender}}
To: {{.To}}
Subject: Password reset

Hello {{.Username}},

somebody, hopefully you, asked for your password to be reset.

To choose a new password, visit

  {{.Link}}

If you did not ask for a reset, just ignore this mail; your
current password stays valid.

Regards,
{{.AdminName}}
`

var (
	tmplActivation = template.Must(template.New("activation").Parse(activationTemplate))
	tmplReset      = template.Must(template.New("reset").Parse(resetTemplate))
)

// Mailer sends account mails. With SMTP disabled in the configuration all
// sends are no-ops, which keeps signup usable on installations where an
// admin activates accounts by hand.
type Mailer struct {
	cfg config.SMTPConfig
	log *zap.Logger

	// send exists so tests can capture the outgoing mail.
	send func(addr, from string, to []string, body []byte) error
}

func NewMailer(cfg config.SMTPConfig, log *zap.Logger) *Mailer {
	return &Mailer{
		cfg: cfg,
		log: log,
		send: func(addr, from string, to []string, body []byte) error {
			return smtp.SendMail(addr, nil, from, to, body)
		},
	}
}

// Enabled reports whether mails are actually delivered. Handlers use this
// to decide between "check your inbox" and "ask your admin" flows.
func (m *Mailer) Enabled() bool { return m.cfg.Enabled }

type mailData struct {
	Sender    string
	To        string
	Username  string
	Link      string
	AdminName string
}

// SendActivation mails the account activation link for a fresh signup.
func (m *Mailer) SendActivation(to, username, authcode string) error {
	link := fmt.Sprintf("%s/signup/activate?username=%s&authcode=%s",
		m.cfg.BaseURL, url.QueryEscape(username), url.QueryEscape(authcode))
	return m.deliver(tmplActivation, to, username, link)
}

// SendPasswordReset mails the lost password reset link.
func (m *Mailer) SendPasswordReset(to, username, authcode string) error {
	link := fmt.Sprintf("%s/lostpasswd/reset?username=%s&authcode=%s",
		m.cfg.BaseURL, url.QueryEscape(username), url.QueryEscape(authcode))
	return m.deliver(tmplReset, to, username, link)
}

func (m *Mailer) deliver(tmpl *template.Template, to, username, link string) error {
	if !m.cfg.Enabled {
		m.log.Debug("smtp disabled, not sending mail", zap.String("to", to))
		return nil
	}

	var body bytes.Buffer
	err := tmpl.Execute(&body, mailData{
		Sender:    m.cfg.Sender,
		To:        to,
		Username:  username,
		Link:      link,
		AdminName: m.cfg.AdminName,
	})
	if err != nil {
		return fmt.Errorf("render mail: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, m.cfg.Sender, []string{to}, body.Bytes()); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.log.Info("sent mail", zap.String("to", to), zap.String("template", tmpl.Name()))
	return nil
}
