package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/blackbirdcodelabs/jnanagni-backend/config"
)

// EmailService implements Notifier over plain SMTP, the festival's mail relay.
type EmailService struct {
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{cfg: cfg}
}

var emailTemplates = map[NotificationKind]*template.Template{
	NotifyInviteSent: template.Must(template.New("invite-sent").Parse(
		`<p>Hi,</p><p><b>{{.LeaderName}}</b> has invited you to join team <b>{{.TeamName}}</b> for <b>{{.EventName}}</b> at Jnanagni.</p><p>Log in to accept or decline the invitation.</p>`)),
	NotifyInviteResponse: template.Must(template.New("invite-response").Parse(
		`<p>Hi,</p><p><b>{{.MemberName}}</b> has {{.Decision}} your invitation to team <b>{{.TeamName}}</b> for <b>{{.EventName}}</b>.</p>`)),
	NotifyRegistrationConfirmed: template.Must(template.New("registration-confirmed").Parse(
		`<p>Hi {{.Name}},</p><p>Your registration for <b>{{.EventName}}</b> is confirmed. See you at Jnanagni!</p>`)),
	NotifyRoleChanged: template.Must(template.New("role-changed").Parse(
		`<p>Hi {{.Name}},</p><p>You have been assigned the role <b>{{.Role}}</b> for Jnanagni.</p>`)),
	NotifyPaymentVerified: template.Must(template.New("payment-verified").Parse(
		`<p>Hi {{.Name}},</p><p>Your payment status is now <b>{{.Status}}</b>.</p>`)),
	NotifyTeamIncomplete: template.Must(template.New("team-incomplete").Parse(
		`<p>Hi {{.Name}},</p><p>Your team <b>{{.TeamName}}</b> for <b>{{.EventName}}</b> has {{.CurrentSize}} members but needs at least {{.MinRequired}}. Invite teammates before the event starts.</p>`)),
}

var emailSubjects = map[NotificationKind]string{
	NotifyInviteSent:            "You have been invited to a Jnanagni team",
	NotifyInviteResponse:        "Your team invitation got a response",
	NotifyRegistrationConfirmed: "Jnanagni registration confirmed",
	NotifyRoleChanged:           "Your Jnanagni role has changed",
	NotifyPaymentVerified:       "Jnanagni payment status update",
	NotifyTeamIncomplete:        "Your Jnanagni team is incomplete",
}

func (s *EmailService) Notify(ctx context.Context, kind NotificationKind, recipient string, data map[string]string) error {
	tmpl, ok := emailTemplates[kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render %s email: %w", kind, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.send([]string{recipient}, emailSubjects[kind], body.String())
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EmailService) send(to []string, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)

	msg := []byte("To: " + to[0] + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	tlsconfig := &tls.Config{
		ServerName: s.cfg.SMTPHost,
	}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("smtp tls dial: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("smtp client: %w", err)
		}
	} else {
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt to: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return nil
}
