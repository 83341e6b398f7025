package mailer

import (
	"context"
	"fmt"

	"maildispatch/internal/models"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers one composed message per call, dialing with the
// credentials of whichever mailbox the scheduler reserved.
type SMTPSender struct{}

// Send builds the broadcast message and pushes it through the mailbox's
// SMTP endpoint. All recipients ride on Bcc; the visible To header is
// the sending mailbox itself so recipients never see each other.
func (s *SMTPSender) Send(ctx context.Context, mbox *models.Mailbox, recipients []models.Recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := composeMessage(mbox, recipients, subject, body)

	d := gomail.NewDialer(mbox.Host, mbox.Port, mbox.Email, mbox.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}
	return nil
}

func composeMessage(mbox *models.Mailbox, recipients []models.Recipient, subject, body string) *gomail.Message {
	m := gomail.NewMessage()

	bcc := make([]string, len(recipients))
	for i, r := range recipients {
		if r.Name != "" {
			bcc[i] = m.FormatAddress(r.Email, r.Name)
		} else {
			bcc[i] = r.Email
		}
	}

	m.SetHeader("From", mbox.Email)
	m.SetHeader("To", mbox.Email)
	m.SetHeader("Bcc", bcc...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}
