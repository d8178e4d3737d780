package mail

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers transactional mail through SendGrid. With no API key
// configured it degrades to a no-op so local setups work offline.
type Sender struct {
	APIKey string
	From   string
}

// SendInvite mails a newly added worker their temporary password for
// the team chat.
func (s Sender) SendInvite(toEmail, toName, teamName, tempPassword string) error {
	if s.APIKey == "" {
		return nil
	}
	from := sgmail.NewEmail("TeamChat", s.From)
	to := sgmail.NewEmail(toName, toEmail)
	subject := fmt.Sprintf("You've been added to the %s team chat", teamName)
	plain := fmt.Sprintf(
		"Hi %s,\n\nYou've been added to the %s team chat. Log in with this email and the temporary password below, then change it.\n\nTemporary password: %s\n",
		toName, teamName, tempPassword)
	msg := sgmail.NewSingleEmail(from, subject, to, plain, "")

	client := sendgrid.NewSendClient(s.APIKey)
	resp, err := client.Send(msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}
