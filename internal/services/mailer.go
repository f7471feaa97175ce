package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer delivers OTP codes. Tests substitute a fake.
type Mailer interface {
	SendOTP(to, code string) error
}

// SMTPMailer sends OTP mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (m *SMTPMailer) SendOTP(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "OTP Verification")
	msg.SetBody("text/plain", fmt.Sprintf("Your OTP is: %s", code))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}
