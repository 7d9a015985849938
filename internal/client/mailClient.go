package client

import (
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"cardfund/internal/config"
)

// Transactional template kinds.
const (
	MailOrderConfirmation   = "order_confirmation"
	MailBeneficiarySale     = "beneficiary_sale"
	MailAffiliateCommission = "affiliate_commission"
	MailAccountPrompt       = "account_prompt"
)

type Mailer interface {
	// SendTransactional is fire-and-forget from the settlement engine's
	// point of view: callers log failures and move on.
	SendTransactional(recipient, templateKind string, vars map[string]string, attachment []byte) error
}

type mailerImpl struct {
	smtpCfg *config.SMTP
	dial    func(m *gomail.Message) error
}

func NewMailer(smtpCfg *config.SMTP) Mailer {
	dialer := gomail.NewDialer(smtpCfg.Host, smtpCfg.Port, smtpCfg.User, smtpCfg.Password)
	return &mailerImpl{
		smtpCfg: smtpCfg,
		dial: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
	}
}

func (c *mailerImpl) SendTransactional(recipient, templateKind string, vars map[string]string, attachment []byte) error {
	subject, body, err := renderTemplate(templateKind, vars)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.smtpCfg.From)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if len(attachment) > 0 {
		m.Attach("invoice.pdf", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(attachment)
			return err
		}))
	}

	if err := c.dial(m); err != nil {
		return fmt.Errorf("send %s to %s: %w", templateKind, recipient, err)
	}

	return nil
}

func renderTemplate(templateKind string, vars map[string]string) (subject, body string, err error) {
	switch templateKind {
	case MailOrderConfirmation:
		subject = fmt.Sprintf("Your order %s is confirmed", vars["reference"])
		body = fmt.Sprintf("Thank you for your purchase!\n\nOrder %s for %s %s has been confirmed.\nYour invoice is attached when available.",
			vars["reference"], vars["amount"], vars["currency"])
	case MailBeneficiarySale:
		subject = "A card supporting your campaign was sold"
		body = fmt.Sprintf("Order %s settled %s %s net to your association.",
			vars["reference"], vars["net"], vars["currency"])
	case MailAffiliateCommission:
		subject = "You earned a referral commission"
		body = fmt.Sprintf("A referred sale on order %s earned you %s %s.",
			vars["reference"], vars["commission"], vars["currency"])
	case MailAccountPrompt:
		subject = "Create an account to keep track of your cards"
		body = fmt.Sprintf("Your order %s went through. Create an account with this address to claim your cards anytime.",
			vars["reference"])
	default:
		return "", "", fmt.Errorf("unknown mail template %q", templateKind)
	}

	return subject, body, nil
}
