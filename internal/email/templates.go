package email

import (
	"fmt"
	"html"
	"strings"
)

func wrap(title, body string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:560px"><h2>%s</h2>%s<p>Baklava Wholesale</p></div>`,
		html.EscapeString(title), body)
}

func para(s string) string {
	return "<p>" + html.EscapeString(s) + "</p>"
}

// RegistrationReceived notifies the admin inbox of a new business account.
func RegistrationReceived(adminEmail, businessName, contactEmail string) Message {
	return Message{
		To:      adminEmail,
		Subject: "New wholesale registration: " + businessName,
		HTML: wrap("New registration",
			para(fmt.Sprintf("%s (%s) registered and is waiting for review.", businessName, contactEmail))),
	}
}

func AccountApproved(to, contactName string) Message {
	return Message{
		To:      to,
		Subject: "Your wholesale account is approved",
		HTML: wrap("Account approved",
			para(fmt.Sprintf("Hello %s, your account has been approved. You can now see prices and place orders.", contactName))),
	}
}

func DocumentsRequested(to, contactName, note string) Message {
	body := para(fmt.Sprintf("Hello %s, we need additional documents to review your account.", contactName))
	if strings.TrimSpace(note) != "" {
		body += para(note)
	}
	body += para("Reply to this email with the requested documents.")
	return Message{
		To:      to,
		Subject: "Documents needed for your wholesale account",
		HTML:    wrap("Documents requested", body),
	}
}

// OrderPlaced confirms an order. Cash orders include payment instructions.
func OrderPlaced(to, reference, total string, cash bool) Message {
	body := para(fmt.Sprintf("We received your order %s for a total of %s EUR.", reference, total))
	if cash {
		body += para("Payment is collected in cash on delivery. Please have the exact amount ready.")
	} else {
		body += para("We will start preparing it as soon as the card payment is confirmed.")
	}
	return Message{
		To:      to,
		Subject: "Order " + reference + " received",
		HTML:    wrap("Order received", body),
	}
}
