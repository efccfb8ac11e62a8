package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/dwikikusuma/shop-fulfillment/pkg/config"
)

// Mailer sends notification emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	log    *slog.Logger
}

func NewMailer(cfg config.SMTP, log *slog.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   cfg.From,
		log:    log,
	}
}

var _ Notifier = (*Mailer)(nil)

func (m *Mailer) Notify(ctx context.Context, kind Kind, recipient string, p Payload) error {
	subject, body := render(kind, p)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s mail: %w", kind, err)
	}
	m.log.Debug("mail sent", slog.String("kind", string(kind)), slog.String("order_id", p.OrderID))
	return nil
}

func render(kind Kind, p Payload) (subject, body string) {
	switch kind {
	case KindPaymentStatus:
		outcome := "failed"
		if p.PaymentSuccess {
			outcome = "successful"
		}
		return "Payment Status Update", fmt.Sprintf(
			"<div><h2>Payment Status Update</h2><p>Your payment of %s %s was %s.</p></div>",
			p.Amount.StringFixed(2), strings.ToUpper(p.Currency), outcome)

	case KindOrderConfirmation:
		var items strings.Builder
		for _, it := range p.Items {
			fmt.Fprintf(&items, "<li>%s x%d</li>", it.Name, it.Quantity)
		}
		return "Order Confirmation", fmt.Sprintf(
			"<div><h2>Order Confirmed!</h2><p>Order %s for %s %s.</p><ul>%s</ul><p>We'll email you again when it ships.</p></div>",
			p.OrderID, p.Amount.StringFixed(2), strings.ToUpper(p.Currency), items.String())

	case KindOrderShipped:
		return "Order Status Update", fmt.Sprintf(
			"<div><h2>Your Order Has Shipped!</h2><p>Order %s</p></div>", p.OrderID)

	case KindOrderDelivered:
		return "Order Status Update", fmt.Sprintf(
			"<div><h2>Your Order Was Delivered</h2><p>Order %s</p></div>", p.OrderID)

	case KindOrderCancelled:
		refund := "No charge was captured, so nothing needed refunding."
		if p.Refunded {
			refund = fmt.Sprintf("A refund of %s %s is on its way.", p.Amount.StringFixed(2), strings.ToUpper(p.Currency))
		}
		return "Order Cancelled", fmt.Sprintf(
			"<div><h2>Order Cancelled</h2><p>Order %s was cancelled. %s</p></div>", p.OrderID, refund)

	default:
		return "Notification", fmt.Sprintf("<div><p>Update for order %s.</p></div>", p.OrderID)
	}
}

// LogNotifier is the no-SMTP fallback: it only logs what would be sent.
type LogNotifier struct {
	Log *slog.Logger
}

var _ Notifier = LogNotifier{}

func (n LogNotifier) Notify(ctx context.Context, kind Kind, recipient string, p Payload) error {
	n.Log.Info("notification (log only)",
		slog.String("kind", string(kind)),
		slog.String("recipient", recipient),
		slog.String("order_id", p.OrderID),
	)
	return nil
}
