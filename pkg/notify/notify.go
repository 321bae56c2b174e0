package notify

import (
	"github.com/sirupsen/logrus"
)

// Message is one outbound booking notification. Recipient is a phone number;
// Email is optional and used when the delivery channel supports it.
type Message struct {
	Recipient string
	Email     string
	Subject   string
	Body      string
}

// Notifier delivers booking notifications. Delivery is best effort: callers
// log Send failures and move on, never roll back business state.
type Notifier interface {
	Send(msg Message) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and as the fallback when no gateway is configured.
type LogNotifier struct{}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the message
func (n *LogNotifier) Send(msg Message) error {
	logrus.WithFields(logrus.Fields{
		"recipient": msg.Recipient,
		"email":     msg.Email,
		"subject":   msg.Subject,
	}).Info("Notification (dev mode): " + msg.Body)
	return nil
}
