package email

import "context"

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single outgoing HTML email.
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Notifier delivers messages through a mail provider. On success it returns
// the provider-visible message id.
type Notifier interface {
	Send(ctx context.Context, msg *Message) (messageID string, err error)
}
