// Package whatsapp covers the WhatsApp Business Cloud API surface this
// service uses: decoding webhook notifications and sending text replies.
package whatsapp

// WebhookPayload is the notification body the Cloud API posts to the webhook.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"` // sender phone number
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// Status is a delivery receipt for a message we sent. Receipts share the
// webhook with inbound messages and are ignored by the processor.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// IncomingText is a flattened inbound text message.
type IncomingText struct {
	MessageID  string
	From       string
	SenderName string
	Body       string
}

// TextMessages pulls every inbound text message out of a webhook payload.
// Non-text messages and status receipts are skipped.
func (p *WebhookPayload) TextMessages() []IncomingText {
	var out []IncomingText
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				out = append(out, IncomingText{
					MessageID:  msg.ID,
					From:       msg.From,
					SenderName: names[msg.From],
					Body:       msg.Text.Body,
				})
			}
		}
	}
	return out
}
