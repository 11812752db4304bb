// Package bus defines the message types exchanged between channels and the
// relay engine.
package bus

// InboundEvent represents one actionable message notification received from
// a channel (Messenger webhook entry, Telegram update).
type InboundEvent struct {
	Channel   string `json:"channel"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	RequestID string `json:"request_id,omitempty"` // correlation id for log tracing
}

// PartKind classifies one reply part for delivery.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// DeliveryUnit is one classified reply part addressed to one recipient.
type DeliveryUnit struct {
	RecipientID string   `json:"recipient_id"`
	Kind        PartKind `json:"kind"`
	Payload     string   `json:"payload"` // message text, or image URL for PartImage
}
