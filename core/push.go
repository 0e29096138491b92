package core

type (
	// PushMessage is a mobile push notification addressed to device tokens.
	PushMessage struct {
		To    []string // device push tokens
		Title string
		Body  string
		Data  map[string]string
	}

	// PushService is any service that can deliver push notifications.
	// Delivery is fire-and-forget best-effort: implementations must never
	// block the caller on delivery and must swallow-and-log failures.
	PushService interface {
		SendMessages(messages ...*PushMessage)
	}
)

func (m *PushMessage) HasRecipients() bool { return len(m.To) > 0 }
