package event

import "maps"

// Message is the payload and attributes of an event.
// Messages are values; the attribute map is never modified in place.
type Message struct {
	// Payload is the message body.
	Payload any

	// Attributes holds transport or operation metadata (headers, paths, ...).
	Attributes map[string]any
}

// NewMessage creates a message, copying the provided attributes.
func NewMessage(payload any, attributes map[string]any) Message {
	return Message{
		Payload:    payload,
		Attributes: maps.Clone(attributes),
	}
}

// Attribute returns the attribute with the given name.
func (m Message) Attribute(name string) (any, bool) {
	v, ok := m.Attributes[name]
	return v, ok
}

// WithPayload returns a copy of the message with a new payload.
func (m Message) WithPayload(payload any) Message {
	m.Payload = payload
	return m
}

// WithAttribute returns a copy of the message with the attribute set.
func (m Message) WithAttribute(name string, value any) Message {
	attrs := make(map[string]any, len(m.Attributes)+1)
	maps.Copy(attrs, m.Attributes)
	attrs[name] = value
	m.Attributes = attrs
	return m
}
