package eventbus

// Message wraps an event payload with delivery metadata.
type Message struct {
	// ID uniquely identifies this delivery.
	ID string

	// Topic the message was published to.
	Topic string

	// Data is the event payload.
	Data any

	// Attempt starts at 1 and increments on redelivery, for implementations
	// that support retries.
	Attempt int

	ack  func()
	nack func()
}

// NewMessage constructs a message for delivery. Bus implementations may
// provide ack callbacks via WithAckHandlers.
func NewMessage(id, topic string, data any) *Message {
	return &Message{
		ID:      id,
		Topic:   topic,
		Data:    data,
		Attempt: 1,
		ack:     func() {},
		nack:    func() {},
	}
}

// WithAckHandlers returns a copy of the message with ack and nack callbacks
// attached.
func (m *Message) WithAckHandlers(ack, nack func()) *Message {
	m2 := *m
	m2.ack = ack
	m2.nack = nack
	return &m2
}

// Ack marks the message as successfully handled.
func (m *Message) Ack() {
	m.ack()
}

// Nack signals the message should be redelivered if the bus supports it.
func (m *Message) Nack() {
	m.nack()
}
