package queue

import "context"

// Topics carrying side-effect messages. Delivery is at-least-once; consumers
// must be idempotent.
const (
	TopicOrderCancellation = "order-cancellation-side-effects"
	TopicRentalDeposit     = "rental-deposit-processing"
)

// OrderCancellationMessage references a cancelled order whose inventory
// still has to be restored
type OrderCancellationMessage struct {
	OrderID string `json:"order_id"`
}

// RentalDepositMessage references a returned booking whose deposit still has
// to be settled
type RentalDepositMessage struct {
	BookingID string `json:"booking_id"`
}

// Message is one delivered queue record
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// Publisher sends JSON payloads to a topic
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close() error
}

// Consumer pulls messages from the subscribed topics. Every Receive must be
// balanced by exactly one Ack or Nack. Kafka offset commits are cumulative
// per partition, so a nacked message that later deliveries ack past is not
// redelivered by the broker; the at-least-once contract for failed messages
// is carried by the sweep jobs, which re-publish any entity whose processing
// ledger is still pending.
type Consumer interface {
	// Receive blocks until a message arrives or ctx is done
	Receive(ctx context.Context) (*Message, error)
	// Ack marks the message as processed
	Ack(ctx context.Context, msg *Message) error
	// Nack releases the message unprocessed; a sweep will resend it
	Nack(ctx context.Context, msg *Message) error
	Close() error
}
