package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes JSON messages keyed by entity id so all messages for
// one entity land on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// kafkaReader is the slice of kafka.Reader the consumer uses
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer is a group consumer over the side-effect topics. Commits are
// explicit: Receive fetches without committing, Ack commits, Nack releases
// the fetched record without committing. Offset commits on a partition are
// cumulative, so once a later message is acked the broker considers every
// earlier offset consumed; a nacked message is therefore NOT redelivered by
// the broker. Redelivery comes from the sweep jobs, which re-publish any
// entity whose processing ledger is still pending.
type KafkaConsumer struct {
	reader  kafkaReader
	pending map[*Message]kafka.Message
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			GroupTopics: topics,
			MinBytes:    1,
			MaxBytes:    10e6,
		}),
		pending: make(map[*Message]kafka.Message),
	}
}

func (c *KafkaConsumer) Receive(ctx context.Context) (*Message, error) {
	km, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		Topic: km.Topic,
		Key:   string(km.Key),
		Value: km.Value,
	}
	c.pending[msg] = km
	return msg, nil
}

func (c *KafkaConsumer) Ack(ctx context.Context, msg *Message) error {
	km, ok := c.pending[msg]
	if !ok {
		return nil
	}
	delete(c.pending, msg)
	return c.reader.CommitMessages(ctx, km)
}

// Nack drops the fetched record without committing its offset. The caller
// has decided not to process it now; the sweep jobs will re-publish the
// underlying entity while its ledger stays pending.
func (c *KafkaConsumer) Nack(_ context.Context, msg *Message) error {
	delete(c.pending, msg)
	return nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
