package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Row is one inbound lead from the intake topic. Upstream sheet/file
// parsers publish rows here; this service only consumes the already
// structured form.
type Row struct {
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	AltNumber string `json:"alt_number,omitempty"`
	StateName string `json:"state_name,omitempty"`
	Segment   string `json:"segment,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
}

type Message struct {
	Value []byte
}

type Consumer interface {
	ReadMessage(ctx context.Context) (Message, error)
	Close() error
}

type kafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConsumer struct {
	reader kafkaReader
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaConsumer(cfg KafkaConfig) (*KafkaConsumer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		trimmed := strings.TrimSpace(b)
		if trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, fmt.Errorf("kafka group id required")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: r}, nil
}

func (c *KafkaConsumer) ReadMessage(ctx context.Context) (Message, error) {
	if c == nil || c.reader == nil {
		return Message{}, errors.New("kafka consumer not initialized")
	}
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{Value: msg.Value}, nil
}

func (c *KafkaConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run pumps rows from the consumer into handle until ctx is done. Rows
// that fail to decode or that handle rejects (duplicate phone, missing
// fields) are reported through logf and skipped; a poison message must
// not stall the topic.
func Run(ctx context.Context, c Consumer, handle func(ctx context.Context, row Row) error, logf func(format string, args ...any)) error {
	if c == nil {
		return errors.New("consumer required")
	}
	if handle == nil {
		return errors.New("handler required")
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var row Row
		if err := json.Unmarshal(msg.Value, &row); err != nil {
			logf("intake: skipping undecodable row: %v", err)
			continue
		}
		if err := handle(ctx, row); err != nil {
			logf("intake: row rejected: %v", err)
		}
	}
}
