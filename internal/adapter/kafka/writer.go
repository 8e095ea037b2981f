package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/skycast-labs/radarcache/internal/adapter/rainviewer"
	"github.com/skycast-labs/radarcache/internal/config"
)

// Writer publishes frame-available events so downstream consumers (alerting,
// cache warmers on other nodes) learn about new radar frames.
// It implements framewatch.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured frames topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaFramesTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// frameEvent is the published JSON payload.
type frameEvent struct {
	Path        string    `json:"path"`
	Time        int64     `json:"time"`
	Host        string    `json:"host"`
	PublishedAt time.Time `json:"published_at"`
}

// PublishFrames publishes the given frames in a single WriteMessages call.
func (w *Writer) PublishFrames(ctx context.Context, host string, frames []rainviewer.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	now := time.Now().UTC()
	msgs := make([]kafkago.Message, len(frames))
	for i, f := range frames {
		msg, err := serializeToMessage(host, f, now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one frame into a Kafka message keyed by its
// path, so replays of the same frame land in the same partition.
func serializeToMessage(host string, f rainviewer.Frame, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(frameEvent{
		Path:        f.Path,
		Time:        f.Time,
		Host:        host,
		PublishedAt: publishedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize frame event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(f.Path),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "frame_time", Value: []byte(strconv.FormatInt(f.Time, 10))},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
