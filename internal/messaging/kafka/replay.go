package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultReplayIdle = 2 * time.Second

// OffsetReader: часть sarama.Client, нужная для определения границ партиций.
type OffsetReader interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, at int64) (int64, error)
}

// PartitionStream: поток сообщений одной партиции.
type PartitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// StreamOpener открывает PartitionStream с заданного offset.
type StreamOpener interface {
	Open(topic string, partition int32, offset int64) (PartitionStream, error)
}

// SaramaStreams адаптирует sarama.Consumer к StreamOpener.
type SaramaStreams struct {
	Consumer sarama.Consumer
}

// Open реализует StreamOpener.
func (s SaramaStreams) Open(topic string, partition int32, offset int64) (PartitionStream, error) {
	return s.Consumer.ConsumePartition(topic, partition, offset)
}

// ReplayStats: итог одного прогона.
type ReplayStats struct {
	Scanned  int
	Replayed int
	Skipped  int
}

// Replayer перечитывает DLQ и возвращает исходные события в основной topic.
// Читаются только сообщения, лежавшие в DLQ на момент запуска.
type Replayer struct {
	Offsets  OffsetReader
	Streams  StreamOpener
	Producer *Producer

	Source string
	Target string
	Limit  int
	// DryRun только логирует кандидатов.
	DryRun bool
	Idle   time.Duration

	Logger *log.Entry
}

// Run обходит партиции по возрастанию номера, пока не просмотрит Limit сообщений.
func (r *Replayer) Run(ctx context.Context) (ReplayStats, error) {
	var stats ReplayStats
	if r.Offsets == nil || r.Streams == nil {
		return stats, errors.New("offset reader and stream opener are required")
	}
	if !r.DryRun && r.Producer == nil {
		return stats, errors.New("producer is required unless dry-run")
	}
	if r.Logger == nil {
		r.Logger = log.WithField("component", "dlq-replay")
	}
	if r.Idle <= 0 {
		r.Idle = defaultReplayIdle
	}

	partitions, err := r.Offsets.Partitions(r.Source)
	if err != nil {
		return stats, fmt.Errorf("partitions of %s: %w", r.Source, err)
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		if r.Limit > 0 && stats.Scanned >= r.Limit {
			break
		}
		if err := r.replayPartition(ctx, partition, &stats); err != nil {
			return stats, err
		}
	}

	r.Logger.WithFields(log.Fields{
		"scanned":  stats.Scanned,
		"replayed": stats.Replayed,
		"skipped":  stats.Skipped,
		"dry_run":  r.DryRun,
	}).Info("dlq replay finished")
	return stats, nil
}

func (r *Replayer) replayPartition(ctx context.Context, partition int32, stats *ReplayStats) error {
	oldest, err := r.Offsets.GetOffset(r.Source, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	end, err := r.Offsets.GetOffset(r.Source, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	if end <= oldest {
		return nil
	}

	stream, err := r.Streams.Open(r.Source, partition, oldest)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = stream.Close() }()

	idle := time.NewTimer(r.Idle)
	defer idle.Stop()

	for r.Limit <= 0 || stats.Scanned < r.Limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			return nil
		case cerr := <-stream.Errors():
			if cerr != nil {
				return fmt.Errorf("partition %d: %w", partition, cerr)
			}
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return nil
			}
			idle.Reset(r.Idle)

			stats.Scanned++
			if err := r.replayOne(ctx, msg); err != nil {
				if errors.Is(err, errNotReplayable) {
					stats.Skipped++
					r.Logger.WithError(err).WithFields(log.Fields{
						"partition": msg.Partition,
						"offset":    msg.Offset,
					}).Warn("skip dlq message")
				} else {
					return err
				}
			} else {
				stats.Replayed++
			}

			if msg.Offset+1 >= end {
				return nil
			}
		}
	}
	return nil
}

var errNotReplayable = errors.New("dlq message is not replayable")

func (r *Replayer) replayOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	original, err := DecodeDeadLetter(msg.Value)
	if err != nil {
		return err
	}

	if r.DryRun {
		r.Logger.WithFields(log.Fields{
			"offset":     msg.Offset,
			"key":        original.Key(),
			"event_type": original.EventType,
		}).Info("dlq replay candidate")
		return nil
	}

	headers := map[string]string{
		HeaderEventType: original.EventType,
		HeaderOutboxID:  original.ID,
		HeaderReplayed:  fmt.Sprintf("%s/%d/%d", r.Source, msg.Partition, msg.Offset),
	}
	if err := r.Producer.SendJSON(ctx, r.Target, original.Key(), original, headers); err != nil {
		return fmt.Errorf("republish offset %d: %w", msg.Offset, err)
	}
	return nil
}

// DecodeDeadLetter восстанавливает исходный Envelope из DLQ-сообщения.
func DecodeDeadLetter(value []byte) (Envelope, error) {
	var outer Envelope
	if err := json.Unmarshal(value, &outer); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errNotReplayable, err)
	}

	var dead deadLetter
	if err := json.Unmarshal(outer.Payload, &dead); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errNotReplayable, err)
	}
	if len(dead.Payload) == 0 || string(dead.Payload) == "null" {
		return Envelope{}, fmt.Errorf("%w: original payload is missing", errNotReplayable)
	}

	return Envelope{
		ID:            firstNonEmpty(dead.OutboxID, outer.ID),
		AggregateType: firstNonEmpty(dead.AggregateType, outer.AggregateType),
		AggregateID:   firstNonEmpty(dead.AggregateID, outer.AggregateID),
		EventType:     firstNonEmpty(dead.EventType, outer.EventType),
		Payload:       dead.Payload,
		PublishedAt:   time.Now().UTC(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
