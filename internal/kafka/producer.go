package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/domain"
)

// ScoreEvent is the message published for every accepted best score.
type ScoreEvent struct {
	ScoreID  int64                   `json:"score_id"`
	PlayerID int64                   `json:"player_id"`
	Username string                  `json:"username"`
	MapHash  string                  `json:"map_hash"`
	Score    int64                   `json:"score"`
	PP       float64                 `json:"pp"`
	Accuracy float64                 `json:"accuracy"`
	Mods     string                  `json:"mods"`
	Status   domain.SubmissionStatus `json:"status"`
	Date     time.Time               `json:"date"`
}

// Producer publishes score events and recalc jobs to Kafka
type Producer struct {
	config   *config.KafkaConfig
	producer sarama.AsyncProducer
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	p := &Producer{
		config:   cfg,
		producer: producer,
		logger:   logger,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Error("kafka producer error", "error", err)
		}
	}()

	return p, nil
}

// Close flushes pending messages and shuts the producer down
func (p *Producer) Close() error {
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}

// ScoreSubmitted publishes a score event, keyed by beatmap hash so one
// map's events stay ordered within a partition.
func (p *Producer) ScoreSubmitted(ctx context.Context, score *domain.Score, username string) error {
	event := ScoreEvent{
		ScoreID:  score.ID,
		PlayerID: score.PlayerID,
		Username: username,
		MapHash:  score.MapHash,
		Score:    score.Score,
		PP:       score.PP,
		Accuracy: score.Accuracy,
		Mods:     score.Mods,
		Status:   score.Status,
		Date:     score.Date,
	}
	return p.publish(ctx, p.config.ScoreTopic, score.MapHash, event)
}

// PublishRecalcJob enqueues a recalculation job, keyed by player id.
func (p *Producer) PublishRecalcJob(ctx context.Context, job RecalcJob) error {
	return p.publish(ctx, p.config.RecalcTopic, strconv.FormatInt(job.PlayerID, 10), job)
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
