package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"conncheck/agent/internal/domain"
	repokafka "conncheck/agent/internal/repository/kafka"
)

// RunRequestSource delivers run requests to the service loop. Requests must
// be acked once handed to the registry, or nacked so a malformed message is
// dropped without blocking the partition.
type RunRequestSource interface {
	FetchRequests(ctx context.Context) ([]domain.RunRequest, error)
	AckRequest(ctx context.Context, requestID string) error
	NackRequest(requestID string)
}

const fetchBatchLimit = 100

// KafkaRunRequestSource reads RunRequest messages from the runs topic,
// keeping the raw message around until the request is acked so the commit
// happens only after the run was actually started.
type KafkaRunRequestSource struct {
	consumer *repokafka.Consumer

	mu       sync.Mutex
	messages map[string]kafkago.Message
}

func NewKafkaRunRequestSource(consumer *repokafka.Consumer) *KafkaRunRequestSource {
	return &KafkaRunRequestSource{
		consumer: consumer,
		messages: make(map[string]kafkago.Message),
	}
}

// FetchRequests drains whatever is available within a short window, up to
// fetchBatchLimit requests. Deadline expiry just ends the batch.
func (s *KafkaRunRequestSource) FetchRequests(ctx context.Context) ([]domain.RunRequest, error) {
	var requests []domain.RunRequest

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for len(requests) < fetchBatchLimit {
		if err := fetchCtx.Err(); err != nil {
			break
		}

		var req domain.RunRequest
		msg, err := s.consumer.ReadEvent(fetchCtx, &req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return nil, fmt.Errorf("failed to read run request: %w", err)
		}

		if req.ID == "" {
			// No way to ack it later; commit immediately and move on.
			_ = s.consumer.CommitMessage(ctx, msg)
			continue
		}

		s.mu.Lock()
		s.messages[req.ID] = msg
		s.mu.Unlock()

		requests = append(requests, req)
	}

	return requests, nil
}

func (s *KafkaRunRequestSource) AckRequest(ctx context.Context, requestID string) error {
	s.mu.Lock()
	msg, ok := s.messages[requestID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := s.consumer.CommitMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to commit run request %s: %w", requestID, err)
	}

	s.mu.Lock()
	delete(s.messages, requestID)
	s.mu.Unlock()
	return nil
}

func (s *KafkaRunRequestSource) NackRequest(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, requestID)
}
