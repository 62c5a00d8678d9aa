package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"conncheck/agent/internal/domain"
	"conncheck/agent/internal/repository"
	"conncheck/agent/internal/run"
	"conncheck/agent/internal/surface"
)

// Defaults fill the per-run knobs a run request leaves unset.
type Defaults struct {
	SourceIP string
	Delay    time.Duration
	Timeout  time.Duration
}

type Config struct {
	AgentID      string
	PollInterval time.Duration
	Defaults     Defaults

	// ExtraSink, when set, contributes one more sink per started run
	// (the websocket hub uses this).
	ExtraSink func(key, runID string) run.Sink
}

// RunService is the Kafka-facing loop: it polls for run requests, hands them
// to the registry and publishes every run notification back out.
type RunService struct {
	source   repository.RunRequestSource
	events   repository.EventSink
	registry *run.Registry
	surfaces *surface.Store
	log      *slog.Logger

	agentID      string
	pollInterval time.Duration
	defaults     Defaults
	extraSink    func(key, runID string) run.Sink

	mu        sync.Mutex
	isRunning bool
}

func NewRunService(
	source repository.RunRequestSource,
	events repository.EventSink,
	registry *run.Registry,
	surfaces *surface.Store,
	cfg Config,
	log *slog.Logger,
) *RunService {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &RunService{
		source:       source,
		events:       events,
		registry:     registry,
		surfaces:     surfaces,
		log:          log,
		agentID:      cfg.AgentID,
		pollInterval: cfg.PollInterval,
		defaults:     cfg.Defaults,
		extraSink:    cfg.ExtraSink,
	}
}

func (s *RunService) Start(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	s.log.Info("run service started",
		"agent_id", s.agentID,
		"poll_interval", s.pollInterval,
	)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.processRequests(ctx); err != nil {
			s.log.Error("failed to process run requests", "error", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.log.Info("run service stopped")
			return nil
		}
	}
}

func (s *RunService) processRequests(ctx context.Context) error {
	requests, err := s.source.FetchRequests(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch run requests: %w", err)
	}
	if len(requests) == 0 {
		return nil
	}

	var started, rejected int

	for _, req := range requests {
		handled, err := s.tryStartRun(ctx, req)
		if err != nil {
			s.log.Error("run request failed",
				"request_id", req.ID, "key", req.Key, "error", err)
		}

		if handled {
			if err := s.source.AckRequest(ctx, req.ID); err != nil {
				s.log.Error("failed to ack run request",
					"request_id", req.ID, "error", err)
			}
			if err == nil {
				started++
				continue
			}
		} else {
			s.source.NackRequest(req.ID)
		}
		rejected++
	}

	s.log.Info("run requests processed",
		"total", len(requests), "started", started, "rejected", rejected)

	return nil
}

// tryStartRun validates one request and hands it to the registry. Malformed
// requests are acked and reported over the logs topic so they never wedge the
// partition; only infrastructure failures come back as handled=false.
func (s *RunService) tryStartRun(ctx context.Context, req domain.RunRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		s.sendLog(ctx, req, domain.LogLevelError,
			fmt.Sprintf("Rejected run request: %v", err))
		return true, err
	}

	runID := req.ID
	if runID == "" {
		runID = uuid.NewString()
	}

	opts := run.Options{
		RunID:    runID,
		SourceIP: req.SourceIP,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
		Timeout:  time.Duration(req.TimeoutMs) * time.Millisecond,
	}
	if opts.SourceIP == "" {
		opts.SourceIP = s.defaults.SourceIP
	}
	if req.DelayMs <= 0 {
		opts.Delay = s.defaults.Delay
	}
	if req.TimeoutMs <= 0 {
		opts.Timeout = s.defaults.Timeout
	}

	table := surface.NewTable(req.Tasks)
	s.surfaces.Put(req.Key, table)

	sinks := run.MultiSink{
		table,
		&repository.RunEventSink{RunID: runID, Key: req.Key, Events: s.events, Log: s.log},
	}
	if s.extraSink != nil {
		sinks = append(sinks, s.extraSink(req.Key, runID))
	}

	if _, err := s.registry.Request(ctx, req.Key, req.Tasks, opts, sinks); err != nil {
		s.sendLog(ctx, req, domain.LogLevelError,
			fmt.Sprintf("Failed to start run: %v", err))
		return true, err
	}

	s.sendLog(ctx, req, domain.LogLevelInfo,
		fmt.Sprintf("Started run with %d tasks", len(req.Tasks)))

	return true, nil
}

func (s *RunService) sendLog(ctx context.Context, req domain.RunRequest, level domain.LogLevel, message string) {
	entry := domain.LogEntry{
		RunID:     req.ID,
		Key:       req.Key,
		AgentID:   s.agentID,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err := s.events.PublishLog(ctx, entry); err != nil {
		s.log.Error("failed to publish log entry", "error", err)
	}
}

func (s *RunService) setRunning(v bool) {
	s.mu.Lock()
	s.isRunning = v
	s.mu.Unlock()
}

func (s *RunService) HealthCheck(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return fmt.Errorf("service is not running")
	}
	return nil
}

func (s *RunService) GetStatus() map[string]interface{} {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()

	return map[string]interface{}{
		"agent_id":      s.agentID,
		"is_running":    running,
		"poll_interval": s.pollInterval.String(),
		"runs":          s.registry.Snapshot(),
	}
}
