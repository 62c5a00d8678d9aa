package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"conncheck/agent/internal/domain"
	"conncheck/agent/internal/repository"
	"conncheck/agent/internal/run"
	"conncheck/agent/internal/service"
	"conncheck/agent/internal/surface"
)

// RunController exposes the run registry over HTTP: start/restart, inspect,
// stop, tear down, and a live websocket stream per run key.
type RunController struct {
	registry *run.Registry
	surfaces *surface.Store
	hub      *Hub
	defaults service.Defaults
	events   repository.EventSink // optional; nil when Kafka is not wired
	log      *slog.Logger

	upgrader websocket.Upgrader
}

func NewRunController(
	registry *run.Registry,
	surfaces *surface.Store,
	hub *Hub,
	defaults service.Defaults,
	events repository.EventSink,
	log *slog.Logger,
) *RunController {
	if log == nil {
		log = slog.Default()
	}
	return &RunController{
		registry: registry,
		surfaces: surfaces,
		hub:      hub,
		defaults: defaults,
		events:   events,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type startRunRequest struct {
	Tasks     []domain.Task `json:"tasks"`
	SourceIP  string        `json:"source_ip"`
	DelayMs   int           `json:"delay_ms"`
	TimeoutMs int           `json:"timeout_ms"`
}

// Start handles POST /runs/:key. An already-active run under the key is
// stopped and replaced; the response carries the fresh run id.
func (rc *RunController) Start(c *gin.Context) {
	key := c.Param("key")

	var body startRunRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := domain.RunRequest{
		ID:        uuid.NewString(),
		Key:       key,
		Tasks:     body.Tasks,
		SourceIP:  body.SourceIP,
		DelayMs:   body.DelayMs,
		TimeoutMs: body.TimeoutMs,
		CreatedAt: time.Now(),
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := run.Options{
		RunID:    req.ID,
		SourceIP: req.SourceIP,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
		Timeout:  time.Duration(req.TimeoutMs) * time.Millisecond,
	}
	if opts.SourceIP == "" {
		opts.SourceIP = rc.defaults.SourceIP
	}
	if req.DelayMs <= 0 {
		opts.Delay = rc.defaults.Delay
	}
	if req.TimeoutMs <= 0 {
		opts.Timeout = rc.defaults.Timeout
	}

	table := surface.NewTable(req.Tasks)
	rc.surfaces.Put(key, table)

	sinks := run.MultiSink{table, rc.hub.SinkFor(key, req.ID)}
	if rc.events != nil {
		sinks = append(sinks, &repository.RunEventSink{
			RunID: req.ID, Key: key, Events: rc.events, Log: rc.log,
		})
	}

	// The run outlives this request; its lifetime is the registry's, not the
	// HTTP exchange's.
	ctrl, err := rc.registry.Request(context.Background(), key, req.Tasks, opts, sinks)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": ctrl.ID(),
		"key":    key,
		"state":  ctrl.State(),
		"tasks":  len(req.Tasks),
	})
}

// Get handles GET /runs/:key.
func (rc *RunController) Get(c *gin.Context) {
	key := c.Param("key")

	ctrl, ok := rc.registry.Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run for key"})
		return
	}

	resp := gin.H{
		"run_id": ctrl.ID(),
		"key":    key,
		"state":  ctrl.State(),
		"index":  ctrl.Index(),
		"total":  len(ctrl.Tasks()),
	}
	if table, ok := rc.surfaces.Get(key); ok {
		resp["summary"] = table.Summary()
		resp["rows"] = table.Snapshot()
	}

	c.JSON(http.StatusOK, resp)
}

// Stop handles DELETE /runs/:key. With ?teardown=true the registry entry and
// the surface are discarded as well; plain stop keeps them inspectable.
func (rc *RunController) Stop(c *gin.Context) {
	key := c.Param("key")

	if c.Query("teardown") == "true" {
		rc.registry.Teardown(key)
		rc.surfaces.Delete(key)
		c.JSON(http.StatusOK, gin.H{"key": key, "torn_down": true})
		return
	}

	if !rc.registry.Stop(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run for key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "stopping": true})
}

// Stream handles GET /runs/:key/ws, pushing each TaskEvent for the key as a
// JSON message until the client goes away.
func (rc *RunController) Stream(c *gin.Context) {
	key := c.Param("key")

	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rc.log.Error("websocket upgrade failed", "key", key, "error", err)
		return
	}
	defer conn.Close()

	events, cancel := rc.hub.Subscribe(key)
	defer cancel()

	// Reader goroutine: its only job is noticing the peer closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
