// Package opsserver is an optional local debug/ops HTTP server: it
// exposes the C1 counter/timer snapshot and worker pool stats as JSON,
// and streams pager events to a connected debug client over a
// websocket.
package opsserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/ingestsdk/go-sdk/metrics"
	"github.com/ingestsdk/go-sdk/pager"
	"github.com/ingestsdk/go-sdk/pkg/logging"
	"github.com/ingestsdk/go-sdk/workerpool"
)

// Server is the optional ops/debug HTTP server.
type Server struct {
	app    *fiber.App
	meters *metrics.Meters
	pool   *workerpool.Pool
	pager  *pager.Pager
	logger *logging.Logger

	hub *eventHub
}

// New builds a Server wired to the running pipeline's meters, pool, and
// pager. Call Listen to start serving.
func New(meters *metrics.Meters, pool *workerpool.Pool, pg *pager.Pager, logger *logging.Logger) *Server {
	if logger == nil {
		l, err := logging.New("opsserver", logging.DefaultProductionConfig())
		if err != nil {
			l, _ = logging.New("opsserver", logging.DefaultConfig())
		}
		logger = l
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          logging.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logging.FiberMiddleware(logger))

	s := &Server{
		app:    app,
		meters: meters,
		pool:   pool,
		pager:  pg,
		logger: logger,
		hub:    newEventHub(),
	}

	s.routes()
	if pg != nil {
		pg.Register(s.hub.broadcast)
	}
	return s
}

func (s *Server) routes() {
	s.app.Get("/ops/metrics", s.handleMetrics)
	s.app.Get("/ops/pool", s.handlePoolStats)

	s.app.Use("/ops/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("connID", uuid.NewString())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ops/events", websocket.New(func(c *websocket.Conn) {
		id, _ := c.Locals("connID").(string)
		s.hub.serve(id, c)
	}))
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return c.JSON(s.meters.Snapshot())
}

func (s *Server) handlePoolStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"active_workers": s.pool.ActiveWorkers(),
	})
}

// Listen starts the ops server on addr, blocking until it stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the ops server, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// eventHub fans pager emissions out to connected websocket clients.
type eventHub struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newEventHub() *eventHub {
	return &eventHub{conns: make(map[string]*websocket.Conn)}
}

func (h *eventHub) serve(id string, c *websocket.Conn) {
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, id)
		h.mu.Unlock()
		c.Close()
	}()

	// Block until the client disconnects; pager events are pushed from
	// broadcast, not read from this loop.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *eventHub) broadcast(code pager.Code, message string) {
	payload, err := json.Marshal(map[string]interface{}{
		"code":    int(code),
		"name":    code.String(),
		"message": message,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.conns, id)
		}
	}
}
