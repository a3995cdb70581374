package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/services"
	"tempvoice/pkg/tracing"
	"tempvoice/pkg/workerpool"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EventHandler consumes voice events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.VoiceEvent) []services.Result
}

// InteractionHandler consumes room-control interactions.
type InteractionHandler interface {
	HandleInteraction(ctx context.Context, in Interaction) services.Result
}

// InputCollector is implemented by interaction handlers that can ask the
// acting member for a value the interaction left blank. A result other
// than ok ends the interaction.
type InputCollector interface {
	CollectInput(ctx context.Context, in Interaction, field string) (string, services.Result)
}

// Metrics observes bridge traffic.
type Metrics interface {
	BridgeConnected(connected bool)
	FrameReceived(frameType string)
	FrameRejected(reason string)
}

type Config struct {
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MessagesPerSecond float64
	Burst             int
	AllowedOrigins    []string
}

func DefaultConfig() Config {
	return Config{
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		MessagesPerSecond: 50,
		Burst:             100,
	}
}

// newLimiter returns the inbound frame limiter for one connection. A
// non-positive rate disables limiting.
func (c Config) newLimiter() *rate.Limiter {
	if c.MessagesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(c.MessagesPerSecond), max(c.Burst, 1))
}

type conn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
	timeout time.Duration
	limiter *rate.Limiter
}

func (c *conn) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.ws.WriteJSON(f)
}

func (c *conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.timeout))
}

type pendingCall struct {
	conn  *conn
	reply chan Frame
}

// Server accepts a single gateway connection at a time. A new connection
// replaces the previous one.
type Server struct {
	cfg      Config
	auth     services.AuthService
	pool     *workerpool.Pool
	logger   *zap.SugaredLogger
	metrics  Metrics
	upgrader websocket.Upgrader

	events       EventHandler
	interactions InteractionHandler

	mu      sync.RWMutex
	current *conn

	pendingMu sync.Mutex
	pending   map[string]pendingCall
}

// NewServer creates a bridge server. auth may be nil to accept
// unauthenticated gateways.
func NewServer(cfg Config, auth services.AuthService, pool *workerpool.Pool, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:     cfg,
		auth:    auth,
		pool:    pool,
		logger:  logger,
		metrics: noopMetrics{},
		pending: make(map[string]pendingCall),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return s
}

// Bind sets the consumers of inbound frames. It must be called before the
// server accepts connections.
func (s *Server) Bind(events EventHandler, interactions InteractionHandler) {
	s.events = events
	s.interactions = interactions
}

// SetMetrics attaches a traffic observer.
func (s *Server) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Connected reports whether a gateway is attached.
func (s *Server) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) authenticate(r *http.Request) error {
	if s.auth == nil {
		return nil
	}

	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return services.ErrInvalidToken
		}
		token = parts[1]
	}
	if token == "" {
		return services.ErrUnauthorized
	}

	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		return err
	}
	return s.auth.RequireRole(claims, services.RoleBridge)
}

// HandleWebSocket upgrades a gateway connection and serves it until it
// closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.authenticate(r); err != nil {
		s.logger.Warnw("bridge authentication failed", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	c := &conn{
		id:      uuid.NewString(),
		ws:      ws,
		timeout: s.cfg.WriteTimeout,
		limiter: s.cfg.newLimiter(),
	}

	s.mu.Lock()
	previous := s.current
	s.current = c
	s.mu.Unlock()
	if previous != nil {
		previous.ws.Close()
		s.logger.Infow("replacing previous bridge connection", "previous", previous.id)
	}

	s.metrics.BridgeConnected(true)
	s.logger.Infow("bridge connected", "conn_id", c.id, "remote", r.RemoteAddr, "reconnect", previous != nil)

	if err := c.write(Frame{Type: FrameReady, ID: c.id}); err != nil {
		s.logger.Warnw("failed to greet bridge", "conn_id", c.id, "error", err)
	}

	ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	frames := make(chan Frame, 16)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			var f Frame
			if err := ws.ReadJSON(&f); err != nil {
				readErr <- err
				return
			}
			ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
			select {
			case frames <- f:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case f := <-frames:
			s.handleFrame(c, f)

		case <-pingTicker.C:
			if err := c.ping(); err != nil {
				s.logger.Infow("error sending ping", "conn_id", c.id, "error", err)
				s.release(c)
				return
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("bridge read failed", "conn_id", c.id, "error", err)
			}
			s.release(c)
			return
		}
	}
}

// release detaches c and fails every command still waiting on it.
func (s *Server) release(c *conn) {
	s.mu.Lock()
	if s.current == c {
		s.current = nil
		s.metrics.BridgeConnected(false)
	}
	s.mu.Unlock()

	s.pendingMu.Lock()
	for id, p := range s.pending {
		if p.conn == c {
			p.reply <- Frame{Type: frameDisconnected, ID: id}
			delete(s.pending, id)
		}
	}
	s.pendingMu.Unlock()

	s.logger.Infow("bridge disconnected", "conn_id", c.id)
}

func (s *Server) handleFrame(c *conn, f Frame) {
	s.metrics.FrameReceived(f.Type)

	// Replies answer our own commands and are never throttled.
	if f.Type == FrameReply {
		s.resolve(f)
		return
	}
	if !c.limiter.Allow() {
		s.metrics.FrameRejected("rate_limited")
		s.sendError(c, f.ID, "rate limit exceeded")
		return
	}

	switch f.Type {
	case FrameVoiceEvent:
		s.handleVoiceEvent(c, f)
	case FrameInteraction:
		s.handleInteraction(c, f)
	default:
		s.metrics.FrameRejected("unknown_type")
		s.sendError(c, f.ID, fmt.Sprintf("unknown frame type: %s", f.Type))
	}
}

func (s *Server) handleVoiceEvent(c *conn, f Frame) {
	var ev domain.VoiceEvent
	if err := json.Unmarshal(f.Payload, &ev); err != nil {
		s.metrics.FrameRejected("invalid_payload")
		s.sendError(c, f.ID, fmt.Sprintf("invalid voice_event payload: %v", err))
		return
	}
	if s.events == nil {
		s.sendError(c, f.ID, "no event handler bound")
		return
	}

	// Keyed by member so one member's join/leave/move run in order.
	err := s.pool.Submit(uint64(ev.Member.ID), func(ctx context.Context) {
		ctx, span := tracing.TraceBridgeMessage(ctx, FrameVoiceEvent)
		defer span.End()

		results := s.events.HandleEvent(ctx, ev)
		payloads := make([]ResultPayload, 0, len(results))
		for _, res := range results {
			payloads = append(payloads, NewResultPayload(res))
		}
		s.reply(c, f.ID, payloads)
	})
	if err != nil {
		s.metrics.FrameRejected("queue_full")
		s.sendError(c, f.ID, err.Error())
	}
}

func (s *Server) handleInteraction(c *conn, f Frame) {
	var in Interaction
	if err := json.Unmarshal(f.Payload, &in); err != nil {
		s.metrics.FrameRejected("invalid_payload")
		s.sendError(c, f.ID, fmt.Sprintf("invalid interaction payload: %v", err))
		return
	}
	if s.interactions == nil {
		s.sendError(c, f.ID, "no interaction handler bound")
		return
	}

	if field, needsInput := in.PromptField(); needsInput {
		if collector, ok := s.interactions.(InputCollector); ok {
			s.collectInput(c, f.ID, in, field, collector)
			return
		}
	}
	s.submitInteraction(c, f.ID, in)
}

// submitInteraction queues in on the actor's worker so one member's
// controls apply in order.
func (s *Server) submitInteraction(c *conn, id string, in Interaction) {
	err := s.pool.Submit(uint64(in.Actor.ID), func(ctx context.Context) {
		ctx, span := tracing.TraceBridgeMessage(ctx, FrameInteraction)
		defer span.End()

		s.reply(c, id, NewResultPayload(s.interactions.HandleInteraction(ctx, in)))
	})
	if err != nil {
		s.metrics.FrameRejected("queue_full")
		s.sendError(c, id, err.Error())
	}
}

// collectInput waits for the member's answer outside the worker pool, so
// a pending prompt never delays other members' events. The completed
// interaction is then queued like any other.
func (s *Server) collectInput(c *conn, id string, in Interaction, field string, collector InputCollector) {
	go func() {
		ctx, span := tracing.TraceBridgeMessage(s.pool.Context(), "prompt")
		value, res := collector.CollectInput(ctx, in, field)
		span.End()

		if !res.OK() {
			s.reply(c, id, NewResultPayload(res))
			return
		}
		in.Value = value
		s.submitInteraction(c, id, in)
	}()
}

func (s *Server) reply(c *conn, id string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Errorw("failed to encode result", "id", id, "error", err)
		return
	}
	if err := c.write(Frame{Type: FrameResult, ID: id, Payload: data}); err != nil {
		s.logger.Infow("failed to send result", "conn_id", c.id, "id", id, "error", err)
	}
}

func (s *Server) sendError(c *conn, id, message string) {
	if err := c.write(Frame{Type: FrameError, ID: id, Error: message}); err != nil {
		s.logger.Infow("failed to send error frame", "conn_id", c.id, "error", err)
	}
}

func (s *Server) resolve(f Frame) {
	s.pendingMu.Lock()
	p, found := s.pending[f.ID]
	if found {
		delete(s.pending, f.ID)
	}
	s.pendingMu.Unlock()

	if !found {
		s.logger.Debugw("reply for unknown command", "id", f.ID)
		return
	}
	p.reply <- f
}

// Call sends a command to the gateway and waits for its reply. out, when
// not nil, receives the decoded reply payload.
func (s *Server) Call(ctx context.Context, op string, args, out interface{}) error {
	ctx, span := tracing.TracePlatformCommand(ctx, op)
	defer span.End()

	s.mu.RLock()
	c := s.current
	s.mu.RUnlock()
	if c == nil {
		return domain.ErrBridgeUnavailable
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", op, err)
	}

	id := uuid.NewString()
	reply := make(chan Frame, 1)

	s.pendingMu.Lock()
	s.pending[id] = pendingCall{conn: c, reply: reply}
	s.pendingMu.Unlock()

	forget := func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}

	if err := c.write(Frame{Type: FrameCommand, ID: id, Op: op, Payload: payload}); err != nil {
		forget()
		tracing.RecordError(ctx, err)
		return fmt.Errorf("%w: %v", domain.ErrBridgeUnavailable, err)
	}

	select {
	case <-ctx.Done():
		forget()
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case f := <-reply:
		if f.Type == frameDisconnected {
			return domain.ErrBridgeUnavailable
		}
		if f.Error != "" {
			err := fmt.Errorf("%w: %s: %s", domain.ErrCommandRejected, op, f.Error)
			tracing.RecordError(ctx, err)
			return err
		}
		if out != nil && len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, out); err != nil {
				return fmt.Errorf("invalid %s reply: %w", op, err)
			}
		}
		return nil
	}
}

type noopMetrics struct{}

func (noopMetrics) BridgeConnected(bool) {}
func (noopMetrics) FrameReceived(string) {}
func (noopMetrics) FrameRejected(string) {}
