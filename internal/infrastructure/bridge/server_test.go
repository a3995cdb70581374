package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/services"
	"tempvoice/pkg/workerpool"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.VoiceEvent
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev domain.VoiceEvent) []services.Result {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	return []services.Result{{
		Kind: services.ResultOK,
		Room: &domain.TempRoom{RoomID: 500, Owner: ev.Member.ID},
	}}
}

func newTestServer(t *testing.T, auth services.AuthService) (*Server, *httptest.Server) {
	t.Helper()
	return newConfiguredServer(t, DefaultConfig(), auth)
}

func newConfiguredServer(t *testing.T, cfg Config, auth services.AuthService) (*Server, *httptest.Server) {
	t.Helper()
	pool := workerpool.New(2, 8)
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	server := NewServer(cfg, auth, pool, zap.NewNop().Sugar())
	httpServer := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(httpServer.Close)
	return server, httpServer
}

func wsURL(httpServer *httptest.Server) string {
	return "ws" + strings.TrimPrefix(httpServer.URL, "http")
}

func dialGateway(t *testing.T, httpServer *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(httpServer), header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	var ready Frame
	require.NoError(t, ws.ReadJSON(&ready))
	require.Equal(t, FrameReady, ready.Type)
	return ws
}

// answerCommands replies to every command frame with reply(op).
func answerCommands(ws *websocket.Conn, reply func(f Frame) Frame) {
	go func() {
		for {
			var f Frame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
			if f.Type != FrameCommand {
				continue
			}
			out := reply(f)
			out.Type = FrameReply
			out.ID = f.ID
			if err := ws.WriteJSON(out); err != nil {
				return
			}
		}
	}()
}

func TestServer_CallWithoutGateway(t *testing.T) {
	server, _ := newTestServer(t, nil)

	err := server.Call(context.Background(), OpDeleteRoom, deleteRoomArgs{}, nil)
	assert.ErrorIs(t, err, domain.ErrBridgeUnavailable)
	assert.False(t, server.Connected())
}

func TestPlatform_CreateRoomRoundTrip(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	ws := dialGateway(t, httpServer, nil)

	seen := make(chan Frame, 1)
	answerCommands(ws, func(f Frame) Frame {
		seen <- f
		payload, _ := json.Marshal(createRoomReply{RoomID: 4242})
		return Frame{Payload: payload}
	})

	platform := NewPlatform(server)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := platform.CreateRoom(ctx, domain.CreateRoomRequest{GuildID: 1, ParentID: 2, Name: "U's room"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelID(4242), id)

	cmd := <-seen
	assert.Equal(t, OpCreateRoom, cmd.Op)
	var req domain.CreateRoomRequest
	require.NoError(t, json.Unmarshal(cmd.Payload, &req))
	assert.Equal(t, "U's room", req.Name)
	assert.True(t, server.Connected())
}

func TestPlatform_RejectedCommand(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	ws := dialGateway(t, httpServer, nil)
	answerCommands(ws, func(Frame) Frame { return Frame{Error: "missing permissions"} })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := NewPlatform(server).DisconnectMember(ctx, 1, 2)
	assert.ErrorIs(t, err, domain.ErrCommandRejected)
	assert.Contains(t, err.Error(), "missing permissions")
}

func TestPlatform_CommandTimeout(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	dialGateway(t, httpServer, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewPlatform(server).MoveMember(ctx, 1, 2, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlatform_PromptReply(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	ws := dialGateway(t, httpServer, nil)
	answerCommands(ws, func(f Frame) Frame {
		var args promptArgs
		_ = json.Unmarshal(f.Payload, &args)
		payload, _ := json.Marshal(promptReply{Value: "field=" + args.Field})
		return Frame{Payload: payload}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	value, err := NewPlatform(server).Prompt(ctx, 7, services.FieldRoomName)
	require.NoError(t, err)
	assert.Equal(t, "field=name", value)
}

func TestServer_DisconnectFailsPendingCalls(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	ws := dialGateway(t, httpServer, nil)

	go func() {
		var f Frame
		if err := ws.ReadJSON(&f); err == nil {
			ws.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := NewPlatform(server).DeleteRoom(ctx, 1, 2, "empty")
	assert.ErrorIs(t, err, domain.ErrBridgeUnavailable)
	assert.Eventually(t, func() bool { return !server.Connected() }, time.Second, 10*time.Millisecond)
}

func TestServer_VoiceEventDispatch(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	handler := &recordingHandler{}
	server.Bind(handler, nil)
	ws := dialGateway(t, httpServer, nil)

	ev := domain.VoiceEvent{
		Type:   domain.VoiceJoin,
		Member: domain.Member{ID: 9, Username: "U"},
		To:     &domain.Room{ID: 100, GuildID: 1, Voice: true},
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Type: FrameVoiceEvent, ID: "evt-1", Payload: payload}))

	var result Frame
	require.NoError(t, ws.ReadJSON(&result))
	assert.Equal(t, FrameResult, result.Type)
	assert.Equal(t, "evt-1", result.ID)

	var results []ResultPayload
	require.NoError(t, json.Unmarshal(result.Payload, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Kind)
	assert.Equal(t, domain.ChannelID(500), results[0].RoomID)
	assert.Equal(t, domain.MemberID(9), results[0].Owner)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.events, 1)
	assert.Equal(t, domain.ChannelID(100), handler.events[0].To.ID)
}

func TestServer_InteractionWithoutTarget(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	server.Bind(&recordingHandler{}, NewDispatcher(nil, nil))
	ws := dialGateway(t, httpServer, nil)

	payload, _ := json.Marshal(Interaction{Action: ActionKick, Actor: domain.Member{ID: 1}})
	require.NoError(t, ws.WriteJSON(Frame{Type: FrameInteraction, ID: "i-1", Payload: payload}))

	var result Frame
	require.NoError(t, ws.ReadJSON(&result))
	var res ResultPayload
	require.NoError(t, json.Unmarshal(result.Payload, &res))
	assert.Equal(t, "invalid_input", res.Kind)
}

func TestServer_RejectsUnknownAndMalformedFrames(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	server.Bind(&recordingHandler{}, nil)
	ws := dialGateway(t, httpServer, nil)

	require.NoError(t, ws.WriteJSON(Frame{Type: "bogus", ID: "b-1"}))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "b-1", f.ID)

	require.NoError(t, ws.WriteJSON(Frame{Type: FrameVoiceEvent, ID: "b-2", Payload: json.RawMessage(`"nope"`)}))
	require.NoError(t, ws.ReadJSON(&f))
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "b-2", f.ID)
}

func TestServer_RequiresBridgeToken(t *testing.T) {
	auth := services.NewAuthService("secret", "tempvoice", time.Hour)
	_, httpServer := newTestServer(t, auth)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(httpServer), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	operator, err := auth.GenerateToken("ops", services.RoleOperator)
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(httpServer), http.Header{"Authorization": {"Bearer " + operator}})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bridgeToken, err := auth.GenerateToken("gateway", services.RoleBridge)
	require.NoError(t, err)
	dialGateway(t, httpServer, http.Header{"Authorization": {"Bearer " + bridgeToken}})
}

func TestServer_ReconnectReplacesConnection(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	first := dialGateway(t, httpServer, nil)
	second := dialGateway(t, httpServer, nil)

	first.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	answerCommands(second, func(Frame) Frame { return Frame{} })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, NewPlatform(server).SendDirect(ctx, 1, "hi"))
	assert.True(t, server.Connected())
}

func sendVoiceJoin(t *testing.T, ws *websocket.Conn, id string, member domain.MemberID) {
	t.Helper()
	payload, err := json.Marshal(domain.VoiceEvent{
		Type:   domain.VoiceJoin,
		Member: domain.Member{ID: member, Username: "U"},
		To:     &domain.Room{ID: 100, GuildID: 1, Voice: true},
	})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Type: FrameVoiceEvent, ID: id, Payload: payload}))
}

func TestServer_ZeroRateDisablesLimiting(t *testing.T) {
	cfg := Config{PingInterval: time.Minute, ReadTimeout: 2 * time.Minute, WriteTimeout: time.Second}
	server, httpServer := newConfiguredServer(t, cfg, nil)
	server.Bind(&recordingHandler{}, nil)
	ws := dialGateway(t, httpServer, nil)

	for i, id := range []string{"evt-1", "evt-2", "evt-3"} {
		sendVoiceJoin(t, ws, id, domain.MemberID(10+i))

		var f Frame
		require.NoError(t, ws.ReadJSON(&f))
		assert.Equal(t, FrameResult, f.Type, f.Error)
		assert.Equal(t, id, f.ID)
	}
}

func TestServer_RepliesBypassRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessagesPerSecond = 0.001
	cfg.Burst = 1
	server, httpServer := newConfiguredServer(t, cfg, nil)
	server.Bind(&recordingHandler{}, nil)
	ws := dialGateway(t, httpServer, nil)

	// The only token goes to the first event; the second is throttled.
	sendVoiceJoin(t, ws, "evt-1", 10)
	sendVoiceJoin(t, ws, "evt-2", 11)
	seen := map[string]string{}
	for range 2 {
		var f Frame
		require.NoError(t, ws.ReadJSON(&f))
		seen[f.ID] = f.Type
	}
	assert.Equal(t, FrameResult, seen["evt-1"])
	assert.Equal(t, FrameError, seen["evt-2"])

	answerCommands(ws, func(Frame) Frame { return Frame{} })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, NewPlatform(server).SendDirect(ctx, 1, "hi"))
}

type slowPromptHandler struct {
	release chan struct{}
	applied chan Interaction
}

func (h *slowPromptHandler) HandleInteraction(_ context.Context, in Interaction) services.Result {
	h.applied <- in
	return services.Result{Kind: services.ResultOK}
}

func (h *slowPromptHandler) CollectInput(ctx context.Context, _ Interaction, field string) (string, services.Result) {
	select {
	case <-h.release:
		return "late night", services.Result{Kind: services.ResultOK}
	case <-ctx.Done():
		return "", services.Result{Kind: services.ResultIgnored}
	}
}

func TestServer_PendingPromptDoesNotBlockOtherMembers(t *testing.T) {
	server, httpServer := newTestServer(t, nil)
	prompts := &slowPromptHandler{release: make(chan struct{}), applied: make(chan Interaction, 1)}
	server.Bind(&recordingHandler{}, prompts)
	ws := dialGateway(t, httpServer, nil)

	// Actor 1 and member 3 share a worker in a two-worker pool.
	payload, err := json.Marshal(Interaction{Action: ActionRename, Actor: domain.Member{ID: 1}, Room: domain.Room{ID: 300, GuildID: 1}})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Frame{Type: FrameInteraction, ID: "i-1", Payload: payload}))
	sendVoiceJoin(t, ws, "evt-1", 3)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	assert.Equal(t, "evt-1", f.ID)
	assert.Equal(t, FrameResult, f.Type)

	close(prompts.release)
	require.NoError(t, ws.ReadJSON(&f))
	assert.Equal(t, "i-1", f.ID)
	var res ResultPayload
	require.NoError(t, json.Unmarshal(f.Payload, &res))
	assert.Equal(t, "ok", res.Kind)

	applied := <-prompts.applied
	assert.Equal(t, ActionRename, applied.Action)
	assert.Equal(t, "late night", applied.Value)
}

func TestInteraction_PromptField(t *testing.T) {
	field, ok := Interaction{Action: ActionResize}.PromptField()
	assert.True(t, ok)
	assert.Equal(t, services.FieldRoomSize, field)

	_, ok = Interaction{Action: ActionResize, Value: "5"}.PromptField()
	assert.False(t, ok)
	_, ok = Interaction{Action: ActionKick}.PromptField()
	assert.False(t, ok)
}
