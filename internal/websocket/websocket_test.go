package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duelgate/internal/auth"
	"duelgate/internal/config"
	"duelgate/internal/gateway"
	"duelgate/internal/handle/message"
	"duelgate/internal/session"
)

type envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	*httptest.Server
	gw       *gateway.Gateway
	verifier *auth.JWTVerifier
}

func newTestServer(t *testing.T, cfg config.WSConfig) *testServer {
	t.Helper()
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = 16
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}
	verifier := auth.NewJWTVerifier("test-secret", nil)
	hub := NewHub(nil)
	gw := gateway.New(verifier, hub, gateway.Options{})
	srv := NewServer(cfg, gw, hub, message.NewHandler(gw, nil, nil), nil)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, gw: gw, verifier: verifier}
}

func (ts *testServer) dial(t *testing.T, id session.PlayerID, header http.Header) *websocket.Conn {
	t.Helper()
	token, err := ts.verifier.Issue(id, "", time.Minute)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readType reads until a message of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m envelope
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, id, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{ID: id, Type: typ, Data: raw}))
}

func TestServer_MatchFramesAndDisconnect(t *testing.T) {
	ts := newTestServer(t, config.WSConfig{})

	a := ts.dial(t, 1, nil)
	hello := readType(t, a, gateway.EventConnected)
	assert.JSONEq(t, `{"playerId":1}`, string(hello.Data))

	b := ts.dial(t, 2, nil)
	readType(t, b, gateway.EventConnected)

	send(t, b, "m1", "matchMaking", struct{}{})
	for _, c := range []*websocket.Conn{a, b} {
		ev := readType(t, c, gateway.EventNewSession)
		assert.JSONEq(t, `{"sessionId":"1:2:1","hostId":1,"guestId":2}`, string(ev.Data))
	}

	send(t, a, "f1", "newFrame", map[string]any{"sequenceNumber": 1, "payload": map[string]int{"x": 5}})
	for _, c := range []*websocket.Conn{a, b} {
		ev := readType(t, c, "newFrame")
		assert.JSONEq(t, `{"sequenceNumber":1,"payload":{"x":5}}`, string(ev.Data))
	}

	require.NoError(t, b.Close())
	readType(t, a, gateway.EventOpponentLeft)
	assert.Eventually(t, func() bool {
		return ts.gw.Status(2) == gateway.StatusOffline && ts.gw.Status(1) == gateway.StatusWaiting
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t, config.WSConfig{})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=nope"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, gateway.Stats{}, ts.gw.Stats())
}

func TestServer_BearerHeaderAndUnknownType(t *testing.T) {
	ts := newTestServer(t, config.WSConfig{})
	token, err := ts.verifier.Issue(7, "", time.Minute)
	require.NoError(t, err)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	readType(t, conn, gateway.EventConnected)
	send(t, conn, "q", "teleport", struct{}{})
	reply := readType(t, conn, "error")
	assert.Equal(t, "q", reply.ID)
	assert.JSONEq(t, `{"error":"unknown_type","message":"Unknown message type"}`, string(reply.Data))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	reply = readType(t, conn, "error")
	assert.Contains(t, string(reply.Data), "invalid_json")
}

func TestServer_CheckOrigin(t *testing.T) {
	ts := newTestServer(t, config.WSConfig{AllowedOrigin: "https://duel.example"})
	token, err := ts.verifier.Issue(1, "", time.Minute)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := ts.dial(t, 1, http.Header{"Origin": []string{"https://duel.example"}})
	readType(t, conn, gateway.EventConnected)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, config.WSConfig{})
	a := ts.dial(t, 1, nil)
	readType(t, a, gateway.EventConnected)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats gateway.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, gateway.Stats{Connected: 1, Waiting: 1}, stats)
}

func TestTokenFrom(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, "abc", tokenFrom(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", tokenFrom(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "from-cookie", tokenFrom(r))

	r = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})
	assert.Equal(t, "abc", tokenFrom(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: ""})
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", tokenFrom(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.Empty(t, tokenFrom(r))
}
