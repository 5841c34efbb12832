package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/gokatarajesh/mortgage-trainer/pkg/http/ws"
)

func newTestHandler(t *testing.T, hub *ws.Hub, opts LedgerOptions) (*HTTPHandler, *Ledger) {
	t.Helper()
	ledger, _ := newTestLedger(opts)
	return NewHTTPHandler(ledger, hub, nil, zerolog.Nop()), ledger
}

func postScore(t *testing.T, h *HTTPHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/high-scores", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleHighScores(rec, req)
	return rec
}

func TestSubmitHighScore(t *testing.T) {
	h, _ := newTestHandler(t, nil, LedgerOptions{})

	rec := postScore(t, h, `{"name":"  Priya ","score":42,"total":50,"mode":"exam"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Mode     string  `json:"mode"`
		Percent  float64 `json:"percent"`
		Passed   bool    `json:"passed"`
		Champion bool    `json:"champion"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Priya", resp.Name)
	assert.Equal(t, "exam", resp.Mode)
	assert.InDelta(t, 84.0, resp.Percent, 0.001)
	assert.True(t, resp.Passed)
	assert.True(t, resp.Champion)

	rec = postScore(t, h, `{"name":"Sam","score":39,"total":50,"mode":"exam"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Passed)
	assert.False(t, resp.Champion)
}

func TestSubmitHighScoreValidation(t *testing.T) {
	h, _ := newTestHandler(t, nil, LedgerOptions{})

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"practice mode", `{"name":"a","score":1,"total":2,"mode":"practice"}`},
		{"missing name", `{"name":"  ","score":1,"total":2,"mode":"exam"}`},
		{"long name", `{"name":"` + strings.Repeat("x", 41) + `","score":1,"total":2,"mode":"exam"}`},
		{"missing score", `{"name":"a","total":2,"mode":"exam"}`},
		{"zero total", `{"name":"a","score":0,"total":0,"mode":"exam"}`},
		{"score above total", `{"name":"a","score":3,"total":2,"mode":"exam"}`},
		{"negative score", `{"name":"a","score":-1,"total":2,"mode":"exam"}`},
		{"total too large", `{"name":"a","score":1,"total":201,"mode":"scenario"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postScore(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestWeeklyAndAllTimeEndpoints(t *testing.T) {
	h, ledger := newTestHandler(t, nil, LedgerOptions{})
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/api/all-time-high-score?mode=scenario", nil)
	rec := httptest.NewRecorder()
	h.HandleAllTimeHigh(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	_, err := ledger.Record(ctx, "A", 49, 50, ModeScenario)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, "B", 45, 50, ModeScenario)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	h.HandleAllTimeHigh(rec, req)
	var champ HighScore
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&champ))
	assert.Equal(t, "A", champ.Name)

	req = httptest.NewRequest(http.MethodGet, "/api/high-scores?mode=scenario&limit=5", nil)
	rec = httptest.NewRecorder()
	h.HandleHighScores(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var weekly struct {
		Mode       string      `json:"mode"`
		HighScores []HighScore `json:"highScores"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&weekly))
	assert.Equal(t, "scenario", weekly.Mode)
	assert.Equal(t, []string{"B"}, names(weekly.HighScores))

	req = httptest.NewRequest(http.MethodGet, "/api/high-scores?mode=topic", nil)
	rec = httptest.NewRecorder()
	h.HandleHighScores(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/high-scores", nil)
	rec = httptest.NewRecorder()
	h.HandleHighScores(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebSocketUnavailableWithoutHub(t *testing.T) {
	h, _ := newTestHandler(t, nil, LedgerOptions{})
	rec := httptest.NewRecorder()
	h.HandleWS(rec, httptest.NewRequest(http.MethodGet, "/ws/leaderboard", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestLiveLeaderboardFeed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := ws.NewHub(zerolog.Nop())
	h, _ := newTestHandler(t, hub, LedgerOptions{Publisher: NewRedisPublisher(rdb, "")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewBroadcaster(rdb, hub, "", zerolog.Nop()).Run(ctx) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, mode := range Modes() {
		msg := readMessage(t, conn)
		assert.Equal(t, ws.TypeLeaderboardSnapshot, msg.Type)
		var payload ws.LeaderboardUpdatePayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, string(mode), payload.Mode)
		assert.Nil(t, payload.Champion)
	}

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypePing, RequestID: "r1"}))
	pong := readMessage(t, conn)
	assert.Equal(t, ws.TypePong, pong.Type)
	assert.Equal(t, "r1", pong.RequestID)

	rec := postScore(t, h, `{"name":"Ana","score":35,"total":50,"mode":"exam"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	msg := readMessage(t, conn)
	require.Equal(t, ws.TypeLeaderboardUpdate, msg.Type)
	var payload ws.LeaderboardUpdatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "exam", payload.Mode)
	require.NotNil(t, payload.Champion)
	assert.Equal(t, "Ana", payload.Champion.Name)
	assert.InDelta(t, 70.0, payload.Champion.Percent, 0.001)
	assert.Equal(t, payload.Champion.ID, payload.RecordedID)
	assert.Empty(t, payload.Top)
}

func TestHubPublisherWithoutRedis(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	h, _ := newTestHandler(t, hub, LedgerOptions{Publisher: NewHubPublisher(hub)})

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	for range Modes() {
		assert.Equal(t, ws.TypeLeaderboardSnapshot, readMessage(t, conn).Type)
	}

	rec := postScore(t, h, `{"name":"Ben","score":9,"total":10,"mode":"scenario"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	msg := readMessage(t, conn)
	require.Equal(t, ws.TypeLeaderboardUpdate, msg.Type)
	var payload ws.LeaderboardUpdatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "scenario", payload.Mode)
	require.NotNil(t, payload.Champion)
	assert.Equal(t, "Ben", payload.Champion.Name)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://trainer.example.com/ "})

	req := httptest.NewRequest(http.MethodGet, "/ws/leaderboard", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://trainer.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
