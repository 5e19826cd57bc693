package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/framechat/server/internal/assistant"
	"github.com/framechat/server/internal/player"
	chatroomredis "github.com/framechat/server/internal/repository/chatroom/redis"
	"github.com/framechat/server/internal/repository/connection/inmemory"
	"github.com/framechat/server/internal/repository/conversation/sqlite"
	"github.com/framechat/server/internal/service/chat"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrame = "data:image/jpeg;base64,AAAA"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	store, err := sqlite.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	connRepo := inmemory.NewRepo(logger)
	redisRepo := chatroomredis.NewRepo(rc, time.Hour, logger)
	svc := chat.NewService(
		redisRepo,
		store,
		redisRepo,
		connRepo,
		assistant.New(assistant.Config{}),
		clock.New(),
		chat.Config{Player: player.DefaultConfig(), UploadDir: t.TempDir()},
		logger,
	)

	srv := httptest.NewServer(NewController(svc, connRepo, logger).GetMux())
	t.Cleanup(svc.Wait)
	t.Cleanup(srv.Close)

	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set(userIDHeader, "u1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &result))
	}

	return resp, result
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingUserID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/chatrooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func chatRoomBody(id string, seconds float64) map[string]any {
	return map[string]any{
		"id":                 id,
		"video_id":           "video1",
		"name":               "00:42",
		"captured_frame":     testFrame,
		"frame_time":         "2024-05-01T12:00:00Z",
		"video_current_time": seconds,
		"messages": []map[string]any{
			{"id": 1, "text": "Ask me anything about this frame!", "sender": "ai", "timestamp": "2024-05-01T12:00:00Z"},
		},
	}
}

func TestChatRoomAPI(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/chatrooms/save", chatRoomBody("room1", 42.5))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", body["status"])

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/chatrooms/save", chatRoomBody("room1", 42.5))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "updated", body["status"])

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/v1/chatrooms/save", chatRoomBody("room2", 61))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/chatrooms/room1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	room := body["chatroom"].(map[string]any)
	assert.Equal(t, "00:42", room["name"])
	assert.Equal(t, 42.5, room["video_current_time"])
	assert.Len(t, room["messages"], 1)

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/chatrooms/video/video1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["chatrooms"], 2)

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/chatrooms?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["chatrooms"], 1)

	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/chatrooms/room1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/v1/chatrooms/room1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/chatrooms/room1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveChatRoomValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/v1/chatrooms/save", chatRoomBody("", -3))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, body["errors"], 2)

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/v1/chatrooms/save", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/api/v1/chatrooms?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversationAPI(t *testing.T) {
	srv := newTestServer(t)

	for _, q := range []string{"Who is speaking?", "What is on the board?"} {
		resp, _ := doJSON(t, srv, http.MethodPost, "/api/v1/conversations/save", map[string]any{
			"video_id":  "video1",
			"question":  q,
			"answer":    "an answer",
			"timestamp": 12.5,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, srv, http.MethodGet, "/api/v1/conversations/history?limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["conversations"], 2)

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/conversations/search", map[string]any{"query": "BOARD"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "What is on the board?", results[0].(map[string]any)["question"])

	resp, _ = doJSON(t, srv, http.MethodPost, "/api/v1/conversations/search", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func upload(t *testing.T, srv *httptest.Server, filename, contentType string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/videos", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(userIDHeader, "u1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return resp, body
}

func TestUploadVideo(t *testing.T) {
	srv := newTestServer(t)

	resp, body := upload(t, srv, "lecture.mp4", "video/mp4")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["video_id"])
	assert.Equal(t, "lecture", body["title"])

	resp, _ = upload(t, srv, "notes.txt", "text/plain")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/player?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

type testOutput struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil skips messages until one of messageType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, messageType string) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var out testOutput
		require.NoError(t, conn.ReadJSON(&out))
		if out.Type != messageType {
			continue
		}

		var payload map[string]any
		require.NoError(t, json.Unmarshal(out.Payload, &payload))
		return payload
	}
}

func send(t *testing.T, conn *websocket.Conn, messageType string, payload any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": messageType, "payload": payload}))
}

func TestPlayerWebsocket(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "user-id=u1&video-id=video1&video-name=lecture")

	loaded := readUntil(t, conn, chat.EventRoomsLoaded)
	assert.NotEmpty(t, loaded["player_id"])
	assert.Empty(t, loaded["rooms"])

	send(t, conn, "PAUSE", map[string]any{"current_time": 42.7, "frame": testFrame})

	created := readUntil(t, conn, chat.EventRoomCreated)
	room := created["room"].(map[string]any)
	assert.Equal(t, "00:42", room["name"])

	active := readUntil(t, conn, chat.EventActiveRoomChanged)
	assert.Equal(t, room["id"], active["room_id"])

	send(t, conn, "SEND_MESSAGE", map[string]any{"text": "what is this?"})
	userMsg := readUntil(t, conn, chat.EventMessageAdded)
	assert.Equal(t, "user", userMsg["message"].(map[string]any)["sender"])
	aiMsg := readUntil(t, conn, chat.EventMessageAdded)
	assert.Equal(t, chat.NoAPIKeyMessage, aiMsg["message"].(map[string]any)["text"])

	assert.Eventually(t, func() bool {
		_, body := doJSON(t, srv, http.MethodGet, "/api/v1/chatrooms/video/video1", nil)
		rooms, _ := body["chatrooms"].([]any)
		if len(rooms) != 1 {
			return false
		}
		messages, _ := rooms[0].(map[string]any)["messages"].([]any)
		return len(messages) == 3
	}, 3*time.Second, 20*time.Millisecond, "the stored room must hold the seed, question and reply")

	// a second player for the same video starts with the stored room
	other := dial(t, srv, "user-id=u1&video-id=video1")
	loaded = readUntil(t, other, chat.EventRoomsLoaded)
	assert.Len(t, loaded["rooms"], 1)

	send(t, conn, "DELETE_ROOM", map[string]any{"room_id": room["id"]})
	deleted := readUntil(t, conn, chat.EventRoomDeleted)
	assert.Equal(t, room["id"], deleted["room_id"])
	assert.Empty(t, deleted["rooms"])

	deleted = readUntil(t, other, chat.EventRoomDeleted)
	assert.Equal(t, room["id"], deleted["room_id"])
}

func TestPlayerWebsocketSeekSuppressesPause(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "user-id=u1")
	readUntil(t, conn, chat.EventRoomsLoaded)

	send(t, conn, "SEEKING", map[string]any{"current_time": 10})
	send(t, conn, "PAUSE", map[string]any{"current_time": 10, "frame": testFrame})
	send(t, conn, "SEEKED", map[string]any{"current_time": 80})

	time.Sleep(time.Second)

	// the first message after the debounce window must be the reply to UNKNOWN
	send(t, conn, "UNKNOWN", nil)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var out testOutput
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "ERROR", out.Type)
}

func TestPlayerWebsocketErrors(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "user-id=u1")
	readUntil(t, conn, chat.EventRoomsLoaded)

	send(t, conn, "SEND_MESSAGE", map[string]any{"text": ""})
	failed := readUntil(t, conn, "ERROR")
	assert.Len(t, failed["errors"], 1)

	send(t, conn, "SEND_MESSAGE", map[string]any{"text": "hi"})
	failed = readUntil(t, conn, "ERROR")
	assert.Equal(t, "failed to send message: "+chat.ErrNoActiveRoom.Error(), failed["message"])

	send(t, conn, "SWITCH_ROOM", map[string]any{"room_id": "missing"})
	failed = readUntil(t, conn, "ERROR")
	assert.Equal(t, "SWITCH_ROOM", failed["message_type"])
}

func TestPlayerWebsocketRequiresUser(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/player"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOpenAIKeyAPI(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodGet, "/api/v1/users/openai-key/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["has_api_key"])
	assert.NotContains(t, body, "last_updated")

	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/users/openai-key", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/users/openai-key/save", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, body["errors"], 1)

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/users/openai-key/save", map[string]any{"api_key": "sk-user"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/users/openai-key/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["has_api_key"])
	assert.Equal(t, true, body["api_key_validated"])
	assert.Contains(t, body, "last_updated")
	assert.NotContains(t, body, "api_key")

	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/users/openai-key", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodGet, "/api/v1/users/openai-key/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["has_api_key"])

	resp, body = doJSON(t, srv, http.MethodPost, "/api/v1/users/openai-key/test", map[string]any{"test_message": "hi"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, body["errors"], 1)
}
