package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/domain"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/repository"
	"realtime-chat/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Message{},
		&domain.MessageReaction{},
		&domain.MessageRead{},
	))
	return db
}

type failingUsers struct{ service.UserService }

func (failingUsers) Login(ctx context.Context, username string) (*domain.User, error) {
	return nil, domain.ErrPersistence
}

func TestAuthHandler_Login(t *testing.T) {
	db := setupTestDB(t)
	users := service.NewUserService(repository.NewUserRepository(db), zap.NewNop())
	jwtm := auth.NewJWTManager("test-secret", time.Hour)
	h := NewAuthHandler(users, jwtm, zap.NewNop())

	r := gin.New()
	r.POST("/api/auth/login", h.Login)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"username":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "", resp.User.Avatar)

	identity, err := jwtm.Verify(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, identity.UserID.String())

	again := post(`{"username":"alice"}`)
	var resp2 LoginResponse
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &resp2))
	assert.Equal(t, resp.User.ID, resp2.User.ID)

	for _, body := range []string{`{}`, `{"username":"   "}`, `not json`} {
		w := post(body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"username required"}`, w.Body.String())
	}

	w = post(`{"username":"` + strings.Repeat("x", 101) + `"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_LoginStoreFailure(t *testing.T) {
	h := NewAuthHandler(failingUsers{}, auth.NewJWTManager("s", time.Hour), zap.NewNop())
	r := gin.New()
	r.POST("/login", h.Login)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"bob"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"server error"}`, w.Body.String())
}

type nopConn struct{ id string }

func (c nopConn) ID() string              { return c.id }
func (c nopConn) Send(frame []byte) error { return nil }

func TestPresenceHandler_GetOnlineUsers(t *testing.T) {
	presence := hub.NewPresence()
	bob := domain.Identity{UserID: uuid.New(), Username: "bob"}
	alice := domain.Identity{UserID: uuid.New(), Username: "alice"}
	presence.AddConnection(bob, nopConn{id: "1"})
	presence.AddConnection(alice, nopConn{id: "2"})
	presence.AddConnection(alice, nopConn{id: "3"})

	r := gin.New()
	r.GET("/presence/online", NewPresenceHandler(presence).GetOnlineUsers)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/presence/online", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp OnlineUsersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, "alice", resp.Users[0].Username)
	assert.Equal(t, "bob", resp.Users[1].Username)
}

func TestMessageHandler_GetMessages(t *testing.T) {
	db := setupTestDB(t)
	users := service.NewUserService(repository.NewUserRepository(db), zap.NewNop())
	messages := service.NewMessageService(repository.NewMessageRepository(db), zap.NewNop())
	jwtm := auth.NewJWTManager("test-secret", time.Hour)
	ctx := context.Background()

	alice, err := users.Login(ctx, "alice")
	require.NoError(t, err)
	for _, content := range []string{"a", "b", "c"} {
		_, err := messages.Send(ctx, service.SendInput{SenderID: alice.ID, Room: "go", Content: content})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	token, err := jwtm.Issue(alice)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/rooms/:room/messages", middleware.Auth(jwtm), NewMessageHandler(messages, zap.NewNop()).GetMessages)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/rooms/go/messages?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var resp MessagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "go", resp.Room)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "b", resp.Messages[0].Content)
	assert.Equal(t, "c", resp.Messages[1].Content)

	assert.Equal(t, http.StatusBadRequest, get("/rooms/go/messages?limit=zero").Code)

	foreign := domain.DirectRoomKey(uuid.New(), uuid.New())
	assert.Equal(t, http.StatusForbidden, get("/rooms/"+foreign+"/messages").Code)

	req := httptest.NewRequest(http.MethodGet, "/rooms/go/messages", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthHandler(t *testing.T) {
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := NewHealthHandler(db, client)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/api/health", h.APIHealth)

	serve := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, serve("/health").Code)
	assert.JSONEq(t, `{"ok":true}`, serve("/api/health").Body.String())
	ready := serve("/ready")
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok","redis":"ok"}}`, ready.Body.String())

	mr.SetError("LOADING")
	w := serve("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"unreachable`)

	noRedis := gin.New()
	noRedis.GET("/ready", NewHealthHandler(db, nil).Ready)
	w = httptest.NewRecorder()
	noRedis.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
