package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/challenges/scheduler/internal/api"
	"github.com/challenges/scheduler/internal/executor"
	"github.com/challenges/scheduler/internal/models"
	"github.com/challenges/scheduler/internal/orm"
	"github.com/challenges/scheduler/internal/platform"
	"github.com/challenges/scheduler/internal/store"
	"github.com/challenges/scheduler/internal/vault"
)

const testSecret = "test-cron-secret-0001"

type testStack struct {
	db     *gorm.DB
	store  *store.Store
	vault  *vault.Vault
	server *api.Server
}

// fakePlatform is an httptest stand-in for the game platform: room creation,
// chat, user lookup, and the OAuth token endpoint.
func fakePlatform(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rooms", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(platform.Room{ID: "room-1", Name: "Test Room"})
	})
	mux.HandleFunc("POST /rooms/{id}/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(platform.Owner{ID: r.PathValue("id"), IsAuthorized: true})
	})
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(platform.RefreshResult{
			AccessToken:  "refreshed-access",
			RefreshToken: "refreshed-refresh",
			ExpiresIn:    3600,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, orm.Migrate(db))

	v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	upstream := fakePlatform(t)
	client := platform.NewClient(upstream.URL, 5*time.Second, zap.NewNop())
	refresher := platform.NewRefresher(upstream.URL+"/oauth/token", "cid", "csecret", 5*time.Second, zap.NewNop())

	st := store.New(db, zap.NewNop())
	exec := executor.New(st, v, client, client, client, refresher, executor.Config{
		GracePeriod:   time.Hour,
		RefreshBuffer: 5 * time.Minute,
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
	}, zap.NewNop())

	server := api.NewServer(orm.NewFromGorm(db), st, exec, api.CronSecret(testSecret), zap.NewNop())

	return &testStack{db: db, store: st, vault: v, server: server}
}

func (s *testStack) request(t *testing.T, method, path string, body any, authorize func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorize != nil {
		authorize(req)
	}

	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, req)
	return rec
}

func bearer(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+testSecret)
}

func cronHeader(req *http.Request) {
	req.Header.Set("x-cron-secret", testSecret)
}

func TestTriggerGate(t *testing.T) {
	s := newTestStack(t)

	// no secret at all
	rec := s.request(t, http.MethodPost, "/api/v1/cron/execute", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var errResp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "UNAUTHORIZED", errResp.Code)

	// wrong secret
	rec = s.request(t, http.MethodPost, "/api/v1/cron/execute", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer wrong-secret-aaaa")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the CRUD surface is gated too
	rec = s.request(t, http.MethodGet, "/api/v1/schedules", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// both header forms admit
	rec = s.request(t, http.MethodPost, "/api/v1/cron/execute", nil, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.request(t, http.MethodPost, "/api/v1/cron/execute", nil, cronHeader)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthIsUngated(t *testing.T) {
	s := newTestStack(t)

	rec := s.request(t, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScheduleCRUD(t *testing.T) {
	s := newTestStack(t)

	// create
	rec := s.request(t, http.MethodPost, "/api/v1/schedules", map[string]any{
		"owner_id":       "owner-1",
		"scheduled_time": time.Now().Add(time.Hour).Format(time.RFC3339),
		"room_config":    map[string]any{"name": "Clan War", "items": []string{"arena-1"}},
		"chat_messages":  []string{"war starts now"},
	}, bearer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.ScheduledChallenge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, models.ChallengeStatusPending, created.Status)

	// get
	rec = s.request(t, http.MethodGet, "/api/v1/schedules/"+created.ID, nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	// list
	rec = s.request(t, http.MethodGet, "/api/v1/schedules?owner_id=owner-1", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.Count)

	// update with a past time is rejected
	rec = s.request(t, http.MethodPut, "/api/v1/schedules/"+created.ID, map[string]any{
		"scheduled_time": time.Now().Add(-time.Hour).Format(time.RFC3339),
	}, bearer)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// valid update
	rec = s.request(t, http.MethodPut, "/api/v1/schedules/"+created.ID, map[string]any{
		"room_config": map[string]any{"name": "Clan War II"},
	}, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	// cancel, then every further mutation conflicts
	rec = s.request(t, http.MethodDelete, "/api/v1/schedules/"+created.ID, nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.request(t, http.MethodDelete, "/api/v1/schedules/"+created.ID, nil, bearer)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.request(t, http.MethodPut, "/api/v1/schedules/"+created.ID, map[string]any{
		"room_config": map[string]any{"name": "nope"},
	}, bearer)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// cancelled rows remain visible
	rec = s.request(t, http.MethodGet, "/api/v1/schedules/"+created.ID, nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	// unknown ids are 404
	rec = s.request(t, http.MethodGet, "/api/v1/schedules/no-such-id", nil, bearer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCronExecuteRunsDueSchedules(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	// a due pending row, seeded directly because Create only accepts future
	// times
	challenge := &models.ScheduledChallenge{
		ID:            uuid.NewString(),
		OwnerID:       "owner-1",
		ScheduledTime: time.Now().Add(-time.Minute),
		RoomConfig:    models.JSONMap{"name": "Due Challenge"},
		ChatMessages:  models.StringList{"go go go"},
		Status:        models.ChallengeStatusPending,
	}
	require.NoError(t, s.db.Create(challenge).Error)

	triple := &vault.Triple{
		AccessToken:  "access-ok",
		ExpiresAt:    time.Now().Add(2 * time.Hour),
		RefreshToken: "refresh-ok",
	}
	sealed, err := s.vault.Encrypt(triple.Encode())
	require.NoError(t, err)
	require.NoError(t, s.store.UpsertCredential(ctx, "owner-1", sealed))

	rec := s.request(t, http.MethodPost, "/api/v1/cron/execute", nil, cronHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary executor.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Successful)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, challenge.ID, summary.Results[0].ScheduleID)
	assert.Equal(t, "room-1", summary.Results[0].RoomID)

	got, err := s.store.Get(ctx, challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusCompleted, got.Status)
	assert.Equal(t, "room-1", got.CreatedRoomID)

	// immediately re-triggering processes nothing
	rec = s.request(t, http.MethodPost, "/api/v1/cron/execute", nil, cronHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.Processed)
}

func TestCreateScheduleValidation(t *testing.T) {
	s := newTestStack(t)

	// past scheduled time
	rec := s.request(t, http.MethodPost, "/api/v1/schedules", map[string]any{
		"owner_id":       "owner-1",
		"scheduled_time": time.Now().Add(-time.Hour).Format(time.RFC3339),
		"room_config":    map[string]any{"name": "late"},
	}, bearer)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// missing required fields
	rec = s.request(t, http.MethodPost, "/api/v1/schedules", map[string]any{
		"owner_id": "owner-1",
	}, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
