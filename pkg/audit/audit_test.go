package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()

	dir := t.TempDir()
	m, err := NewManager(ManagerConfig{
		BasePath:      dir,
		BatchSize:     10,
		FlushInterval: time.Hour,
		Logger:        logger.New("debug", "test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m, dir
}

func TestManager_LogAndQuery(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := WithRequestInfo(context.Background(), RequestInfo{IPAddress: "10.0.0.1", RequestID: "req-1"})

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []struct {
		eventType string
		actor     int64
		target    int64
	}{
		{EventTypeBuildingCreated, 1, 10},
		{EventTypeEntranceCreated, 1, 20},
		{EventTypeBuildingUpdated, 2, 10},
	}
	for i, e := range events {
		entry := NewEventBuilder().
			WithEventType(e.eventType).
			WithActor(e.actor, "admin", "admin").
			WithTarget("building", e.target).
			WithRequest(ctx).
			Build()
		entry.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, m.Log(ctx, entry))
	}

	t.Run("newest first", func(t *testing.T) {
		logs, err := m.Query(ctx, QueryFilter{})
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, EventTypeBuildingUpdated, logs[0].EventType)
		assert.Equal(t, EventTypeBuildingCreated, logs[2].EventType)
		assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
		assert.Equal(t, ResultSuccess, logs[0].Result)
		assert.NotEmpty(t, logs[0].ID)
	})

	t.Run("filters", func(t *testing.T) {
		logs, err := m.Query(ctx, QueryFilter{ActorID: 1})
		require.NoError(t, err)
		assert.Len(t, logs, 2)

		logs, err = m.Query(ctx, QueryFilter{TargetID: 10, EventType: EventTypeBuildingCreated})
		require.NoError(t, err)
		assert.Len(t, logs, 1)

		logs, err = m.Query(ctx, QueryFilter{StartTime: base.Add(30 * time.Second)})
		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})

	t.Run("limit and offset", func(t *testing.T) {
		logs, err := m.Query(ctx, QueryFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, EventTypeEntranceCreated, logs[0].EventType)

		logs, err = m.Query(ctx, QueryFilter{Offset: 5})
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("get by id", func(t *testing.T) {
		logs, err := m.Query(ctx, QueryFilter{Limit: 1})
		require.NoError(t, err)

		got, err := m.GetByID(ctx, logs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, logs[0].EventType, got.EventType)

		_, err = m.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestWriter_RotatesFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(WriterConfig{BasePath: dir, BatchSize: 1, FlushInterval: time.Hour, MaxFileSize: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(NewEventBuilder().WithEventType(EventTypeUserLogin).Build()))
	}
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "audit-*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	r, err := NewReader(dir)
	require.NoError(t, err)
	logs, err := r.Query(QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestReader_IgnoresTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(WriterConfig{BasePath: dir, BatchSize: 1, FlushInterval: time.Hour})
	require.NoError(t, err)
	require.NoError(t, w.Write(NewEventBuilder().WithEventType(EventTypeUserLogout).Build()))
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "audit-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.OpenFile(files[0], os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 100)
	_, err = f.Write(append(header, 0x01, 0x02))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := NewReader(dir)
	require.NoError(t, err)
	logs, err := r.Query(QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestHandler_List(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Log(ctx, NewEventBuilder().WithEventType(EventTypeUserCreated).WithActor(1, "root", "admin").Build()))
	require.NoError(t, m.Log(ctx, NewEventBuilder().WithEventType(EventTypeUserDeleted).WithActor(2, "boss", "admin").Build()))

	router := gin.New()
	router.GET("/audit", NewHandler(m).List)

	t.Run("filters by actor", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit?actor_id=2", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var logs []AuditLog
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
		require.Len(t, logs, 1)
		assert.Equal(t, EventTypeUserDeleted, logs[0].EventType)
	})

	t.Run("rejects malformed parameters", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit?actor_id=abc&since=yesterday", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"actor_id":"A valid integer is required.","since":"Datetime has wrong format. Use RFC 3339."}`, w.Body.String())
	})

	t.Run("empty result is an array", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/audit?event_type=none", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Log(context.Background(), &AuditLog{}))
}
