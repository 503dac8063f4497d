package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phturb/campaign-codex-backend-go/codex"
	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	modelwebsocket "github.com/phturb/campaign-codex-backend-go/model/websocket"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockDependencies struct {
	db *gorm.DB
}

func (m *MockDependencies) Database(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx)
}

func (m *MockDependencies) Cron() *cron.Cron {
	return cron.New()
}

type response struct {
	Success   bool              `json:"success"`
	Data      json.RawMessage   `json:"data"`
	Error     string            `json:"error"`
	ErrorType string            `json:"errorType"`
	Fields    map[string]string `json:"fields"`
}

func setupTest(t *testing.T) (*server, *Hub, http.Handler) {
	t.Helper()
	internal.LoadConfig("../.env.test")

	db, err := internal.OpenDatabase("sqlite", filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	require.NoError(t, internal.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hub := NewHub()
	s, err := NewServer(codex.NewServices(&MockDependencies{db: db}, hub, nil), hub)
	require.NoError(t, err)
	return s, hub, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec.Code, res
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, NewHub())
	assert.Error(t, err)
	_, err = NewServer(&codex.Services{}, nil)
	assert.Error(t, err)
}

func TestGetHTTPServer(t *testing.T) {
	s, _, _ := setupTest(t)
	_, err := s.GetHTTPServer()
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	_, _, h := setupTest(t)
	code, res := do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
}

func TestCampaignRoutes(t *testing.T) {
	_, _, h := setupTest(t)
	var c model.Campaign

	t.Run("Create returns 201", func(t *testing.T) {
		code, res := do(t, h, http.MethodPost, "/api/campaigns", map[string]any{"title": "Curse of Strahd"})
		require.Equal(t, http.StatusCreated, code)
		require.True(t, res.Success)
		require.NoError(t, json.Unmarshal(res.Data, &c))
		assert.NotZero(t, c.ID)
		assert.Equal(t, model.StatusPlanning, c.Status)
	})

	t.Run("Missing title is a validation error", func(t *testing.T) {
		code, res := do(t, h, http.MethodPost, "/api/campaigns", map[string]any{"title": "  "})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.False(t, res.Success)
		assert.Equal(t, "validation", res.ErrorType)
		assert.Contains(t, res.Fields, "title")
	})

	t.Run("Malformed body is a validation error", func(t *testing.T) {
		code, res := do(t, h, http.MethodPost, "/api/campaigns", "{not json")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, res.Fields, "body")
	})

	t.Run("Get and list", func(t *testing.T) {
		code, res := do(t, h, http.MethodGet, fmt.Sprintf("/api/campaigns/%d", c.ID), nil)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)

		code, res = do(t, h, http.MethodGet, "/api/campaigns", nil)
		assert.Equal(t, http.StatusOK, code)
		var list []model.Campaign
		require.NoError(t, json.Unmarshal(res.Data, &list))
		assert.Len(t, list, 1)
	})

	t.Run("Unknown id is 404", func(t *testing.T) {
		code, res := do(t, h, http.MethodGet, "/api/campaigns/999", nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not_found", res.ErrorType)
	})

	t.Run("Overview", func(t *testing.T) {
		code, res := do(t, h, http.MethodGet, fmt.Sprintf("/api/campaigns/%d/overview", c.ID), nil)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)
	})

	t.Run("Delete", func(t *testing.T) {
		code, _ := do(t, h, http.MethodDelete, fmt.Sprintf("/api/campaigns/%d", c.ID), nil)
		assert.Equal(t, http.StatusOK, code)
		code, _ = do(t, h, http.MethodGet, fmt.Sprintf("/api/campaigns/%d", c.ID), nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestRelationRoutes(t *testing.T) {
	_, _, h := setupTest(t)

	var c model.Campaign
	_, res := do(t, h, http.MethodPost, "/api/campaigns", map[string]any{"title": "Saltmarsh"})
	require.NoError(t, json.Unmarshal(res.Data, &c))
	var a, b model.Character
	_, res = do(t, h, http.MethodPost, "/api/characters", map[string]any{"campaignId": c.ID, "name": "Elara", "characterType": "pc"})
	require.NoError(t, json.Unmarshal(res.Data, &a))
	_, res = do(t, h, http.MethodPost, "/api/characters", map[string]any{"campaignId": c.ID, "name": "Old Ezra", "characterType": "npc"})
	require.NoError(t, json.Unmarshal(res.Data, &b))

	in := map[string]any{
		"campaignId":   c.ID,
		"source":       map[string]any{"type": "npc", "id": b.ID},
		"target":       map[string]any{"type": "character", "id": a.ID},
		"relationType": "Ally",
	}
	code, res := do(t, h, http.MethodPost, "/api/relations", in)
	require.Equal(t, http.StatusCreated, code, res.Error)

	code, res = do(t, h, http.MethodPost, "/api/relations", in)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate", res.ErrorType)

	code, res = do(t, h, http.MethodGet, fmt.Sprintf("/api/relations?entityType=character&entityId=%d", a.ID), nil)
	require.Equal(t, http.StatusOK, code)
	var rels []json.RawMessage
	require.NoError(t, json.Unmarshal(res.Data, &rels))
	assert.Len(t, rels, 1)

	code, res = do(t, h, http.MethodGet, "/api/relations?entityType=dragon&entityId=1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Fields, "entityType")

	code, _ = do(t, h, http.MethodDelete, "/api/relations/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDiaryRoutes(t *testing.T) {
	_, _, h := setupTest(t)

	var c model.Campaign
	_, res := do(t, h, http.MethodPost, "/api/campaigns", map[string]any{"title": "Saltmarsh"})
	require.NoError(t, json.Unmarshal(res.Data, &c))
	var q model.Quest
	_, res = do(t, h, http.MethodPost, "/api/quests", map[string]any{"campaignId": c.ID, "title": "Retrieve the Lost Map"})
	require.NoError(t, json.Unmarshal(res.Data, &q))

	diary := fmt.Sprintf("/api/quests/%d/diary", q.ID)
	for _, d := range []string{"2024-01-12", "2024-01-05"} {
		code, res := do(t, h, http.MethodPost, diary, map[string]any{"description": "Entry " + d, "date": d})
		require.Equal(t, http.StatusCreated, code, res.Error)
	}

	code, res := do(t, h, http.MethodGet, diary, nil)
	require.Equal(t, http.StatusOK, code)
	var entries []model.DiaryEntry
	require.NoError(t, json.Unmarshal(res.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-01-05", entries[0].Date)

	code, res = do(t, h, http.MethodPost, diary, map[string]any{"description": "", "date": "2024-01-20"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Fields, "description")

	code, _ = do(t, h, http.MethodPost, "/api/quests/999/diary", map[string]any{"description": "x", "date": "2024-01-20"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodDelete, fmt.Sprintf("%s/%d", diary, entries[0].ID), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodDelete, fmt.Sprintf("%s/%d", diary, entries[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuditRoute(t *testing.T) {
	_, _, h := setupTest(t)
	code, res := do(t, h, http.MethodGet, "/api/audit", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
}

func TestWebsocket(t *testing.T) {
	_, hub, h := setupTest(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	t.Run("Ping is answered with pong", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(modelwebsocket.Message{Action: modelwebsocket.Ping}))
		var m modelwebsocket.Message
		require.NoError(t, conn.ReadJSON(&m))
		assert.Equal(t, modelwebsocket.Pong, m.Action)
	})

	t.Run("Revalidate is broadcast once per path", func(t *testing.T) {
		hub.Revalidate("/campaigns/1", "", "/campaigns/1", "/quests/2")
		var got []string
		for range 2 {
			var m modelwebsocket.Message
			require.NoError(t, conn.ReadJSON(&m))
			assert.Equal(t, modelwebsocket.Revalidate, m.Action)
			got = append(got, m.Content)
		}
		assert.Equal(t, []string{"/campaigns/1", "/quests/2"}, got)
	})

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}
