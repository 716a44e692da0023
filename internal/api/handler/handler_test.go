package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lleo5301/sports2-backend-sub005/internal/api/handler"
	"github.com/lleo5301/sports2-backend-sub005/internal/credential"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

type mockSyncer struct {
	mock.Mock
	ctx context.Context
}

func (m *mockSyncer) Sync(ctx context.Context, syncType string, teamID int64, userID string) (*syncer.Result, error) {
	m.ctx = ctx
	args := m.Called(syncType, teamID, userID)
	res, _ := args.Get(0).(*syncer.Result)
	return res, args.Error(1)
}

func (m *mockSyncer) SyncAll(ctx context.Context, teamID int64, userID string) (*syncer.AllResult, error) {
	args := m.Called(teamID, userID)
	res, _ := args.Get(0).(*syncer.AllResult)
	return res, args.Error(1)
}

type mockIntegrations struct{ mock.Mock }

func (m *mockIntegrations) Configure(ctx context.Context, teamID int64, s credential.Settings) error {
	return m.Called(teamID, s).Error(0)
}

func (m *mockIntegrations) Disconnect(ctx context.Context, teamID int64) error {
	return m.Called(teamID).Error(0)
}

type staticDiagnostics struct{ snap transport.Snapshot }

func (d staticDiagnostics) Snapshot() transport.Snapshot { return d.snap }

type failingDB struct{}

func (failingDB) HealthCheck(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	sync  *mockSyncer
	integ *mockIntegrations
	logs  *store.Memory
	mux   *chi.Mux
}

func newFixture(t *testing.T, db handler.HealthChecker) *fixture {
	t.Helper()
	f := &fixture{sync: &mockSyncer{}, integ: &mockIntegrations{}, logs: store.NewMemory()}
	h := handler.New(handler.Deps{
		Syncer:       f.sync,
		Integrations: f.integ,
		Logs:         f.logs,
		Diagnostics:  staticDiagnostics{snap: transport.Snapshot{Counters: transport.Counters{Total: 3, Success: 2, Failed: 1}}},
		DB:           db,
	})

	r := chi.NewRouter()
	r.Get("/", h.Root)
	r.Get("/health", h.HealthCheck)
	r.Get("/health/db", h.HealthCheckDB)
	r.Get("/diagnostics", h.GetDiagnostics)
	r.Get("/sync/logs/{logID}", h.GetSyncLog)
	r.Put("/teams/{teamID}/integration", h.PutIntegration)
	r.Delete("/teams/{teamID}/integration", h.DeleteIntegration)
	r.Get("/teams/{teamID}/sync/logs", h.ListSyncLogs)
	r.Post("/teams/{teamID}/sync", h.TriggerSyncAll)
	r.Post("/teams/{teamID}/sync/{kind}", h.TriggerSync)
	f.mux = r

	t.Cleanup(func() {
		f.sync.AssertExpectations(t)
		f.integ.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	return f.doCtx(context.Background(), method, path, body, header...)
}

func (f *fixture) doCtx(ctx context.Context, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body)).WithContext(ctx)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	code, _ := e["code"].(string)
	return code
}

// --------------------------------------------------------------------------
// Meta
// --------------------------------------------------------------------------

func TestRootListsSyncTypes(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	syncs, ok := decode(t, rec)["syncs"].([]any)
	require.True(t, ok)
	assert.Contains(t, syncs, "roster")
	assert.Contains(t, syncs, "live_stats")
}

func TestHealthCheckDB(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		rec := newFixture(t, nil).do(http.MethodGet, "/health/db", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "not configured", decode(t, rec)["database"])
	})
	t.Run("unreachable", func(t *testing.T) {
		rec := newFixture(t, failingDB{}).do(http.MethodGet, "/health/db", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "unhealthy", decode(t, rec)["status"])
	})
}

func TestGetDiagnostics(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/diagnostics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap transport.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(3), snap.Counters.Total)
	assert.Equal(t, int64(1), snap.Counters.Failed)
}

// --------------------------------------------------------------------------
// Triggers
// --------------------------------------------------------------------------

func TestTriggerSync(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		f := newFixture(t, nil)
		f.sync.On("Sync", "roster", int64(7), "coach-1").
			Return(&syncer.Result{Created: 4, Updated: 1, Errors: []syncer.ItemError{}}, nil)

		rec := f.do(http.MethodPost, "/teams/7/sync/roster", "", "X-User-ID", "coach-1")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "completed", body["status"])
		assert.Equal(t, float64(4), body["result"].(map[string]any)["created"])
	})

	t.Run("partial when items failed", func(t *testing.T) {
		f := newFixture(t, nil)
		f.sync.On("Sync", "schedule", int64(7), "api").
			Return(&syncer.Result{Created: 1, Errors: []syncer.ItemError{{ItemID: "g9", Message: "no date"}}}, nil)

		rec := f.do(http.MethodPost, "/teams/7/sync/schedule", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "partial", decode(t, rec)["status"])
	})

	t.Run("run failure returns summary", func(t *testing.T) {
		f := newFixture(t, nil)
		upstream := &transport.StatusError{Label: "stats", Method: http.MethodGet, Status: http.StatusServiceUnavailable}
		f.sync.On("Sync", "stats", int64(7), "api").
			Return(&syncer.Result{Errors: []syncer.ItemError{}}, upstream)

		rec := f.do(http.MethodPost, "/teams/7/sync/stats", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "failed", body["status"])
		assert.Equal(t, string(syncer.KindTransientUpstream), body["error"].(map[string]any)["kind"])
	})

	preconditions := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown type", syncer.ErrUnknownSync, http.StatusNotFound, "UNKNOWN_SYNC_TYPE"},
		{"missing team", syncer.ErrTeamNotFound, http.StatusNotFound, "TEAM_NOT_FOUND"},
		{"in progress", syncer.ErrSyncInProgress, http.StatusConflict, "SYNC_IN_PROGRESS"},
		{"not configured", syncer.ErrNotConfigured, http.StatusBadRequest, "NOT_CONFIGURED"},
		{"auth failed", syncer.ErrAuthenticationFailed, http.StatusUnprocessableEntity, "AUTHENTICATION_FAILED"},
	}
	for _, tc := range preconditions {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.sync.On("Sync", "roster", int64(7), "api").Return(nil, tc.err)

			rec := f.do(http.MethodPost, "/teams/7/sync/roster", "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	t.Run("invalid team id", func(t *testing.T) {
		rec := newFixture(t, nil).do(http.MethodPost, "/teams/abc/sync/roster", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_TEAM_ID", errorCode(t, rec))
	})
}

func TestTriggerSyncAll(t *testing.T) {
	t.Run("returns aggregate", func(t *testing.T) {
		f := newFixture(t, nil)
		all := &syncer.AllResult{
			LogID:   uuid.New(),
			Results: map[string]*syncer.Result{"roster": {Created: 3, Errors: []syncer.ItemError{}}},
			Errors:  []syncer.StepError{{Sync: "schedule", Kind: syncer.KindNotConfigured, Message: "season missing"}},
			Created: 3,
		}
		f.sync.On("SyncAll", int64(2), "api").Return(all, nil)

		rec := f.do(http.MethodPost, "/teams/2/sync", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, all.LogID.String(), body["logId"])
		assert.Len(t, body["errors"], 1)
	})

	t.Run("precheck failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.sync.On("SyncAll", int64(2), "api").Return(&syncer.AllResult{}, syncer.ErrNotConfigured)

		rec := f.do(http.MethodPost, "/teams/2/sync", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// quietUpstream answers every endpoint with nothing.
type quietUpstream struct{}

func (quietUpstream) Seasons(context.Context, string) ([]presto.Item, error) { return nil, nil }
func (quietUpstream) Roster(context.Context, string, string, string) ([]presto.Item, error) {
	return nil, nil
}
func (quietUpstream) Schedule(context.Context, string, string, string) ([]presto.Item, error) {
	return nil, nil
}
func (quietUpstream) SeasonStats(context.Context, string, string, string, string) ([]presto.Item, error) {
	return nil, nil
}
func (quietUpstream) TeamRecord(context.Context, string, string, string) (presto.Item, error) {
	return presto.Item{}, nil
}
func (quietUpstream) Releases(context.Context, string, string) ([]presto.Item, error) {
	return nil, nil
}
func (quietUpstream) Event(context.Context, string, string) (presto.Item, error) {
	return presto.Item{}, nil
}
func (quietUpstream) BoxScore(context.Context, string, string) (presto.Item, error) {
	return presto.Item{}, nil
}
func (quietUpstream) LiveStats(context.Context, string, string, string) (presto.Item, error) {
	return presto.Item{}, nil
}
func (quietUpstream) Player(context.Context, string, string) (presto.Item, error) {
	return presto.Item{}, nil
}
func (quietUpstream) CareerStats(context.Context, string, string) ([]presto.Item, error) {
	return nil, nil
}
func (quietUpstream) Photos(context.Context, string, string) ([]presto.Item, error) {
	return nil, nil
}
func (quietUpstream) Videos(context.Context, string, string) ([]presto.Item, error) {
	return nil, nil
}

type fixedToken string

func (t fixedToken) GetToken(context.Context, int64) (string, error)   { return string(t), nil }
func (t fixedToken) RenewToken(context.Context, int64) (string, error) { return string(t), nil }

func TestTriggerSyncSurvivesClientDisconnect(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		f := newFixture(t, nil)
		f.sync.On("Sync", "roster", int64(7), "api").Return(&syncer.Result{Errors: []syncer.ItemError{}}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec := f.doCtx(ctx, http.MethodPost, "/teams/7/sync/roster", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, f.sync.ctx)
		assert.NoError(t, f.sync.ctx.Err())
	})

	t.Run("full sequence", func(t *testing.T) {
		st := store.NewMemory()
		st.AddTeam(store.Team{ID: 3, Name: "Tigers", ProviderTeamID: "T1", ProviderSeasonID: "S24"})
		svc := syncer.New(st, quietUpstream{}, fixedToken("tok"), syncer.Options{})

		h := handler.New(handler.Deps{Syncer: svc, Logs: st})
		r := chi.NewRouter()
		r.Post("/teams/{teamID}/sync", h.TriggerSyncAll)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/teams/3/sync", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var all syncer.AllResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
		for _, name := range []string{
			syncer.TypeRoster, syncer.TypeSchedule, syncer.TypeRecord, syncer.TypeDetails,
			syncer.TypePhotos, syncer.TypeStats, syncer.TypeSeasonStats, syncer.TypeCareerStats,
			syncer.TypeVideos, syncer.TypeReleases, syncer.TypeLive,
		} {
			assert.Contains(t, all.Results, name)
		}
		for _, e := range all.Errors {
			assert.NotContains(t, e.Message, context.Canceled.Error())
		}

		log, err := st.GetSyncLog(context.Background(), all.LogID)
		require.NoError(t, err)
		assert.NotEqual(t, store.SyncRunning, log.Status)
	})
}

// --------------------------------------------------------------------------
// Sync logs
// --------------------------------------------------------------------------

func TestSyncLogs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	var last uuid.UUID
	for range 3 {
		l := &store.SyncLog{TeamID: 5, SyncType: "roster", Provider: "presto"}
		require.NoError(t, f.logs.CreateSyncLog(ctx, l))
		last = l.ID
	}
	require.NoError(t, f.logs.CreateSyncLog(ctx, &store.SyncLog{TeamID: 6, SyncType: "roster"}))

	t.Run("list newest first with limit", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/teams/5/sync/logs?limit=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var logs []store.SyncLog
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
		require.Len(t, logs, 2)
		assert.Equal(t, last, logs[0].ID)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/teams/99/sync/logs", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/teams/5/sync/logs?limit=-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get one", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/sync/logs/"+last.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "roster", decode(t, rec)["syncType"])
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/sync/logs/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/sync/logs/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --------------------------------------------------------------------------
// Integration
// --------------------------------------------------------------------------

func TestPutIntegration(t *testing.T) {
	t.Run("stores settings", func(t *testing.T) {
		f := newFixture(t, nil)
		f.integ.On("Configure", int64(3), credential.Settings{
			Username: "coach", Password: "pw", ProviderTeamID: "T9", SeasonID: "S25", Verify: true,
		}).Return(nil)

		rec := f.do(http.MethodPut, "/teams/3/integration",
			`{"username":"coach","password":"pw","providerTeamId":"T9","seasonId":"S25","verify":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decode(t, rec)["configured"])
	})

	t.Run("rejected by provider", func(t *testing.T) {
		f := newFixture(t, nil)
		f.integ.On("Configure", int64(3), mock.Anything).Return(credential.ErrAuthenticationFailed)

		rec := f.do(http.MethodPut, "/teams/3/integration", `{"username":"coach","password":"bad","providerTeamId":"T9","verify":true}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("incomplete settings", func(t *testing.T) {
		f := newFixture(t, nil)
		f.integ.On("Configure", int64(3), mock.Anything).Return(credential.ErrNotConfigured)

		rec := f.do(http.MethodPut, "/teams/3/integration", `{"username":"coach"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_SETTINGS", errorCode(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := newFixture(t, nil).do(http.MethodPut, "/teams/3/integration", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_BODY", errorCode(t, rec))
	})
}

func TestDeleteIntegration(t *testing.T) {
	f := newFixture(t, nil)
	f.integ.On("Disconnect", int64(3)).Return(nil).Once()
	f.integ.On("Disconnect", int64(4)).Return(credential.ErrNotConfigured).Once()

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/teams/3/integration", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/teams/4/integration", "").Code)
}
