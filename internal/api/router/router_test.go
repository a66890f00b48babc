package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/assetwatch/internal/api/handlers"
	"github.com/pratik-mahalle/assetwatch/internal/auth"
	"github.com/pratik-mahalle/assetwatch/internal/config"
	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/validator"
	"github.com/pratik-mahalle/assetwatch/internal/repository/memory"
	"github.com/pratik-mahalle/assetwatch/internal/services"
	"github.com/pratik-mahalle/assetwatch/internal/testutil"
)

const testSecret = "router-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type apiFixture struct {
	handler  http.Handler
	provider *testutil.FakeSnapshotProvider
	svc      *services.AlertService
	viewer   string
	manager  string
	admin    string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	provider := testutil.NewFakeSnapshotProvider()
	overdue := time.Now().Add(-72 * time.Hour)
	provider.SetAssets(
		asset.Asset{ID: "a1", Name: "Projector", AssetTag: "PRJ-1", Department: "Science",
			AvailableStatus: asset.StatusAvailable, NextMaintenanceDue: &overdue},
		asset.Asset{ID: "a2", Name: "Laptop", Department: "IT",
			AvailableStatus: asset.StatusAvailable, CurrentCondition: asset.ConditionDamaged},
	)

	log := logger.Nop()
	svc := services.NewAlertService(
		memory.NewAlertRepository(),
		memory.NewPreferenceRepository(),
		provider,
		&testutil.RecordingDispatcher{},
		log,
	)
	t.Cleanup(svc.Wait)

	cfg := &config.Config{
		Server: config.ServerConfig{FrontendURL: "http://localhost:3000", RateLimitRPS: 1000, RateLimitBurst: 1000},
		Auth:   config.AuthConfig{JWTSecret: testSecret},
	}
	h := New(cfg, log, &Handlers{
		Health: handlers.NewHealthHandler(nil, log),
		Alert:  handlers.NewAlertHandler(svc, log, validator.New()),
	})

	mint := func(userID string, role string, perms ...string) string {
		token, err := auth.MintToken(userID, userID+"@example.com", role, perms, testSecret, time.Hour)
		require.NoError(t, err)
		return token
	}

	return &apiFixture{
		handler:  h,
		provider: provider,
		svc:      svc,
		viewer:   mint("viewer-1", "staff", auth.PermissionReportsView),
		manager:  mint("manager-1", "manager", auth.PermissionReportsView, auth.PermissionAssetsManage),
		admin:    mint("admin-1", auth.RoleAdmin),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestRouter_Access(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       interface{}
		wantStatus int
	}{
		{"health is public", http.MethodGet, "/health", "", nil, http.StatusOK},
		{"ready without database", http.MethodGet, "/readyz", "", nil, http.StatusOK},
		{"list requires token", http.MethodGet, "/api/v1/alerts", "", nil, http.StatusUnauthorized},
		{"list with viewer", http.MethodGet, "/api/v1/alerts", f.viewer, nil, http.StatusOK},
		{"alias path", http.MethodGet, "/api/alerts", f.viewer, nil, http.StatusOK},
		{"viewer cannot act", http.MethodPost, "/api/v1/alerts", f.viewer,
			map[string]string{"alertId": "maintenance_overdue:a1", "action": "acknowledge"}, http.StatusForbidden},
		{"viewer cannot sweep", http.MethodPost, "/api/v1/alerts/escalations/sweep", f.viewer, nil, http.StatusForbidden},
		{"preferences need only a token", http.MethodGet, "/api/v1/alerts/preferences", f.viewer, nil, http.StatusOK},
		{"admin sweeps", http.MethodPost, "/api/v1/alerts/escalations/sweep", f.admin, nil, http.StatusOK},
		{"unknown route", http.MethodGet, "/api/v1/nope", f.viewer, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_ListAlerts(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/alerts?priority=critical&limit=10", f.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var list struct {
		Alerts     []alert.Alert    `json:"alerts"`
		Total      int              `json:"total"`
		Statistics alert.Statistics `json:"statistics"`
		Pagination alert.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Alerts, 1)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 10, list.Pagination.Limit)
	assert.Equal(t, 1, list.Statistics.Critical)
	assert.Equal(t, "maintenance_overdue:a1", list.Alerts[0].ID)
	for _, a := range list.Alerts {
		assert.Equal(t, alert.PriorityCritical, a.Priority)
		assert.NotNil(t, a.History)
	}

	t.Run("bad query", func(t *testing.T) {
		for _, q := range []string{"?priority=urgent", "?limit=500", "?limit=abc", "?dateRange=1y"} {
			rec, env := f.do(t, http.MethodGet, "/api/v1/alerts"+q, f.viewer, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code, q)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, "/api/v1/alerts?offset=100", f.viewer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), `"alerts":[]`)
	})
}

func TestRouter_Actions(t *testing.T) {
	f := newAPIFixture(t)
	id := "maintenance_overdue:a1"

	rec, env := f.do(t, http.MethodGet, "/api/v1/alerts/"+url.PathEscape(id), f.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got alert.Alert
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, id, got.ID)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
		wantState  alert.Status
	}{
		{"unknown action", map[string]string{"alertId": id, "action": "snooze"}, http.StatusBadRequest, "INVALID_ACTION", ""},
		{"missing alert id", map[string]string{"action": "acknowledge"}, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"unknown alert", map[string]string{"alertId": "maintenance_overdue:zzz", "action": "acknowledge"}, http.StatusNotFound, "ALERT_NOT_FOUND", ""},
		{"assign without target", map[string]string{"alertId": id, "action": "assign"}, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"acknowledge", map[string]string{"alertId": id, "action": "acknowledge"}, http.StatusOK, "", alert.StatusAcknowledged},
		{"assign", map[string]string{"alertId": id, "action": "assign", "assignTo": "tech-7"}, http.StatusOK, "", alert.StatusInProgress},
		{"resolve", map[string]string{"alertId": id, "action": "resolve", "resolution": "serviced"}, http.StatusOK, "", alert.StatusResolved},
		{"act on resolved", map[string]string{"alertId": id, "action": "escalate"}, http.StatusConflict, "CONFLICT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.do(t, http.MethodPost, "/api/v1/alerts", f.manager, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}
			var a alert.Alert
			require.NoError(t, json.Unmarshal(env.Data, &a))
			assert.Equal(t, tt.wantState, a.Status)
			assert.Equal(t, "manager-1", a.History[len(a.History)-1].PerformedBy)
		})
	}

	t.Run("unknown body field", func(t *testing.T) {
		rec, env := f.do(t, http.MethodPost, "/api/v1/alerts", f.manager, map[string]string{"alertId": id, "verb": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	})

	t.Run("dismiss", func(t *testing.T) {
		other := "asset_damaged:a2"
		rec, env := f.do(t, http.MethodDelete, "/api/v1/alerts/"+url.PathEscape(other)+"?reason=duplicate", f.manager, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var a alert.Alert
		require.NoError(t, json.Unmarshal(env.Data, &a))
		assert.Equal(t, alert.StatusDismissed, a.Status)
		assert.Equal(t, "duplicate", a.DismissReason)
	})
}

func TestRouter_Preferences(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/alerts/preferences", f.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var defaults alert.Preferences
	require.NoError(t, json.Unmarshal(env.Data, &defaults))
	assert.Equal(t, "viewer-1", defaults.RecipientID)
	assert.True(t, defaults.Channels.Email)

	body := map[string]interface{}{
		"channels":   map[string]bool{"email": true, "sms": true},
		"priorities": []string{"critical", "high"},
		"quietHours": map[string]interface{}{"enabled": true, "start": "22:00", "end": "07:00", "timezone": "UTC"},
		"escalationRules": []map[string]interface{}{
			{"priority": "high", "escalateAfterMinutes": 30, "escalateTo": []string{"ops-lead"}},
		},
	}
	rec, env = f.do(t, http.MethodPut, "/api/v1/alerts/preferences", f.viewer, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stored alert.Preferences
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.Equal(t, "viewer-1", stored.RecipientID)
	assert.Len(t, stored.EscalationRules, 1)

	body["quietHours"] = map[string]interface{}{"enabled": true, "start": "25:00", "end": "07:00"}
	rec, env = f.do(t, http.MethodPut, "/api/v1/alerts/preferences", f.viewer, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, string(env.Error.Details), "quietHours.start")
}
