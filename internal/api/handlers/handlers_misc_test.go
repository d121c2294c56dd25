package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/policy"
	"github.com/isdelr/ender-accounts/internal/services"
	ws "github.com/isdelr/ender-accounts/internal/websocket"
	"github.com/stretchr/testify/assert"
)

type mockAuditService struct {
	listFn func(p models.Principal, limit int) ([]models.Event, error)
}

func (m *mockAuditService) Record(context.Context, string, string, string, *string) error { return nil }

func (m *mockAuditService) ListEvents(_ context.Context, p models.Principal, limit int) ([]models.Event, error) {
	return m.listFn(p, limit)
}

func (m *mockAuditService) PruneBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestAuditHandler_GetRecent(t *testing.T) {
	manager := models.Principal{ID: "mgr", Role: models.RoleManager}
	tests := []struct {
		name       string
		url        string
		p          models.Principal
		wantLimit  int
		wantStatus int
	}{
		{"default limit", "/events", manager, 20, http.StatusOK},
		{"explicit limit", "/events?limit=5", manager, 5, http.StatusOK},
		{"garbage limit", "/events?limit=x", manager, 20, http.StatusOK},
		{"standard denied", "/events", models.Principal{ID: "u", Role: models.RoleStandard}, 20, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuditService{listFn: func(p models.Principal, limit int) ([]models.Event, error) {
				assert.Equal(t, tt.wantLimit, limit)
				if p.Role != models.RoleManager {
					return nil, &services.ForbiddenError{Operation: policy.OpViewAuditLog, Reason: policy.ReasonInsufficientRole}
				}
				return []models.Event{{ID: "e1", Type: "auth.failed"}}, nil
			}}
			r := chi.NewRouter()
			r.Use(fakePrincipal(tt.p))
			r.Get("/events", NewAuditHandler(svc).GetRecent)

			w := doRequest(r, http.MethodGet, tt.url, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	ok := NewHealthHandler(pingerFunc(func(context.Context) error { return nil }))
	w := doRequest(http.HandlerFunc(ok.Check), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := NewHealthHandler(pingerFunc(func(context.Context) error { return errors.New("db gone") }))
	w = doRequest(http.HandlerFunc(down.Check), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebSocketHandler_RejectsNonManagers(t *testing.T) {
	engine := policy.NewEngine(nil)
	h := NewWebSocketHandler(ws.NewHub(), engine, nil)

	for _, p := range []models.Principal{models.Anonymous(), {ID: "u", Role: models.RoleStandard}} {
		r := chi.NewRouter()
		r.Use(fakePrincipal(p))
		r.Get("/ws", h.Serve)
		w := doRequest(r, http.MethodGet, "/ws", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&services.ConflictError{Reason: services.ReasonDuplicateLogin}, http.StatusConflict},
		{services.ErrNotFound, http.StatusNotFound},
		{&services.AuthError{Reason: services.ReasonStaleCredential}, http.StatusUnauthorized},
		{&services.ForbiddenError{Reason: policy.ReasonNotOwner}, http.StatusForbidden},
		{services.ErrInvalidArgument, http.StatusBadRequest},
		{services.ErrCorruptCredential, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
