package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
	"github.com/tenantgate/tenantgate/pkg/credstore"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

// harness wires a SessionProvider against a fake auth backend with
// per-session memory stores that tests can seed up front.
type harness struct {
	provider     *SessionProvider
	stores       map[string]credstore.Store
	factoryCalls atomic.Int32
}

func newHarness(t *testing.T, role string) *harness {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/companies/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]apiclient.Company{{ID: 1, Name: "Acme", Slug: "acme"}})
	})
	mux.HandleFunc("/auth/acme/profile/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiclient.User{ID: 7, Username: "alice", Role: role, Company: "acme"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	h := &harness{stores: make(map[string]credstore.Store)}
	h.provider = NewSessionProvider(SessionConfig{
		CookieName: "tenantgate_session",
		Factory: func(sessionID string) (*session.Manager, error) {
			h.factoryCalls.Add(1)
			store := h.store(sessionID)
			client := apiclient.New(apiclient.Config{BaseURL: server.URL, Timeout: 5 * time.Second}, store)
			dir := tenant.NewDirectory(client, time.Minute, nil)
			resolver := tenant.NewResolver(store, dir, nil, nil)
			return session.NewManager(session.Config{
				Store:    store,
				Client:   client,
				Resolver: resolver,
			}), nil
		},
	})
	return h
}

func (h *harness) store(sessionID string) credstore.Store {
	if store, ok := h.stores[sessionID]; ok {
		return store
	}
	store := credstore.NewMemoryStore()
	h.stores[sessionID] = store
	return store
}

func (h *harness) seedTokens(t *testing.T, sessionID string) {
	t.Helper()
	require.NoError(t, h.store(sessionID).SetTokens(context.Background(), "access-1", "refresh-1"))
}

func withSessionCookie(req *http.Request, sessionID string) *http.Request {
	req.AddCookie(&http.Cookie{Name: "tenantgate_session", Value: sessionID})
	return req
}

func TestSessionMiddlewareMintsCookie(t *testing.T) {
	h := newHarness(t, "user")

	var gotManager *session.Manager
	handler := h.provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotManager = ManagerFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	require.NotNil(t, gotManager)
	assert.Equal(t, session.StateUnauthenticated, gotManager.State())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tenantgate_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSessionMiddlewareRestoresSession(t *testing.T) {
	h := newHarness(t, "admin")
	h.seedTokens(t, "sess-1")

	var (
		state session.State
		tctx  tenant.Context
	)
	handler := h.provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state = ManagerFromContext(r.Context()).State()
		tctx = TenantFromContext(r.Context())
	}))

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/acme/dashboard", nil), "sess-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, session.StateAuthenticated, state)
	assert.Equal(t, tenant.Context{Slug: "acme", Validated: true}, tctx)
}

func TestSessionMiddlewareCachesManagers(t *testing.T) {
	h := newHarness(t, "user")
	handler := h.provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/login", nil), "sess-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.EqualValues(t, 1, h.factoryCalls.Load())

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/login", nil), "sess-2")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.EqualValues(t, 2, h.factoryCalls.Load(), "distinct session gets its own manager")
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t, "admin")
	h.seedTokens(t, "sess-1")

	states := map[string]session.State{}
	handler := h.provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager := ManagerFromContext(r.Context())
		cookie, _ := r.Cookie("tenantgate_session")
		states[cookie.Value] = manager.State()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), withSessionCookie(httptest.NewRequest(http.MethodGet, "/acme/dashboard", nil), "sess-1"))
	handler.ServeHTTP(httptest.NewRecorder(), withSessionCookie(httptest.NewRequest(http.MethodGet, "/acme/dashboard", nil), "sess-2"))

	assert.Equal(t, session.StateAuthenticated, states["sess-1"])
	assert.Equal(t, session.StateUnauthenticated, states["sess-2"])
}
