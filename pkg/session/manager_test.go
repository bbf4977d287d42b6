package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/pkg/apiclient"
	"github.com/tenantgate/tenantgate/pkg/credstore"
	"github.com/tenantgate/tenantgate/pkg/tenant"
)

type recordingNav struct {
	soft []string
	hard []string
}

func (n *recordingNav) Navigate(path string)     { n.soft = append(n.soft, path) }
func (n *recordingNav) HardNavigate(path string) { n.hard = append(n.hard, path) }

// testBackend is a minimal tenant-scoped auth backend for acme.
type testBackend struct {
	mux *http.ServeMux

	user          apiclient.User
	loginDetail   string
	profileStatus int
	refreshStatus int
	profileCalls  int
}

func newTestBackend() *testBackend {
	b := &testBackend{
		mux:           http.NewServeMux(),
		user:          apiclient.User{ID: 7, Username: "alice", Email: "alice@acme.test", FirstName: "Alice", LastName: "Smith", Role: "admin", Company: "acme"},
		profileStatus: http.StatusOK,
		refreshStatus: http.StatusOK,
	}
	b.mux.HandleFunc("/auth/companies/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]apiclient.Company{{ID: 1, Name: "Acme", Slug: "acme"}})
	})
	b.mux.HandleFunc("/auth/acme/token/", func(w http.ResponseWriter, r *http.Request) {
		if b.loginDetail != "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": b.loginDetail})
			return
		}
		json.NewEncoder(w).Encode(apiclient.LoginResult{Access: "access-1", Refresh: "refresh-1", User: &b.user})
	})
	b.mux.HandleFunc("/auth/acme/profile/", func(w http.ResponseWriter, r *http.Request) {
		b.profileCalls++
		if b.profileStatus != http.StatusOK {
			w.WriteHeader(b.profileStatus)
			return
		}
		json.NewEncoder(w).Encode(b.user)
	})
	b.mux.HandleFunc("/auth/acme/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		if b.refreshStatus != http.StatusOK {
			w.WriteHeader(b.refreshStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access": "access-2"})
	})
	return b
}

func newTestManager(t *testing.T, backend *testBackend) (*Manager, credstore.Store, *recordingNav) {
	t.Helper()
	server := httptest.NewServer(backend.mux)
	t.Cleanup(server.Close)

	store := credstore.NewMemoryStore()
	client := apiclient.New(apiclient.Config{BaseURL: server.URL, Timeout: 5 * time.Second}, store)
	dir := tenant.NewDirectory(client, time.Minute, nil)
	resolver := tenant.NewResolver(store, dir, nil, nil)
	nav := &recordingNav{}

	manager := NewManager(Config{
		Store:     store,
		Client:    client,
		Resolver:  resolver,
		Navigator: nav,
	})
	return manager, store, nav
}

func TestLoginLandsAdminOnDashboard(t *testing.T) {
	manager, store, nav := newTestManager(t, newTestBackend())
	ctx := context.Background()

	require.NoError(t, manager.Login(ctx, "alice@acme.test", "hunter2", "acme"))

	assert.Equal(t, StateAuthenticated, manager.State())
	principal := manager.Principal()
	require.NotNil(t, principal)
	assert.Equal(t, "Alice Smith", principal.DisplayName)
	assert.Equal(t, "admin", principal.Role)

	creds, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "acme", creds.TenantSlug)

	require.Len(t, nav.soft, 1)
	assert.Equal(t, "/acme/dashboard", nav.soft[0])
}

func TestLoginLandsSelfServiceUserOnCourses(t *testing.T) {
	backend := newTestBackend()
	backend.user.Role = "user"
	manager, _, nav := newTestManager(t, backend)

	require.NoError(t, manager.Login(context.Background(), "alice@acme.test", "hunter2", "acme"))
	require.Len(t, nav.soft, 1)
	assert.Equal(t, "/acme/employee-courses", nav.soft[0])
}

func TestLoginUsesStoredSlugWhenNoneGiven(t *testing.T) {
	manager, store, _ := newTestManager(t, newTestBackend())
	ctx := context.Background()
	require.NoError(t, store.SetTenantSlug(ctx, "acme"))

	require.NoError(t, manager.Login(ctx, "alice@acme.test", "hunter2", ""))
	assert.Equal(t, StateAuthenticated, manager.State())
}

func TestLoginRejected(t *testing.T) {
	backend := newTestBackend()
	backend.loginDetail = "No active account found"
	manager, _, nav := newTestManager(t, backend)

	err := manager.Login(context.Background(), "alice@acme.test", "wrong", "acme")
	require.Error(t, err)
	assert.True(t, apiclient.IsInvalidCredentials(err))
	assert.Equal(t, StateUnauthenticated, manager.State())
	assert.Empty(t, nav.soft)
}

func TestLogoutPreservesTenantSlug(t *testing.T) {
	manager, store, nav := newTestManager(t, newTestBackend())
	ctx := context.Background()
	require.NoError(t, manager.Login(ctx, "alice@acme.test", "hunter2", "acme"))

	require.NoError(t, manager.Logout(ctx))

	assert.Equal(t, StateUnauthenticated, manager.State())
	assert.Nil(t, manager.Principal())

	creds, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds.AccessToken)
	assert.Empty(t, creds.RefreshToken)
	assert.Equal(t, "acme", creds.TenantSlug)

	require.Len(t, nav.hard, 1)
	assert.Equal(t, "/acme/login", nav.hard[0], "logout is a hard navigation to the tenant login")
}

func TestRefreshUserWithoutToken(t *testing.T) {
	manager, _, _ := newTestManager(t, newTestBackend())

	require.NoError(t, manager.RefreshUser(context.Background(), "/acme/dashboard"))
	assert.Equal(t, StateUnauthenticated, manager.State())
	assert.Nil(t, manager.Principal())
}

func TestRefreshUserRestoresSession(t *testing.T) {
	manager, store, _ := newTestManager(t, newTestBackend())
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))

	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))

	assert.Equal(t, StateAuthenticated, manager.State())
	require.NotNil(t, manager.Principal())
	assert.Equal(t, tenant.Context{Slug: "acme", Validated: true}, manager.TenantContext())
}

func TestRefreshUserSystemRouteUsesStoredSlug(t *testing.T) {
	manager, store, _ := newTestManager(t, newTestBackend())
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))
	require.NoError(t, store.SetTenantSlug(ctx, "acme"))

	require.NoError(t, manager.RefreshUser(ctx, "/dashboard"))
	assert.Equal(t, StateAuthenticated, manager.State())
	assert.Equal(t, "acme", manager.TenantContext().Slug)
}

func TestRefreshUserProfileFailureDegrades(t *testing.T) {
	backend := newTestBackend()
	backend.profileStatus = http.StatusNotFound
	manager, store, _ := newTestManager(t, backend)
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))

	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))

	assert.Equal(t, StateUnauthenticated, manager.State())
	assert.Nil(t, manager.Principal())

	creds, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds.AccessToken, "access token dropped on degradation")
	assert.Equal(t, "refresh-1", creds.RefreshToken, "refresh token untouched")
}

func TestExpiredSessionForcesHardNavigation(t *testing.T) {
	backend := newTestBackend()
	backend.profileStatus = http.StatusUnauthorized
	backend.refreshStatus = http.StatusBadRequest
	manager, store, nav := newTestManager(t, backend)
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "stale", "expired"))
	require.NoError(t, store.SetTenantSlug(ctx, "acme"))

	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))

	assert.Equal(t, StateUnauthenticated, manager.State())

	creds, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds.AccessToken)
	assert.Empty(t, creds.RefreshToken)
	assert.Equal(t, "acme", creds.TenantSlug)

	require.NotEmpty(t, nav.hard)
	assert.Equal(t, "/acme/login", nav.hard[0])
}

func TestRefreshUserIsIdempotent(t *testing.T) {
	manager, store, _ := newTestManager(t, newTestBackend())
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))

	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))
	first := manager.Principal()
	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))

	assert.Equal(t, StateAuthenticated, manager.State())
	assert.Equal(t, first.ID, manager.Principal().ID)
}

func TestRefreshUserSkipsProfileFetchWhileTokenUnchanged(t *testing.T) {
	backend := newTestBackend()
	manager, store, _ := newTestManager(t, backend)
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))

	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))
	require.NoError(t, manager.RefreshUser(ctx, "/acme/templates"))
	require.NoError(t, manager.RefreshUser(ctx, "/acme/campaigns"))

	assert.Equal(t, StateAuthenticated, manager.State())
	assert.Equal(t, 1, backend.profileCalls, "held principal serves repeat navigations")

	// A new token means the identity must be re-fetched.
	require.NoError(t, store.SetAccessToken(ctx, "access-2"))
	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))
	assert.Equal(t, 2, backend.profileCalls)
}

func TestRefreshUserKeepsPrincipalThroughBadTenantLink(t *testing.T) {
	manager, store, _ := newTestManager(t, newTestBackend())
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))
	require.NoError(t, manager.RefreshUser(ctx, "/acme/dashboard"))
	require.NotNil(t, manager.Principal())

	require.NoError(t, manager.RefreshUser(ctx, "/ghostco/dashboard"))

	assert.Equal(t, StateAuthenticated, manager.State())
	require.NotNil(t, manager.Principal())
	assert.Equal(t, "acme", manager.Principal().Company, "principal keeps its own tenant")
	assert.Equal(t, tenant.Context{Slug: "ghostco", Validated: false}, manager.TenantContext())
}

func TestLoginPath(t *testing.T) {
	assert.Equal(t, "/acme/login", LoginPath("acme"))
	assert.Equal(t, "/login", LoginPath(""))
}
