package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	assert.Contains(t, policy.AdminRoles, "admin")
	assert.Contains(t, policy.AdminRoles, "super_admin")
	assert.Contains(t, policy.SelfServicePaths, "employee-courses")
	assert.True(t, policy.RestrictSelfService)
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, `
admin_roles:
  - admin
  - operator
extra_system_routes:
  - billing
restrict_self_service: false
`)

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "operator"}, policy.AdminRoles)
	assert.Equal(t, []string{"billing"}, policy.ExtraSystemRoutes)
	assert.False(t, policy.RestrictSelfService)
	// Unset fields keep defaults.
	assert.Contains(t, policy.SelfServicePaths, "employee-courses")
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadPolicyMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, "admin_roles: {not: [valid")

	_, err := LoadPolicy(path)
	require.Error(t, err)
}

func TestWatchPolicyReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writePolicy(t, path, "admin_roles: [admin]\n")

	changes := make(chan Policy, 4)
	watcher, err := WatchPolicy(path, nil, func(p Policy) { changes <- p })
	require.NoError(t, err)
	defer watcher.Close()

	writePolicy(t, path, "admin_roles: [admin, operator]\n")

	select {
	case policy := <-changes:
		assert.Equal(t, []string{"admin", "operator"}, policy.AdminRoles)
	case <-time.After(5 * time.Second):
		t.Fatal("policy change was not observed")
	}
}

func TestWatchPolicyIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writePolicy(t, path, "admin_roles: [admin]\n")

	changes := make(chan Policy, 4)
	watcher, err := WatchPolicy(path, nil, func(p Policy) { changes <- p })
	require.NoError(t, err)
	defer watcher.Close()

	writePolicy(t, filepath.Join(dir, "unrelated.yaml"), "admin_roles: [nobody]\n")

	select {
	case <-changes:
		t.Fatal("unrelated file must not trigger a reload")
	case <-time.After(200 * time.Millisecond):
	}
}
