package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tenantgate/tenantgate/pkg/observability"
)

// Policy is the access policy: which roles are administrative, where
// self-service users may go, and any deployment-specific system routes.
type Policy struct {
	AdminRoles          []string `yaml:"admin_roles"`
	SelfServicePaths    []string `yaml:"self_service_paths"`
	ExtraSystemRoutes   []string `yaml:"extra_system_routes"`
	RestrictSelfService bool     `yaml:"restrict_self_service"`
}

// DefaultPolicy returns the built-in access policy.
func DefaultPolicy() Policy {
	return Policy{
		AdminRoles:          []string{"admin", "super_admin", "company_admin"},
		SelfServicePaths:    []string{"employee-courses", "profile-settings"},
		RestrictSelfService: true,
	}
}

// LoadPolicy reads a policy file. Missing fields keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("reading policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("parsing policy file: %w", err)
	}
	return policy, nil
}

// PolicyWatcher reloads the policy file when it changes on disk.
type PolicyWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *observability.Logger
	onChange func(Policy)
	done     chan struct{}
}

// WatchPolicy starts watching the policy file. onChange is called with the
// freshly loaded policy after each change; parse failures keep the
// previous policy and are only logged.
func WatchPolicy(path string, logger *observability.Logger, onChange func(Policy)) (*PolicyWatcher, error) {
	if logger == nil {
		logger = observability.NewDefaultLogger()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating policy watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// a direct file watch dies with the old inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching policy directory: %w", err)
	}

	pw := &PolicyWatcher{
		path:     path,
		watcher:  watcher,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go pw.run()
	return pw, nil
}

func (pw *PolicyWatcher) run() {
	defer close(pw.done)
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(pw.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			policy, err := LoadPolicy(pw.path)
			if err != nil {
				pw.logger.WithError(err).Error("Policy reload failed, keeping previous policy")
				continue
			}
			pw.logger.WithField("path", pw.path).Info("Policy reloaded")
			pw.onChange(policy)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.WithError(err).Error("Policy watcher error")
		}
	}
}

// Close stops watching.
func (pw *PolicyWatcher) Close() error {
	err := pw.watcher.Close()
	<-pw.done
	return err
}
