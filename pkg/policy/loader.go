package policy

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/relayci/fixpipeline/pkg/shared/logging"
)

// LoadSafetyPolicy reads and parses a SafetyPolicy YAML document.
func LoadSafetyPolicy(path string) (SafetyPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SafetyPolicy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	var p SafetyPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return SafetyPolicy{}, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return p, nil
}

// Store holds the currently active SafetyPolicy and swaps it atomically
// when the backing file changes on disk. Store.Current() returns the
// latest loaded version; cmd/fixpipeline calls it once at startup to build
// its policy engine, so later reloads do not change that engine.
type Store struct {
	current atomic.Value // SafetyPolicy
	watcher *fsnotify.Watcher
	log     *logrus.Logger
}

// NewStore loads path once and starts watching it for changes.
func NewStore(path string, log *logrus.Logger) (*Store, error) {
	policy, err := LoadSafetyPolicy(path)
	if err != nil {
		return nil, err
	}

	s := &Store{log: log}
	s.current.Store(policy)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start policy file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch policy file: %w", err)
	}
	s.watcher = watcher

	go s.watch(path)

	return s, nil
}

func (s *Store) watch(path string) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			policy, err := LoadSafetyPolicy(path)
			if err != nil {
				if s.log != nil {
					s.log.WithFields(logging.NewFields().Component("policy").Error(err).ToLogrus()).
						Warn("failed to reload safety policy, keeping previous version")
				}
				continue
			}
			s.current.Store(policy)
			if s.log != nil {
				s.log.WithFields(logging.PolicyFields("reload", 0).ToLogrus()).Info("reloaded safety policy")
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if s.log != nil {
				s.log.WithFields(logging.NewFields().Component("policy").Error(err).ToLogrus()).Warn("policy file watcher error")
			}
		}
	}
}

// Current returns the active SafetyPolicy, resolved to the named profile
// (pass "" for the default).
func (s *Store) Current(profile string) SafetyPolicy {
	return s.current.Load().(SafetyPolicy).ResolveProfile(profile)
}

// Close stops the underlying file watcher.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
