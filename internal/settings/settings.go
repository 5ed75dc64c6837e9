package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fetchkit/fetchd/internal/platform"
)

// Settings are the administratively-configured flags the orchestrator
// reads: which sources are enabled and whether cookies may be attached.
type Settings struct {
	Sources     map[string]bool `yaml:"sources"`
	UseCookies  bool            `yaml:"use_cookies"`
	CookieFile  string          `yaml:"cookie_file"`
	DownloadDir string          `yaml:"download_dir"`
}

// Manager owns the settings file and serializes reads and writes.
type Manager struct {
	mu   sync.RWMutex
	path string
	s    Settings
}

func defaults() Settings {
	sources := make(map[string]bool)
	for _, p := range platform.All() {
		sources[string(p)] = true
	}
	return Settings{
		Sources:     sources,
		DownloadDir: "downloads",
	}
}

// Load reads the settings file, falling back to defaults when it does not
// exist yet.
func Load(path string) (*Manager, error) {
	m := &Manager{path: path, s: defaults()}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %v", err)
	}
	var loaded Settings
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %v", err)
	}
	if loaded.Sources == nil {
		loaded.Sources = m.s.Sources
	}
	if loaded.DownloadDir == "" {
		loaded.DownloadDir = m.s.DownloadDir
	}
	m.s = loaded
	return m, nil
}

// Enabled reports whether a platform is administratively enabled. Unknown
// entries default to enabled.
func (m *Manager) Enabled(p platform.Platform) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enabled, ok := m.s.Sources[string(p)]
	if !ok {
		return true
	}
	return enabled
}

func (m *Manager) SetEnabled(p platform.Platform, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Sources[string(p)] = enabled
	return m.saveLocked()
}

func (m *Manager) CookiesEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.UseCookies
}

func (m *Manager) SetCookies(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.UseCookies = enabled
	return m.saveLocked()
}

func (m *Manager) CookieFile() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.CookieFile
}

func (m *Manager) DownloadDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s.DownloadDir
}

// Snapshot returns a copy of the current settings.
func (m *Manager) Snapshot() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.s
	out.Sources = make(map[string]bool, len(m.s.Sources))
	for k, v := range m.s.Sources {
		out.Sources[k] = v
	}
	return out
}

func (m *Manager) saveLocked() error {
	if m.path == "" {
		return nil
	}
	data, err := yaml.Marshal(m.s)
	if err != nil {
		return fmt.Errorf("error encoding settings: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("error creating settings directory: %v", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("error writing settings file: %v", err)
	}
	return nil
}
