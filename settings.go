package configurator

import (
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type RetrySettings struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Settings is the process configuration, read from YAML. Command line flags
// are applied on top by the binary.
type Settings struct {
	Listen         string        `yaml:"listen"`
	AssetPath      string        `yaml:"asset_path"`
	AssetBaseURL   string        `yaml:"asset_base_url"`
	AssetDir       string        `yaml:"asset_dir"`
	Retry          RetrySettings `yaml:"retry"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	PresetDB       string        `yaml:"preset_db"`
	Debug          bool          `yaml:"debug"`
	TargetFPS      int           `yaml:"target_fps"`
	TurntableSpeed float32       `yaml:"turntable_speed"`
	Defaults       Configuration `yaml:"defaults"`
}

func DefaultSettings() Settings {
	policy := DefaultRetryPolicy()
	return Settings{
		Listen:    ":8080",
		AssetPath: "model.glb",
		AssetDir:  "models",
		Retry: RetrySettings{
			Attempts: policy.MaxAttempts,
			Delay:    policy.Delay,
		},
		HTTPTimeout:    30 * time.Second,
		PresetDB:       "presets.db",
		TargetFPS:      60,
		TurntableSpeed: 0.1,
		Defaults:       DefaultConfiguration(),
	}
}

// LoadSettings overlays the file at path onto DefaultSettings. A missing
// file is not an error.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, errors.Wrapf(err, "Failed to read settings %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "Failed to parse settings %s", path)
	}
	if err := s.Validate(); err != nil {
		return s, errors.Wrapf(err, "settings %s", path)
	}
	return s, nil
}

func (s Settings) Validate() error {
	if s.Retry.Attempts < 1 {
		return errors.Errorf("retry.attempts must be at least 1, got %d", s.Retry.Attempts)
	}
	if s.Retry.Delay < 0 {
		return errors.Errorf("retry.delay must not be negative, got %v", s.Retry.Delay)
	}
	if s.TargetFPS < 0 {
		return errors.Errorf("target_fps must not be negative, got %d", s.TargetFPS)
	}
	if s.Defaults.Scale.HasNaN() {
		return errors.New("defaults.scale must be a number")
	}
	return nil
}

// Save writes s as YAML.
func (s Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "Failed to encode settings")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "Failed to write settings %s", path)
	}
	return nil
}

func (s Settings) RetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: s.Retry.Attempts, Delay: s.Retry.Delay}
}

// Source picks the HTTP source when a base URL is set, else the directory.
func (s Settings) Source() AssetSource {
	if s.AssetBaseURL != "" {
		return HTTPSource{
			BaseURL: s.AssetBaseURL,
			Client:  &http.Client{Timeout: s.HTTPTimeout},
		}
	}
	return DirSource{Root: s.AssetDir}
}
