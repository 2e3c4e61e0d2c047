package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// layerNames are the file names probed in each config directory, lowest
// precedence first.
var layerNames = []string{"config.yaml", "config.prod.yaml", "config.dev.yaml"}

// Load builds a Config by merging layered YAML files over [Defaults].
//
// Layers are applied lowest to highest precedence: the three layer files in
// rootDir, then the same three names in each of componentDirs (relative to
// rootDir unless absolute). A missing file is skipped silently; a present but
// malformed file aborts the load. The merged result is validated before it is
// returned.
func Load(rootDir string, componentDirs ...string) (*Config, error) {
	cfg := Defaults()

	dirs := append([]string{rootDir}, componentDirs...)
	for _, dir := range dirs {
		if dir != rootDir && !filepath.IsAbs(dir) {
			dir = filepath.Join(rootDir, dir)
		}
		for _, name := range layerNames {
			path := filepath.Join(dir, name)
			if err := mergeFile(cfg, path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("config: layer %q: %w", path, err)
			}
			slog.Debug("config layer applied", "path", path)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a single YAML layer from r over [Defaults] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	if err := decodeStrict(cfg, r); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays one YAML file onto cfg. Fields absent from the file
// keep their current values.
func mergeFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeStrict(cfg, f)
}

func decodeStrict(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty layer file
		}
		return err
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values. Out-of-range
// skip_percentage is clamped rather than rejected. Returns a joined error
// listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.SkipPercentage < 0 || cfg.SkipPercentage > 1 {
		clamped := min(max(cfg.SkipPercentage, 0), 1)
		slog.Warn("skip_percentage out of range, clamping",
			"configured", cfg.SkipPercentage, "clamped", clamped)
		cfg.SkipPercentage = clamped
	}

	if cfg.ChannelTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("channel_timeout_seconds must be positive, got %d", cfg.ChannelTimeoutSeconds))
	}
	if cfg.CharLimit <= 0 {
		errs = append(errs, fmt.Errorf("char_limit must be positive, got %d", cfg.CharLimit))
	}
	if cfg.AudioGenerateTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("audio_generate_timeout_seconds must be positive, got %d", cfg.AudioGenerateTimeoutSeconds))
	}
	if len(cfg.SynthCommand) == 0 {
		errs = append(errs, errors.New("synth_command must name the synthesis program"))
	} else if !hasPlaceholder(cfg.SynthCommand, "{out}") {
		errs = append(errs, errors.New("synth_command must contain the {out} placeholder"))
	}

	if cfg.DeleteRequestWeekdayToProcess < 0 || cfg.DeleteRequestWeekdayToProcess > 6 {
		errs = append(errs, fmt.Errorf("delete_request_weekday_to_process %d is out of range [0, 6]", cfg.DeleteRequestWeekdayToProcess))
	}
	if _, err := cfg.PurgeTimeOfDay(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func hasPlaceholder(argv []string, placeholder string) bool {
	for _, a := range argv {
		if strings.Contains(a, placeholder) {
			return true
		}
	}
	return false
}
