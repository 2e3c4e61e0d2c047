// Package config provides the configuration schema, layered loader, and
// environment secrets for the Orator voice dispatcher.
package config

import (
	"fmt"
	"time"
)

// LogLevel controls log verbosity for the Orator process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Orator. Values are loaded
// and merged from layered YAML files using [Load]; once loading completes the
// struct is treated as immutable and passed through the module graph.
type Config struct {
	// ListenAddr is the TCP address the metrics/health HTTP server listens on.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, mirrors logs into a size-rotated file at this path.
	LogFile string `yaml:"log_file"`

	// StateDir holds the privacy delete queue and meta files.
	StateDir string `yaml:"state_dir"`

	// ChannelTimeoutSeconds is the idle queue-wait deadline for a guild's
	// voice connection before the farewell/disconnect sequence runs.
	ChannelTimeoutSeconds int `yaml:"channel_timeout_seconds"`

	// ChannelTimeoutPhrases is the pool of farewell texts; one is picked at
	// random when the idle timeout fires. Empty disables the farewell clip.
	ChannelTimeoutPhrases []string `yaml:"channel_timeout_phrases"`

	// SkipPercentage is the fraction of non-bot channel members that must
	// vote before the active clip is skipped. Clamped to [0, 1].
	SkipPercentage float64 `yaml:"skip_percentage"`

	// FFmpegParameters and FFmpegPostParameters are extra options to the
	// playback decode process, placed before and after the input file.
	FFmpegParameters     string `yaml:"ffmpeg_parameters"`
	FFmpegPostParameters string `yaml:"ffmpeg_post_parameters"`

	// CharLimit is the maximum text length accepted for synthesis.
	CharLimit int `yaml:"char_limit"`

	// AudioGenerateTimeoutSeconds bounds one external synthesis call.
	AudioGenerateTimeoutSeconds int `yaml:"audio_generate_timeout_seconds"`

	// Prepend and Append are decoration tokens wrapped around every
	// synthesised text.
	Prepend string `yaml:"prepend"`
	Append  string `yaml:"append"`

	// NewlineReplacement substitutes newline characters before synthesis,
	// typically a phoneme pause token.
	NewlineReplacement string `yaml:"newline_replacement"`

	// SynthCommand is the external synthesis program and its argument
	// template. The placeholders {text}, {out} and {voice} are replaced per
	// call.
	SynthCommand []string `yaml:"synth_command"`

	// Voices lists the voice names selectable via the speech_config command.
	// Empty means the synthesiser's default voice only.
	Voices []string `yaml:"voices"`

	// DefaultVoice fills the {voice} placeholder for users without a
	// configured preference.
	DefaultVoice string `yaml:"default_voice"`

	// OutputDir is the synthesis artifact directory. Created and emptied on
	// renderer construction and teardown.
	OutputDir string `yaml:"output_dir"`

	// DatabaseEnable gates the audit recorder. When false, command events
	// are not persisted and delete requests purge nothing.
	DatabaseEnable bool `yaml:"database_enable"`

	// DatabaseDetailedTableTTLSeconds is the time-to-live applied to
	// detailed audit rows. Anonymous rows carry no TTL.
	DatabaseDetailedTableTTLSeconds int `yaml:"database_detailed_table_ttl_seconds"`

	// DeleteRequestWeekdayToProcess selects the weekly purge weekday,
	// 0 = Monday through 6 = Sunday.
	DeleteRequestWeekdayToProcess int `yaml:"delete_request_weekday_to_process"`

	// DeleteRequestTimeToProcess is the purge time of day in UTC,
	// formatted "15:04:05".
	DeleteRequestTimeToProcess string `yaml:"delete_request_time_to_process"`
}

// Defaults returns a Config populated with the documented default values.
// Layered files are merged on top of this baseline.
func Defaults() *Config {
	return &Config{
		ListenAddr:                      ":8080",
		LogLevel:                        LogInfo,
		StateDir:                        "state",
		ChannelTimeoutSeconds:           900,
		SkipPercentage:                  0.5,
		CharLimit:                       1250,
		AudioGenerateTimeoutSeconds:     3,
		NewlineReplacement:              ". ",
		SynthCommand:                    []string{"espeak", "-w", "{out}", "{text}"},
		OutputDir:                       "clips",
		DatabaseDetailedTableTTLSeconds: 31_536_000,
		DeleteRequestWeekdayToProcess:   0,
		DeleteRequestTimeToProcess:      "00:00:00",
	}
}

// IdleTimeout returns the idle queue-wait deadline as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.ChannelTimeoutSeconds) * time.Second
}

// SynthTimeout returns the per-call synthesis deadline as a duration.
func (c *Config) SynthTimeout() time.Duration {
	return time.Duration(c.AudioGenerateTimeoutSeconds) * time.Second
}

// DetailedTTL returns the detailed audit row time-to-live as a duration.
func (c *Config) DetailedTTL() time.Duration {
	return time.Duration(c.DatabaseDetailedTableTTLSeconds) * time.Second
}

// PurgeWeekday maps the configured weekday (0 = Monday) onto time.Weekday.
func (c *Config) PurgeWeekday() time.Weekday {
	// time.Weekday starts the week on Sunday; the config starts it on Monday.
	return time.Weekday((c.DeleteRequestWeekdayToProcess + 1) % 7)
}

// PurgeTimeOfDay parses DeleteRequestTimeToProcess and returns the offset
// from midnight UTC.
func (c *Config) PurgeTimeOfDay() (time.Duration, error) {
	t, err := time.Parse("15:04:05", c.DeleteRequestTimeToProcess)
	if err != nil {
		return 0, fmt.Errorf("config: delete_request_time_to_process %q: %w", c.DeleteRequestTimeToProcess, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
