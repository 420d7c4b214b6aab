// Package config loads and validates the relay's TOML configuration file.
//
// The shape is a listen section (public and control bind addresses), a
// source map (offline behaviour, buffer size), and a stream map (output
// path, source reference, codec). Topology is validated once at load time,
// matching original_source/src/config.rs's `Config::load` +
// `Error::StreamRefersToInvalidSource`.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// OfflineBehaviour selects what a Source worker does while no broadcaster
// is connected.
type OfflineBehaviour string

const (
	// OfflineInactive blocks the source worker until a broadcaster connects.
	// This is the default when `offline` is omitted.
	OfflineInactive OfflineBehaviour = "inactive"
	// OfflineSilence publishes a looped stream of zero-valued PCM frames
	// while no broadcaster is connected.
	OfflineSilence OfflineBehaviour = "silence"
)

// ListenConfig holds the two bind addresses the relay listens on.
type ListenConfig struct {
	Public  string `toml:"public"`
	Control string `toml:"control"`
}

// SourceConfig describes one configured source.
type SourceConfig struct {
	Offline  OfflineBehaviour `toml:"offline"`
	BufferMS int              `toml:"buffer_ms"`
}

// Mp3Codec holds libmp3lame encoder parameters.
type Mp3Codec struct {
	BitrateKbps int `toml:"bitrate"`
	Quality     int `toml:"quality"`
}

// Codec is a tagged union over the supported output codecs. Only "mp3" is
// implemented; Type selects which nested field is populated, mirroring the
// original's `CodecConfig` enum.
type Codec struct {
	Type string    `toml:"type"`
	Mp3  *Mp3Codec `toml:"mp3"`
}

// StreamConfig describes one configured output stream.
type StreamConfig struct {
	Path   string `toml:"path"`
	Source string `toml:"source"`
	Codec  Codec  `toml:"codec"`
}

// Config is the fully parsed and validated relay configuration.
type Config struct {
	Listen ListenConfig            `toml:"listen"`
	Source map[string]SourceConfig `toml:"source"`
	Stream map[string]StreamConfig `toml:"stream"`
}

// Error is the sum type config.Load returns on failure, distinguishing the
// three ways loading can fail so callers (and logs) can tell a missing file
// apart from a malformed one apart from a valid-but-inconsistent one.
type Error struct {
	Kind    ErrorKind
	Path    string
	Stream  string
	Source  string
	Wrapped error
}

// ErrorKind distinguishes config.Error cases.
type ErrorKind int

const (
	// ErrIO means the config file could not be read.
	ErrIO ErrorKind = iota
	// ErrParse means the file was read but is not valid TOML, or does not
	// decode into Config's shape.
	ErrParse
	// ErrTopology means the file parsed but references are inconsistent,
	// e.g. a stream names a source that does not exist.
	ErrTopology
)

func (e *Error) Error() string {
	switch e.Kind {
	case ErrIO:
		return fmt.Sprintf("config: read %s: %s", e.Path, e.Wrapped)
	case ErrParse:
		return fmt.Sprintf("config: parse %s: %s", e.Path, e.Wrapped)
	case ErrTopology:
		if e.Wrapped != nil {
			return fmt.Sprintf("config: stream %q: %s", e.Stream, e.Wrapped)
		}
		return fmt.Sprintf("config: stream %q refers to undefined source %q", e.Stream, e.Source)
	default:
		return "config: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Load reads, parses, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrIO, Path: path, Wrapped: err}
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Kind: ErrParse, Path: path, Wrapped: err}
	}

	for name, src := range cfg.Source {
		if src.Offline == "" {
			src.Offline = OfflineInactive
			cfg.Source[name] = src
		}
	}

	if err := validateTopology(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateTopology(cfg *Config) error {
	seenPaths := make(map[string]string, len(cfg.Stream))
	for name, stream := range cfg.Stream {
		if _, ok := cfg.Source[stream.Source]; !ok {
			return &Error{Kind: ErrTopology, Stream: name, Source: stream.Source}
		}
		if other, dup := seenPaths[stream.Path]; dup {
			return &Error{
				Kind:    ErrTopology,
				Stream:  name,
				Wrapped: fmt.Errorf("path %q already used by stream %q", stream.Path, other),
			}
		}
		seenPaths[stream.Path] = name
	}
	return nil
}
