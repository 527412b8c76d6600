// Package config loads the optional per-directory key=value configuration
// file described in §6, validates it against a JSON schema, and watches it
// for live reload while the CLI is running.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/module"
)

// LogLevel mirrors the `log_level` key's enum.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds every recognized key from §6's configuration table, with the
// documented defaults.
type Config struct {
	TimeoutSeconds        int      `json:"timeout_seconds"`
	LoggingEnabled        bool     `json:"logging_enabled"`
	DebugReportEnabled    bool     `json:"debug_report_enabled"`
	LogLevel              LogLevel `json:"log_level"`
	ExecutionLogging      bool     `json:"execution_logging"`
	MaxLineLength         int      `json:"max_line_length"`
	MaxNestingDepth       int      `json:"max_nesting_depth"`
	IndentSize            int      `json:"indent_size"`
	SnakeCaseVariables    bool     `json:"snake_case_variables"`
	TrailingWhitespace    bool     `json:"trailing_whitespace"`
	ConsistentKeywordCase bool     `json:"consistent_keyword_case"`
}

// Default returns the documented §6 defaults.
func Default() Config {
	return Config{
		TimeoutSeconds:        60,
		LoggingEnabled:        false,
		DebugReportEnabled:    true,
		LogLevel:              LevelInfo,
		ExecutionLogging:      false,
		MaxLineLength:         100,
		MaxNestingDepth:       5,
		IndentSize:            4,
		SnakeCaseVariables:    true,
		TrailingWhitespace:    false,
		ConsistentKeywordCase: true,
	}
}

var schemaDoc = []byte(`{
  "type": "object",
  "properties": {
    "timeout_seconds": {"type": "integer", "minimum": 1},
    "logging_enabled": {"type": "boolean"},
    "debug_report_enabled": {"type": "boolean"},
    "log_level": {"enum": ["debug", "info", "warn", "error"]},
    "execution_logging": {"type": "boolean"},
    "max_line_length": {"type": "integer", "minimum": 1},
    "max_nesting_depth": {"type": "integer", "minimum": 1},
    "indent_size": {"type": "integer", "minimum": 1},
    "snake_case_variables": {"type": "boolean"},
    "trailing_whitespace": {"type": "boolean"},
    "consistent_keyword_case": {"type": "boolean"}
  },
  "additionalProperties": false
}`)

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", strings.NewReader(string(schemaDoc))); err != nil {
		return nil, err
	}
	return c.Compile("config.schema.json")
}

// Warning is a non-fatal config problem (unknown key); errors (invalid
// types/values) instead prevent the run per §6.
type Warning struct {
	Key     string
	Message string
}

// Load reads, validates, and parses the key=value file at path. Before it is
// opened, path is cleaned and (with any leading "/" dropped) checked with
// module.CheckFilePath, which rejects a relative path that climbs out of the
// working directory through ".." elements.
func Load(path string) (Config, []Warning, error) {
	checked := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
	if err := module.CheckFilePath(checked); err != nil {
		return Config{}, nil, fmt.Errorf("invalid config path %q: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, nil, err
	}
	defer f.Close()

	raw, warnings, err := parseKeyValue(f)
	if err != nil {
		return Config{}, nil, err
	}

	schema, err := compileSchema()
	if err != nil {
		return Config{}, nil, fmt.Errorf("compiling config schema: %w", err)
	}
	asJSON, err := json.Marshal(toRecognized(raw))
	if err != nil {
		return Config{}, nil, err
	}
	var instance any
	if err := json.Unmarshal(asJSON, &instance); err != nil {
		return Config{}, nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return Config{}, nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := Default()
	applyRecognized(&cfg, raw)
	return cfg, warnings, nil
}

func parseKeyValue(f *os.File) (map[string]string, []Warning, error) {
	raw := map[string]string{}
	var warnings []Warning
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, nil, fmt.Errorf("line %d: expected key=value, got %q", lineNo, line)
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !recognizedKeys[key] {
			warnings = append(warnings, Warning{Key: key, Message: "unknown configuration key"})
			continue
		}
		raw[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return raw, warnings, nil
}

var recognizedKeys = map[string]bool{
	"timeout_seconds": true, "logging_enabled": true, "debug_report_enabled": true,
	"log_level": true, "execution_logging": true, "max_line_length": true,
	"max_nesting_depth": true, "indent_size": true, "snake_case_variables": true,
	"trailing_whitespace": true, "consistent_keyword_case": true,
}

func toRecognized(raw map[string]string) map[string]any {
	out := map[string]any{}
	for k, v := range raw {
		switch k {
		case "timeout_seconds", "max_line_length", "max_nesting_depth", "indent_size":
			n, err := strconv.Atoi(v)
			if err == nil {
				out[k] = n
			} else {
				out[k] = v // left as a non-integer to fail schema validation
			}
		case "logging_enabled", "debug_report_enabled", "execution_logging",
			"snake_case_variables", "trailing_whitespace", "consistent_keyword_case":
			b, err := strconv.ParseBool(v)
			if err == nil {
				out[k] = b
			} else {
				out[k] = v
			}
		default:
			out[k] = v
		}
	}
	return out
}

func applyRecognized(cfg *Config, raw map[string]string) {
	if v, ok := raw["timeout_seconds"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSeconds = n
		}
	}
	if v, ok := raw["logging_enabled"]; ok {
		cfg.LoggingEnabled, _ = strconv.ParseBool(v)
	}
	if v, ok := raw["debug_report_enabled"]; ok {
		cfg.DebugReportEnabled, _ = strconv.ParseBool(v)
	}
	if v, ok := raw["log_level"]; ok {
		cfg.LogLevel = LogLevel(v)
	}
	if v, ok := raw["execution_logging"]; ok {
		cfg.ExecutionLogging, _ = strconv.ParseBool(v)
	}
	if v, ok := raw["max_line_length"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLineLength = n
		}
	}
	if v, ok := raw["max_nesting_depth"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxNestingDepth = n
		}
	}
	if v, ok := raw["indent_size"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IndentSize = n
		}
	}
	if v, ok := raw["snake_case_variables"]; ok {
		cfg.SnakeCaseVariables, _ = strconv.ParseBool(v)
	}
	if v, ok := raw["trailing_whitespace"]; ok {
		cfg.TrailingWhitespace, _ = strconv.ParseBool(v)
	}
	if v, ok := raw["consistent_keyword_case"]; ok {
		cfg.ConsistentKeywordCase, _ = strconv.ParseBool(v)
	}
}

// Watcher reloads Config whenever the backing file changes on disk.
type Watcher struct {
	mu      sync.RWMutex
	current Config
	path    string
	fsw     *fsnotify.Watcher
	onErr   func(error)
}

// WatchFile starts watching path for writes, reloading Config on each one.
// onErr (may be nil) receives reload failures; the Watcher keeps serving the
// last good Config when a reload fails.
func WatchFile(path string, onErr func(error)) (*Watcher, error) {
	cfg, _, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{current: cfg, path: path, fsw: fsw, onErr: onErr}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, _, err := Load(w.path)
			if err != nil {
				if w.onErr != nil {
					w.onErr(err)
				}
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onErr != nil {
				w.onErr(err)
			}
		}
	}
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
