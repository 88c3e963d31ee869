package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/devserve/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	msg := fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
	if len(ve.Suggestions) > 0 {
		msg += " (" + strings.Join(ve.Suggestions, "; ") + ")"
	}
	return msg
}

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateRootConfig(&config.Root); err != nil {
		return fmt.Errorf("root config: %w", err)
	}
	if err := validateTransformConfig(&config.Transform); err != nil {
		return fmt.Errorf("transform config: %w", err)
	}
	if err := validateReloadConfig(&config.Reload); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := validateMetricsConfig(&config.Metrics, &config.Reload); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Port 0 lets the system assign one, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return &ValidationError{
			Field:       "server.port",
			Value:       config.Port,
			Message:     fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			Suggestions: []string{"use a port between 1024-65535", "port 0 picks a free port"},
		}
	}

	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return &ValidationError{
				Field:   "server.host",
				Value:   config.Host,
				Message: fmt.Sprintf("host contains dangerous character: %q", char),
			}
		}
	}
	return nil
}

func validateRootConfig(config *RootConfig) error {
	if config.Dir == "" {
		return &ValidationError{Field: "root.dir", Message: "served root directory is empty"}
	}
	info, err := os.Stat(config.Dir)
	if err != nil {
		return &ValidationError{
			Field:       "root.dir",
			Value:       config.Dir,
			Message:     fmt.Sprintf("cannot read served root: %v", err),
			Suggestions: []string{"create the directory or pass --dir"},
		}
	}
	if !info.IsDir() {
		return &ValidationError{Field: "root.dir", Value: config.Dir, Message: "served root is not a directory"}
	}

	for field, name := range map[string]string{"root.index": config.Index, "root.not_found": config.NotFound} {
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return &ValidationError{Field: field, Value: name, Message: "must be a plain file name"}
		}
	}
	return nil
}

func validateTransformConfig(config *TransformConfig) error {
	if err := validateExt("transform.default_ext", config.DefaultExt); err != nil {
		return err
	}
	if len(config.ScriptExts) == 0 {
		return &ValidationError{Field: "transform.script_exts", Message: "at least one script extension is required"}
	}
	for _, ext := range config.ScriptExts {
		if err := validateExt("transform.script_exts", ext); err != nil {
			return err
		}
	}
	if err := validateExt("transform.functional.ext", config.Functional.Ext); err != nil {
		return err
	}
	if config.Functional.Command == "" {
		return &ValidationError{Field: "transform.functional.command", Message: "compiler command is empty"}
	}
	if err := validateCommand("transform.functional.command", config.Functional.Command); err != nil {
		return err
	}
	return validateCommand("transform.functional.deps_command", config.Functional.DepsCommand)
}

func validateCommand(field, command string) error {
	for _, char := range dangerousChars[:len(dangerousChars)-1] {
		if strings.Contains(command, char) {
			return &ValidationError{
				Field:   field,
				Value:   command,
				Message: fmt.Sprintf("command contains dangerous character: %q", char),
			}
		}
	}
	return nil
}

func validateExt(field, ext string) error {
	if len(ext) < 2 || !strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`) {
		return &ValidationError{
			Field:       field,
			Value:       ext,
			Message:     fmt.Sprintf("%q is not a file extension", ext),
			Suggestions: []string{`extensions start with a dot, e.g. ".ts"`},
		}
	}
	return nil
}

func validateReloadConfig(config *ReloadConfig) error {
	if err := validateEndpoint("reload.path", config.Path); err != nil {
		return err
	}
	switch config.Transport {
	case "auto", "sse", "websocket":
	default:
		return &ValidationError{
			Field:       "reload.transport",
			Value:       config.Transport,
			Message:     fmt.Sprintf("unknown transport %q", config.Transport),
			Suggestions: []string{"use auto, sse or websocket"},
		}
	}
	if config.QueueSize < 0 {
		return &ValidationError{Field: "reload.queue_size", Value: config.QueueSize, Message: "must not be negative"}
	}
	if config.WriteTimeout < 0 {
		return &ValidationError{Field: "reload.write_timeout", Value: config.WriteTimeout, Message: "must not be negative"}
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce < 0 {
		return &ValidationError{Field: "watch.debounce", Value: config.Debounce, Message: "must not be negative"}
	}
	return nil
}

func validateMetricsConfig(config *MetricsConfig, reload *ReloadConfig) error {
	if !config.Enabled {
		return nil
	}
	if err := validateEndpoint("metrics.path", config.Path); err != nil {
		return err
	}
	if config.Path == reload.Path {
		return &ValidationError{Field: "metrics.path", Value: config.Path, Message: "collides with reload.path"}
	}
	return nil
}

func validateEndpoint(field, path string) error {
	if !strings.HasPrefix(path, "/") || path == "/" {
		return &ValidationError{
			Field:   field,
			Value:   path,
			Message: "must start with / and must not be the root path",
		}
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return &ValidationError{Field: "log.level", Value: config.Level, Message: err.Error()}
	}
	switch config.Format {
	case "text", "json":
	default:
		return &ValidationError{Field: "log.format", Value: config.Format, Message: "must be text or json"}
	}
	return nil
}
