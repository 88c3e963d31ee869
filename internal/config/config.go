// Package config provides configuration management for devserve using Viper
// for layered loading from flags, DEVSERVE_* environment variables and a
// .devserve.yml file, with defaults for every key.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Root      RootConfig      `mapstructure:"root" yaml:"root"`
	Transform TransformConfig `mapstructure:"transform" yaml:"transform"`
	Reload    ReloadConfig    `mapstructure:"reload" yaml:"reload"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Open bool   `mapstructure:"open" yaml:"open"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type RootConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Index    string `mapstructure:"index" yaml:"index"`
	NotFound string `mapstructure:"not_found" yaml:"not_found"`
}

type TransformConfig struct {
	DefaultExt string           `mapstructure:"default_ext" yaml:"default_ext"`
	ScriptExts []string         `mapstructure:"script_exts" yaml:"script_exts"`
	Target     string           `mapstructure:"target" yaml:"target"`
	SourceMap  bool             `mapstructure:"sourcemap" yaml:"sourcemap"`
	Functional FunctionalConfig `mapstructure:"functional" yaml:"functional"`
}

type FunctionalConfig struct {
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	Ext     string   `mapstructure:"ext" yaml:"ext"`
	Export  string   `mapstructure:"export" yaml:"export"`
	WorkDir string   `mapstructure:"workdir" yaml:"workdir"`

	// DepsCommand lists a module's local dependencies, one quoted path per
	// match. Empty scans import declarations instead.
	DepsCommand string `mapstructure:"deps_command" yaml:"deps_command"`
}

type ReloadConfig struct {
	Path         string        `mapstructure:"path" yaml:"path"`
	Transport    string        `mapstructure:"transport" yaml:"transport"`
	Inject       bool          `mapstructure:"inject" yaml:"inject"`
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"-"`
}

// MarshalYAML writes durations in their human form.
func (r ReloadConfig) MarshalYAML() (interface{}, error) {
	type plain ReloadConfig
	return struct {
		plain        `yaml:",inline"`
		WriteTimeout string `yaml:"write_timeout"`
	}{plain(r), r.WriteTimeout.String()}, nil
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"-"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

// MarshalYAML writes durations in their human form.
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	type plain WatchConfig
	return struct {
		Debounce string `yaml:"debounce"`
		plain    `yaml:",inline"`
	}{w.Debounce.String(), plain(w)}, nil
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var defaults = map[string]interface{}{
	"server.host": "localhost",
	"server.port": 8080,
	"server.open": true,

	"root.dir":       "./src",
	"root.index":     "index.html",
	"root.not_found": "404.html",

	"transform.default_ext":             ".ts",
	"transform.script_exts":             []string{".ts", ".tsx", ".jsx", ".mts"},
	"transform.target":                  "esnext",
	"transform.sourcemap":               true,
	"transform.functional.command":      "elm",
	"transform.functional.args":         []string{"make"},
	"transform.functional.ext":          ".elm",
	"transform.functional.export":       "Elm",
	"transform.functional.workdir":      "",
	"transform.functional.deps_command": "",

	"reload.path":          "/reload",
	"reload.transport":     "auto",
	"reload.inject":        true,
	"reload.queue_size":    16,
	"reload.write_timeout": 10 * time.Second,

	"watch.debounce": 50 * time.Millisecond,
	"watch.ignore":   []string{".git", "node_modules"},

	"metrics.enabled": true,
	"metrics.path":    "/__devserve/metrics",

	"log.level":  "info",
	"log.format": "text",
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// EnvPrefix prefixes environment overrides, e.g. DEVSERVE_SERVER_PORT.
const EnvPrefix = "DEVSERVE"

// BindEnv enables environment overrides for every key on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v. Defaults are
// applied for keys v does not set.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the default configuration without validating the root
// directory.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var config Config
	// Defaults always decode.
	_ = v.Unmarshal(&config)
	return &config
}

// YAML renders the configuration as a .devserve.yml document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
