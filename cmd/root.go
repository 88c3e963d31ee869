// Package cmd provides the devserve command-line interface.
//
// Configuration is read from several sources, highest priority first:
//
//  1. Command-line flags (--port, --dir, ...)
//  2. Environment variables following DEVSERVE_<SECTION>_<OPTION>,
//     e.g. DEVSERVE_SERVER_PORT or DEVSERVE_RELOAD_TRANSPORT
//  3. The configuration file: --config, else DEVSERVE_CONFIG_FILE, else
//     .devserve.yml in the current directory
//  4. Built-in defaults
package cmd

import (
	"fmt"
	"os"

	"github.com/conneroisu/devserve/internal/config"
	"github.com/conneroisu/devserve/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigFileEnv names a configuration file when --config is not given.
const ConfigFileEnv = "DEVSERVE_CONFIG_FILE"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "devserve",
	Short: "Development server for TypeScript and Elm sources",
	Long: `devserve serves a source directory over HTTP for local development.

TypeScript files are transpiled to JavaScript on request, Elm modules are
compiled with the elm toolchain and wrapped as ES modules, and every other
file is served as-is. Served files are watched: when one changes, connected
browsers reload.

Quick Start:
  devserve serve                 Serve ./src on http://localhost:8080
  devserve serve -d web -p 3000  Serve ./web on port 3000
  devserve config init           Write a .devserve.yml with the defaults`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .devserve.yml, can also use "+ConfigFileEnv+")")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// initConfig points viper at the configuration file and enables
// environment overrides. A missing default file is not an error.
func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(ConfigFileEnv) != "":
		viper.SetConfigFile(os.Getenv(ConfigFileEnv))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".devserve")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, missing := err.(viper.ConfigFileNotFoundError); !missing && viper.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Ignoring config file:", err)
	}
}

// bindFlags binds each flag in fs to its configuration key.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if flag := fs.Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: os.Stderr,
	}), nil
}
