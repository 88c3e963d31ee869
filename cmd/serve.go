package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/devserve/internal/config"
	deverrors "github.com/conneroisu/devserve/internal/errors"
	"github.com/conneroisu/devserve/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the source directory with live reload",
	Long: `Serve the source directory over HTTP. Requests for "/" serve the index
document and drop every cached transform. Changes to files that have been
served notify connected browsers, which then reload.

Examples:
  devserve serve                      # Serve ./src on localhost:8080
  devserve serve --dir web --port 0   # Serve ./web on a free port
  devserve serve --transport websocket --no-open`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().StringP("dir", "d", "./src", "Directory to serve")
	serveCmd.Flags().Bool("no-open", false, "Don't open the browser")
	serveCmd.Flags().String("transport", "auto", "Reload transport (auto, sse, websocket)")
	serveCmd.Flags().Bool("no-inject", false, "Don't inject the reload script into HTML")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":      "server.port",
		"host":      "server.host",
		"dir":       "root.dir",
		"transport": "reload.transport",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	applyNegatedFlags(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case <-srv.Ready():
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n", cfg.Root.Dir, srv.URL())
		case <-ctx.Done():
		}
	}()

	return startError(srv.Start(ctx), cfg.Server.Port)
}

// startError adds a port hint to listen failures.
func startError(err error, port int) error {
	if err == nil {
		return nil
	}
	if deverrors.IsType(err, deverrors.ErrorTypeNetwork) {
		return deverrors.Wrap(err, fmt.Sprintf("server error (is port %d in use? try --port 0)", port))
	}
	return deverrors.Wrap(err, "server error")
}

// applyNegatedFlags maps --no-* flags onto their positive configuration
// keys when the user set them.
func applyNegatedFlags(cmd *cobra.Command) {
	negated := map[string]string{
		"no-open":   "server.open",
		"no-inject": "reload.inject",
	}
	for name, key := range negated {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		off, _ := cmd.Flags().GetBool(name)
		viper.Set(key, !off)
	}
}

// commandContext returns the command's context, or Background when the
// command was invoked without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
