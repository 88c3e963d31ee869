package server

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/conneroisu/devserve/internal/validation"
)

// OpenBrowser launches the platform's default browser on url.
func OpenBrowser(ctx context.Context, url string) error {
	// Validate URL for security before passing to system commands
	if err := validation.ValidateURL(url); err != nil {
		return fmt.Errorf("refusing to open browser: %w", err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	return cmd.Run()
}
