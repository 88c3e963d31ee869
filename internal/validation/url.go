// Package validation checks values that leave the process boundary: URLs
// handed to the platform browser launcher and paths resolved under the
// served root.
package validation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// launcherUnsafe lists characters that must never reach a shell-backed
// launcher such as rundll32 or xdg-open.
const launcherUnsafe = ";&|`$()<>\"'\\\n\r "

// ValidateURL checks that rawURL is a plain http(s) URL with a host and an
// optional numeric port, safe to pass to the browser launcher.
func ValidateURL(rawURL string) error {
	if i := strings.IndexAny(rawURL, launcherUnsafe); i >= 0 {
		return fmt.Errorf("URL contains unsafe character %q", rawURL[i])
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("URL must have a host")
	}
	if parsed.User != nil {
		return fmt.Errorf("URL must not carry credentials")
	}
	if port := parsed.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid URL port %q", port)
		}
	}
	return nil
}
