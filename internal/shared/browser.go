package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openers maps GOOS to the command that hands a URL to the desktop.
var openers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// OpenBrowser starts the default browser on url without waiting for it to exit.
func OpenBrowser(url string) error {
	return openOn(runtime.GOOS, url)
}

func openOn(goos, url string) error {
	argv, ok := openers[goos]
	if !ok {
		return fmt.Errorf("cannot open a browser on %s, visit %s", goos, url)
	}
	cmd := exec.Command(argv[0], append(argv[1:], url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
