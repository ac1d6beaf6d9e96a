package terminal

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"orsi/internal/providers"
)

// HomeLocator reports a fixed position. Without one, geolocation is
// treated as denied.
type HomeLocator struct {
	Position providers.Position
	Set      bool
}

func (h HomeLocator) Locate(context.Context) (providers.Position, error) {
	if !h.Set {
		return providers.Position{}, fmt.Errorf("%w: HOME_LATITUDE/HOME_LONGITUDE not set", providers.ErrPermissionDenied)
	}
	return h.Position, nil
}

// BrowserOpener hands URLs to the desktop's default handler.
type BrowserOpener struct{}

func (BrowserOpener) Open(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

var (
	_ providers.Locator = HomeLocator{}
	_ providers.Opener  = BrowserOpener{}
)
