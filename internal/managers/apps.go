package managers

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

const spotifySearchURL = "https://open.spotify.com/search/"

// Launcher abstracts host-side launching so the manager stays testable.
type Launcher interface {
	OpenApp(name string) error
	OpenURL(target string) error
}

// execLauncher shells out to the platform opener.
type execLauncher struct{}

func (execLauncher) OpenApp(name string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", "-a", name)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", name)
	default:
		cmd = exec.Command("sh", "-c", name+" >/dev/null 2>&1 &")
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open app %q: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

func (execLauncher) OpenURL(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	go cmd.Wait()
	return nil
}

// AppsManager launches local applications and music searches. It holds no
// state of its own; it exists so app and music requests go through the same
// dispatch protocol as every other domain.
type AppsManager struct {
	launcher Launcher
}

// NewAppsManager creates a manager using the platform launcher.
func NewAppsManager() (*AppsManager, error) {
	return &AppsManager{launcher: execLauncher{}}, nil
}

// ID implements Manager.
func (m *AppsManager) ID() string { return AppsManagerID }

// OpenApp launches the named application.
func (m *AppsManager) OpenApp(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("app name must not be empty")
	}
	return m.launcher.OpenApp(name)
}

// PlayMusic opens a Spotify search for the query.
func (m *AppsManager) PlayMusic(ctx context.Context, query string) error {
	if query == "" {
		return fmt.Errorf("music query must not be empty")
	}
	return m.launcher.OpenURL(spotifySearchURL + url.PathEscape(query))
}

// Status implements Manager. Launching is fire-and-forget, so there is
// nothing to report.
func (m *AppsManager) Status(ctx context.Context) ([]string, error) { return nil, nil }

// Close implements Manager.
func (m *AppsManager) Close() error { return nil }

var appNameRe = regexp.MustCompile(`(?:open|launch|start)\s+(?:the\s+)?(.+)`)
var spaceRe = regexp.MustCompile(`\s+`)

// ExtractAppName pulls the application name from "open X" / "launch X" /
// "start X". Without a trigger word the whole text is returned.
func ExtractAppName(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if match := appNameRe.FindStringSubmatch(text); match != nil {
		return spaceRe.ReplaceAllString(strings.TrimSpace(match[1]), " ")
	}
	return spaceRe.ReplaceAllString(text, " ")
}

var musicTriggers = []string{"play", "listen to", "put on", "start"}
var musicPlatforms = []string{"on spotify", "from spotify", "in spotify", "using spotify"}
var musicFillers = []string{"the song", "song", "music", "track", "please", "for me", "now"}
var quoteRe = regexp.MustCompile(`["']`)

// ExtractMusicQuery strips trigger words, platform references, and filler
// from a music request, leaving the search terms.
func ExtractMusicQuery(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, trigger := range musicTriggers {
		if strings.HasPrefix(text, trigger) {
			text = strings.TrimSpace(text[len(trigger):])
			break
		}
	}
	for _, platform := range musicPlatforms {
		text = strings.ReplaceAll(text, platform, "")
	}
	for _, filler := range musicFillers {
		text = strings.ReplaceAll(text, filler, "")
	}
	text = quoteRe.ReplaceAllString(text, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
