package intent

import (
	"regexp"
	"strings"

	"tsuzi/internal/executor"
	"tsuzi/internal/managers"
)

var punctRe = regexp.MustCompile(`[^\w\s]`)

// normalizeCommand strips punctuation and lowercases for literal matching.
func normalizeCommand(text string) string {
	return strings.TrimSpace(strings.ToLower(punctRe.ReplaceAllString(text, "")))
}

var exitCommands = map[string]bool{
	"exit":    true,
	"quit":    true,
	"stop":    true,
	"goodbye": true,
}

// IsExitCommand reports whether the utterance ends the session.
func IsExitCommand(text string) bool {
	return exitCommands[normalizeCommand(text)]
}

var cancelTimerRe = regexp.MustCompile(`^cancel (?:the |my )?(.+?)(?: timer)?$`)

// MatchFastPath recognizes a small ordered set of unambiguous commands and
// returns the corresponding call without touching the classifier. App launch
// is checked before music so "open spotify" launches the app rather than
// searching it.
func MatchFastPath(text string) *executor.FunctionCall {
	cmd := normalizeCommand(text)
	if cmd == "" {
		return nil
	}

	if strings.HasPrefix(cmd, "cancel ") && strings.Contains(cmd, "timer") {
		if m := cancelTimerRe.FindStringSubmatch(cmd); m != nil && m[1] != "" {
			return &executor.FunctionCall{Name: "cancel_timer", Args: map[string]string{"label": m[1]}}
		}
	}

	if strings.HasPrefix(cmd, "open") || strings.HasPrefix(cmd, "launch") || strings.HasPrefix(cmd, "start") {
		// "start a timer" is an action, not an app launch.
		if !strings.Contains(cmd, "timer") && !strings.Contains(cmd, "alarm") {
			name := managers.ExtractAppName(text)
			if name != "" {
				return &executor.FunctionCall{Name: "open_app", Args: map[string]string{"name": name}}
			}
		}
	}

	if strings.Contains(cmd, "play") && strings.Contains(cmd, "spotify") {
		query := managers.ExtractMusicQuery(text)
		if query != "" {
			return &executor.FunctionCall{Name: "play_music", Args: map[string]string{"query": query}}
		}
	}

	return nil
}
