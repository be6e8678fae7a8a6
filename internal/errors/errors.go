package errors

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/julianstephens/habitflow/internal/logger"
)

type hint struct {
	target error
	text   string
}

var (
	hintsMu sync.RWMutex
	hints   []hint
)

// RegisterHint attaches a user-facing suggestion to every error that
// matches target under errors.Is.
func RegisterHint(target error, text string) {
	hintsMu.Lock()
	defer hintsMu.Unlock()
	hints = append(hints, hint{target: target, text: text})
}

// Hint returns the first registered suggestion matching err.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	hintsMu.RLock()
	defer hintsMu.RUnlock()
	for _, h := range hints {
		if errors.Is(err, h.target) {
			return h.text
		}
	}
	return ""
}

// Format formats an error message with a consistent "Error: " prefix and
// any registered hint.
func Format(err error) string {
	if err == nil {
		return ""
	}
	if h := Hint(err); h != "" {
		return fmt.Sprintf("Error: %v (hint: %s)", err, h)
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
