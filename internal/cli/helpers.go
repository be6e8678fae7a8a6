package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/models"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// resolve finds the record whose id is ref or starts with ref. A prefix
// matching more than one record is an error.
func resolve[T models.Record](items []T, ref string) (T, error) {
	var (
		zero  T
		found []T
	)
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return zero, fmt.Errorf("id cannot be empty")
	}
	for _, item := range items {
		id := item.GetID()
		if id == ref {
			return item, nil
		}
		if strings.HasPrefix(id, ref) {
			found = append(found, item)
		}
	}
	switch len(found) {
	case 0:
		return zero, fmt.Errorf("no record with id %q", ref)
	case 1:
		return found[0], nil
	default:
		return zero, fmt.Errorf("id %q is ambiguous (%d matches)", ref, len(found))
	}
}

func today() string {
	return time.Now().Format(constants.DateFormat)
}

// parseDate accepts YYYY-MM-DD, "today" and "tomorrow".
func parseDate(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "today":
		return today(), nil
	case "tomorrow":
		return time.Now().AddDate(0, 0, 1).Format(constants.DateFormat), nil
	}
	if _, err := time.Parse(constants.DateFormat, s); err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD, today or tomorrow)", s)
	}
	return s, nil
}

func parseDays(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	names := map[string]int{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if len(part) >= 3 {
			if d, ok := names[part[:3]]; ok {
				days = append(days, d)
				continue
			}
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday: %s", part)
		}
		days = append(days, d)
	}
	return days, nil
}

func (c *Context) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	c.printf("%s\n", data)
	return nil
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// promptPassword reads a password without echo.
func promptPassword(title string) (string, error) {
	var pw string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			EchoMode(huh.EchoModePassword).
			Value(&pw),
	)).Run()
	return pw, err
}
