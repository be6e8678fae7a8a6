package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitflow/internal/constants"
)

func newTodoForm(fm *TodoFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&fm.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("None", ""),
					huh.NewOption("Low", "low"),
					huh.NewOption("Medium", "medium"),
					huh.NewOption("High", "high"),
				).
				Value(&fm.Priority),
			huh.NewInput().
				Title("Due date (YYYY-MM-DD, optional)").
				Value(&fm.DueDate).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := time.Parse(constants.DateFormat, s)
					return err
				}),
		),
	)
}
