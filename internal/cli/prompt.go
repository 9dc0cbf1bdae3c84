package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// Prompter abstracts the interactive prompts used during plan review so the
// review loop can be driven headless in tests.
type Prompter interface {
	Select(title string, options []string) (string, error)
	Input(title, current string) (string, error)
	Confirm(title string) (bool, error)
}

// PromptFuncs adapts optional prompt callbacks into a Prompter.
type PromptFuncs struct {
	SelectFunc  func(title string, options []string) (string, error)
	InputFunc   func(title, current string) (string, error)
	ConfirmFunc func(title string) (bool, error)
}

// Select prompts for one of options. Returns an error if no SelectFunc is
// configured.
func (p PromptFuncs) Select(title string, options []string) (string, error) {
	if p.SelectFunc == nil {
		return "", fmt.Errorf("select prompt not configured")
	}
	return p.SelectFunc(title, options)
}

// Input prompts for a string with a prefilled current value. Returns an
// error if no InputFunc is configured.
func (p PromptFuncs) Input(title, current string) (string, error) {
	if p.InputFunc == nil {
		return "", fmt.Errorf("input prompt not configured")
	}
	return p.InputFunc(title, current)
}

// Confirm prompts for a yes/no decision. Returns an error if no ConfirmFunc
// is configured.
func (p PromptFuncs) Confirm(title string) (bool, error) {
	if p.ConfirmFunc == nil {
		return false, fmt.Errorf("confirm prompt not configured")
	}
	return p.ConfirmFunc(title)
}

// huhPrompter implements Prompter with charmbracelet/huh forms.
type huhPrompter struct{}

func (huhPrompter) Select(title string, options []string) (string, error) {
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o)
	}
	var value string
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().Title(title).Options(opts...).Value(&value),
	)).Run()
	return value, err
}

func (huhPrompter) Input(title, current string) (string, error) {
	value := current
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title(title).Value(&value),
	)).Run()
	return value, err
}

func (huhPrompter) Confirm(title string) (bool, error) {
	var value bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&value),
	)).Run()
	return value, err
}
