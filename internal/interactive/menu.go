// Package interactive provides terminal prompts for the interactive mode and
// the init command.
package interactive

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// MenuOption represents a menu item with its associated action
type MenuOption struct {
	Name        string
	Description string
	Action      func() error
}

var (
	// ErrExit is returned when the user chooses to exit
	ErrExit = errors.New("exit")
	// ErrInvalidSelection is returned when an invalid menu option is selected
	ErrInvalidSelection = errors.New("invalid selection")
)

const exitChoice = "Exit"

// ShowMainMenu displays the menu and runs the selected option's action.
func ShowMainMenu(options []MenuOption) error {
	choices := make([]string, 0, len(options)+1)
	optionMap := make(map[string]MenuOption, len(options))

	for _, opt := range options {
		choice := fmt.Sprintf("%s - %s", opt.Name, opt.Description)
		choices = append(choices, choice)
		optionMap[choice] = opt
	}

	choices = append(choices, exitChoice)

	var selected string

	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: choices,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return ErrExit
	}

	if selected == exitChoice {
		return ErrExit
	}

	if option, ok := optionMap[selected]; ok {
		return option.Action()
	}

	return ErrInvalidSelection
}

// PauseForEnter waits for the user to press Enter
func PauseForEnter() {
	fmt.Println("\nPress Enter to continue...")
	_, _ = fmt.Scanln()
}

// Confirm asks for user confirmation
func Confirm(message string) bool {
	confirmed := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	_ = survey.AskOne(prompt, &confirmed)

	return confirmed
}

// Input asks for a required free-text value, offering def as the default.
func Input(message, def, help string) (string, error) {
	var answer string

	prompt := &survey.Input{
		Message: message,
		Default: def,
		Help:    help,
	}

	if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}

	return answer, nil
}

// Optional asks for a free-text value that may be left empty.
func Optional(message, def, help string) (string, error) {
	var answer string

	prompt := &survey.Input{
		Message: message,
		Default: def,
		Help:    help,
	}

	if err := survey.AskOne(prompt, &answer); err != nil {
		return "", err
	}

	return answer, nil
}

// Select asks the user to pick one of options.
func Select(message string, options []string, def string) (string, error) {
	var answer string

	prompt := &survey.Select{
		Message: message,
		Options: options,
		Default: def,
	}

	if err := survey.AskOne(prompt, &answer); err != nil {
		return "", err
	}

	return answer, nil
}
