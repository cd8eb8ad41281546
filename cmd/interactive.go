package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/chatbot-e2e/internal/actions"
	"github.com/ethpandaops/chatbot-e2e/internal/interactive"
)

// RunInteractive runs the menu-driven mode used when no arguments are given.
func RunInteractive(env string) {
	envFile = env
	InitLogger()

	fmt.Println("Chatbot E2E - Interactive Mode")
	fmt.Println("==============================")
	fmt.Println()

	for {
		options := []interactive.MenuOption{
			{
				Name:        "▶ Run",
				Description: "Run every case in ./fixtures",
				Action: func() error {
					showOutcome(interactiveRun(runOptions{concurrency: 1}))
					return nil
				},
			},
			{
				Name:        "🏷  Run by tag",
				Description: "Run the cases in ./fixtures carrying a tag",
				Action: func() error {
					tag, err := interactive.Input("Tag:", "smoke", "")
					if err != nil {
						return nil //nolint:nilerr // prompt aborted, back to the menu
					}

					showOutcome(interactiveRun(runOptions{tags: []string{tag}, concurrency: 1}))

					return nil
				},
			},
			{
				Name:        "✅ Validate",
				Description: "Check the configuration and fixture files",
				Action: func() error {
					showOutcome(validateFixtures(os.Stdout, nil))
					return nil
				},
			},
			{
				Name:        "📋 Show Config",
				Description: "Display current configuration",
				Action: func() error {
					showOutcome(actions.ShowConfig(os.Stdout, envFile, configFile))
					return nil
				},
			},
			{
				Name:        "🛠  Init",
				Description: "Scaffold a config file and example fixtures",
				Action: func() error {
					if !interactive.Confirm("Write chatbot-e2e.yaml and fixtures/examples.yaml?") {
						fmt.Println("Init canceled.")
						return nil
					}

					showOutcome(scaffold(true))

					return nil
				},
			},
		}

		if err := interactive.ShowMainMenu(options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return
			}

			Logger.Fatal(err)
		}

		fmt.Println()
	}
}

func interactiveRun(opts runOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := executeRun(ctx, opts)
	if err != nil {
		return err
	}

	return checkResults(results)
}

// showOutcome prints the outcome of a menu action and waits for Enter.
func showOutcome(err error) {
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
	}

	interactive.PauseForEnter()
}
