// Package main is the entry point for the chatbot-e2e application
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethpandaops/chatbot-e2e/cmd"
)

const (
	envFlag      = "--env"
	envFlagEqual = "--env="
)

func main() {
	envFile, runTUI := parseArgs(os.Args[1:])

	if runTUI {
		cmd.RunInteractive(envFile)
		return
	}

	cmd.Execute()
}

// parseArgs extracts the env file and reports whether only it was given, in
// which case the interactive mode runs.
func parseArgs(args []string) (envFile string, runTUI bool) {
	for i, arg := range args {
		if arg == envFlag && i+1 < len(args) {
			envFile = args[i+1]
			break
		}

		if strings.HasPrefix(arg, envFlagEqual) {
			envFile = arg[len(envFlagEqual):]
			break
		}
	}

	switch len(args) {
	case 0:
		return envFile, true
	case 1:
		if args[0] == envFlag {
			fmt.Fprintln(os.Stderr, "Error: --env flag requires a value")
			os.Exit(1)
		}

		return envFile, strings.HasPrefix(args[0], envFlagEqual)
	case 2:
		return envFile, args[0] == envFlag
	default:
		return envFile, false
	}
}
