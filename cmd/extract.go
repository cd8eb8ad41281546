package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ethpandaops/chatbot-e2e/internal/browser"
	"github.com/ethpandaops/chatbot-e2e/internal/browser/static"
	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/table"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	extractOpen bool
	extractJSON bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [html file | url]",
	Short: "Print the chat transcript read with the configured selectors",
	Long: `Read the transcript with the configured selectors and print it, for
debugging selector configuration. The target is a saved HTML page when the
argument names an existing file, otherwise a URL loaded in the browser
(BASE_URL when omitted).

Example:
  chatbot-e2e extract saved/chat.html
  chatbot-e2e extract --open
  chatbot-e2e extract https://example.com/?chat=1 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().BoolVar(&extractOpen, "open", false, "Click the open-widget control before reading a live page")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print turns as JSON")
}

func runExtract(_ *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	target := cfg.BaseURL
	if len(args) == 1 {
		target = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor := transcript.NewExtractor(Logger, transcript.OptionsFromSettings(cfg))

	var turns []transcript.ChatTurn

	if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
		page, err := static.Load(target)
		if err != nil {
			return err
		}

		turns, err = extractor.Extract(ctx, page)
		if err != nil {
			return fmt.Errorf("extracting transcript from %s: %w", target, err)
		}
	} else {
		turns, err = extractLive(ctx, cfg, extractor, target)
		if err != nil {
			return err
		}
	}

	return printTurns(os.Stdout, turns)
}

func extractLive(ctx context.Context, cfg *config.Settings, extractor *transcript.Extractor, url string) ([]transcript.ChatTurn, error) {
	b := browser.NewBrowser(Logger, browser.ConfigFromSettings(cfg))
	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	defer func() {
		if err := b.Stop(); err != nil {
			Logger.WithError(err).Warn("failed to stop browser")
		}
	}()

	session, err := b.NewSession(ctx)
	if err != nil {
		return nil, err
	}

	defer session.Close()

	if err := session.Navigate(ctx, url); err != nil {
		return nil, err
	}

	if err := session.WaitForNetworkIdle(ctx, cfg.Browser.NetworkIdleTimeout); err != nil {
		Logger.WithError(err).Warn("network did not become idle, continuing")
	}

	if extractOpen {
		if err := session.WaitForSelector(ctx, cfg.Selectors.OpenWidget, cfg.Browser.WidgetTimeout); err != nil {
			return nil, &transcript.ElementNotFoundError{
				Name:     "open_widget",
				Selector: cfg.Selectors.OpenWidget,
				Waited:   cfg.Browser.WidgetTimeout,
				Err:      err,
			}
		}

		if err := session.Click(ctx, cfg.Selectors.OpenWidget); err != nil {
			return nil, fmt.Errorf("opening widget: %w", err)
		}
	}

	turns, err := extractor.Extract(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("extracting transcript from %s: %w", url, err)
	}

	return turns, nil
}

func printTurns(w io.Writer, turns []transcript.ChatTurn) error {
	if extractJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if turns == nil {
			turns = []transcript.ChatTurn{}
		}

		return enc.Encode(turns)
	}

	if len(turns) == 0 {
		fmt.Fprintln(w, color.YellowString("No chat turns found"))
		return nil
	}

	rows := make([][]string, 0, len(turns))
	for _, turn := range turns {
		rows = append(rows, []string{strconv.Itoa(turn.Order), roleLabel(turn.Role), turn.Text})
	}

	table.NewRenderer(Logger).RenderToWriter(w, []string{"#", "Role", "Text"}, rows, table.WithWrap(80))

	return nil
}

func roleLabel(role transcript.Role) string {
	switch role {
	case transcript.RoleUser:
		return color.CyanString(string(role))
	case transcript.RoleBot:
		return color.GreenString(string(role))
	default:
		return color.YellowString(string(role))
	}
}
