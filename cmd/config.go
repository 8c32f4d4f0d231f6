package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stride-dev/stride/pkg/ai"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and manage stride configuration",
	Long: `Show the effective configuration and manage stored AI credentials.

Examples:
  stride config                        # Show effective configuration
  stride config set-key anthropic      # Store an API key (prompted, hidden input)
  stride config clear-key anthropic    # Remove a stored API key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShowCommand()
	},
}

// configSetKeyCmd stores a provider API key
var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider>",
	Short: "Store an AI provider API key",
	Long: `Store an API key in the OS keychain, falling back to a credentials
file when no keychain is available. Keys stored this way take
precedence over ai.api_key in the config file and never end up in
plain-text config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigSetKeyCommand(args[0])
	},
}

// configClearKeyCmd removes a stored provider API key
var configClearKeyCmd = &cobra.Command{
	Use:   "clear-key <provider>",
	Short: "Remove a stored AI provider API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigClearKeyCommand(args[0])
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configClearKeyCmd)
}

func runConfigShowCommand() error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	fmt.Println("Stride Configuration")
	fmt.Println("====================")

	fmt.Printf("Board: %s\n", valueOrUnset(cfg.Board.ID))

	fmt.Printf("\nStorage:\n")
	fmt.Printf("  Driver: %s\n", cfg.Storage.Driver)
	if cfg.Storage.Driver == "postgres" {
		fmt.Printf("  DSN: %s\n", redactDSN(cfg.Storage.DSN))
	} else {
		fmt.Printf("  Path: %s\n", cfg.Storage.Path)
	}

	fmt.Printf("\nForecast:\n")
	fmt.Printf("  Window: %d periods\n", cfg.Forecast.WindowPeriods)
	fmt.Printf("  Confidence: %d%%\n", cfg.Forecast.ConfidenceLevel)
	fmt.Printf("  Metric: %s\n", cfg.Forecast.Metric)

	fmt.Printf("\nAI:\n")
	fmt.Printf("  Enabled: %v\n", cfg.AI.Enabled)
	if cfg.AI.Enabled {
		fmt.Printf("  Provider: %s\n", cfg.AI.Provider)
		fmt.Printf("  Model: %s\n", valueOrUnset(cfg.AI.Model))
		if cfg.AI.APIKey != "" {
			fmt.Println("  API key: set in config file (prefer 'stride config set-key')")
		}
	}

	fmt.Printf("\nWatch:\n")
	fmt.Printf("  Interval: %s\n", cfg.Watch.Interval)
	if len(cfg.Watch.Boards) > 0 {
		fmt.Printf("  Boards: %s\n", strings.Join(cfg.Watch.Boards, ", "))
	}

	fmt.Printf("\nTelemetry:\n")
	fmt.Printf("  Enabled: %v\n", cfg.Telemetry.Enabled)
	if cfg.Telemetry.Enabled {
		fmt.Printf("  Addr: %s\n", cfg.Telemetry.Addr)
	}

	return nil
}

func runConfigSetKeyCommand(provider string) error {
	provider = strings.ToLower(provider)
	switch provider {
	case ai.ProviderAnthropic, ai.ProviderGemini, ai.ProviderOllama:
	default:
		return errors.Newf("unknown provider %q: must be anthropic, gemini, or ollama", provider)
	}

	key, err := readSecret(fmt.Sprintf("Enter API key for %s: ", provider))
	if err != nil {
		return errors.Wrap(err, "failed to read key")
	}
	if key == "" {
		return errors.New("no key entered")
	}

	if err := ai.NewKeyStore().Set(provider, key); err != nil {
		return errors.Wrap(err, "failed to store key")
	}

	fmt.Printf("✓ API key stored for %s\n", provider)
	return nil
}

func runConfigClearKeyCommand(provider string) error {
	if err := ai.NewKeyStore().Clear(strings.ToLower(provider)); err != nil {
		return errors.Wrap(err, "failed to clear key")
	}
	fmt.Printf("✓ API key cleared for %s\n", provider)
	return nil
}

// readSecret prompts for a value without echoing when stdin is a
// terminal; piped input is read as a single line.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// redactDSN hides the password portion of a connection string.
func redactDSN(dsn string) string {
	if dsn == "" {
		return "(not set)"
	}
	if at := strings.LastIndex(dsn, "@"); at != -1 {
		if colon := strings.Index(dsn, "://"); colon != -1 {
			return dsn[:colon+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
