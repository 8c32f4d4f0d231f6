package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stride-dev/stride/pkg/bootstrap"
	"github.com/stride-dev/stride/pkg/config"
)

var cfgFile string
var verbose bool
var appConfig *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Stride - velocity forecasting and delivery coaching",
	Long: `Stride turns a project board's velocity history into completion
forecasts with confidence intervals, and runs a battery of coaching
detectors over board state to surface concrete delivery risks.

Suggestions learn from your feedback: types a team consistently rejects
are suppressed, and confidence is re-weighted toward observed usefulness.
AI enhancement is optional; every suggestion is complete without it.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Pre-parse global flags so config is loaded before Cobra runs.
	cfgFile, verbose = bootstrap.PreParseGlobalFlags(os.Args)

	if err := initConfig(); err != nil {
		cobra.CheckErr(err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		_ = initConfig()
	})

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "C", "", "config file (default is $HOME/.config/stride/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	var err error
	appConfig, verbose, err = bootstrap.InitConfig(cfgFile, verbose)
	return err
}

// loadConfig returns the latest configuration derived from viper.
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// resetConfig clears the cached configuration.
// This is primarily used in tests to ensure each test starts with a fresh config.
func resetConfig() {
	appConfig = nil
	bootstrap.Reset()
	viper.Reset()
}
