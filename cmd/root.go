package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osctools/obsup/internal/command"
	"github.com/osctools/obsup/internal/output"
	"github.com/osctools/obsup/internal/update"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "obsup",
	Short: "Automate package updates in the Open Build Service",
	Long: `obsup branches a package in the Open Build Service, writes updated
files into the branch, commits them and opens a submit request back to
the origin project. All remote interaction goes through the osc command
line client.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/obsup/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OBSUP")
	viper.AutomaticEnv()

	viper.SetDefault("api_url", update.DefaultAPIURL)
	viper.SetDefault("osc_bin", "osc")
	viper.SetDefault("step_timeout", time.Minute)
	viper.SetDefault("request.states", "new,review,declined")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "obsup"), nil
}

// oscCommand builds the osc invocation prefix from the effective config.
func oscCommand() string {
	return fmt.Sprintf("%s -A %s", viper.GetString("osc_bin"), viper.GetString("api_url"))
}

// newUpdater wires an Updater from the effective config.
func newUpdater(produce update.FileProducer) *update.Updater {
	return &update.Updater{
		APIURL:       viper.GetString("api_url"),
		OscBin:       viper.GetString("osc_bin"),
		StepTimeout:  viper.GetDuration("step_timeout"),
		Runner:       &command.Runner{Log: ui},
		Log:          ui,
		ProduceFiles: produce,
	}
}
