package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// version is overridden at build time with -ldflags "-X .../internal/cli.version=..."
var version = "0.1.0"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deepscan",
	Short: "deepscan - simulated media authenticity scoring",
	Long: `deepscan produces authenticity reports for images, videos and audio clips.

Each report carries a fake-probability, an overall authenticity score,
four per-feature sub-scores, a categorical verdict and a short narrative.

Scores are simulated. deepscan does not inspect media content and its
verdicts must not be used to make decisions about real media.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of deepscan.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "deepscan v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.deepscan/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	configureViper(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".deepscan"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

// configureViper registers defaults and DEEPSCAN_* environment lookup,
// e.g. DEEPSCAN_ANALYSIS_DELAY=1s or DEEPSCAN_SCORING_FAKE_THRESHOLD=90
func configureViper(v *viper.Viper) {
	setDefaults(v)
	v.SetEnvPrefix("DEEPSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
