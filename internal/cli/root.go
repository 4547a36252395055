package cli

import (
	"fmt"
	"os"

	"github.com/andywolf/sprintwatch/internal/config"
	"github.com/andywolf/sprintwatch/internal/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sprintwatch",
	Short: "Sprintwatch - Jira sprint and dependency reports for Slack",
	Long: `Sprintwatch pulls issues, sprints and links from Jira, writes CSV reports
and charts, and posts them to a Slack channel.

Each report is a standalone batch job: fetch, transform, write the CSV,
render charts, publish, then optionally archive the artifacts to S3 and
announce the run on NATS.

Example:
  sprintwatch dependencies --project CLP
  sprintwatch readiness --no-publish --output-dir out/`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Set version for --version flag
	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sprintwatch.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging on the console")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for CSV and chart files (default is the current directory)")
	rootCmd.PersistentFlags().Bool("no-publish", false, "write reports without posting to Slack")
	rootCmd.PersistentFlags().String("project", "", "Jira project key (overrides jira.project_key)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag("jira.project_key", rootCmd.PersistentFlags().Lookup("project"))
}

func initConfig() {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sprintwatch")
	}

	viper.SetEnvPrefix("SPRINTWATCH")
	viper.AutomaticEnv()
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		os.Exit(1)
	}
}
