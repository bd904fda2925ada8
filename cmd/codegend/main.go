package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"codegend/internal/config"
)

// Version information set at build time
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	configPath string
	logLevel   string
	ollamaHost string
	modelName  string
)

var rootCmd = &cobra.Command{
	Use:   "codegend",
	Short: "codegend - streaming code generation over Ollama",
	Long: `codegend accepts code generation prompts, streams the tokens produced
by a local Ollama model to browser clients over WebSocket and keeps a
history of every generation.

Running codegend without a subcommand starts the server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .json or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&ollamaHost, "ollama-host", "", "Ollama base URL, e.g. http://localhost:11434")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model used for new generations")

	rootCmd.SetVersionTemplate(fmt.Sprintf("codegend %s (%s)\n", Version, BuildTime))

	addServeFlags(rootCmd)
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "codegend %s (%s)\n", Version, BuildTime)
	},
}

// loadConfig resolves settings in increasing precedence: defaults, config
// file, .env and process environment, command-line flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	cfg := config.Defaults()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if err := config.ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("ollama-host") {
		cfg.OllamaHost = ollamaHost
	}
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	applyServeFlags(cmd, &cfg)
	return cfg, cfg.Validate()
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
