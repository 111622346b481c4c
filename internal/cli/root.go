package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apresai/personacall/internal/config"
	"github.com/apresai/personacall/internal/observability"
)

var Version = "dev"

var (
	v      = config.New()
	cfg    *config.Config
	logger *slog.Logger

	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:           "personacall",
	Short:         "Simulate Indian-English user research participants on a live call",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = observability.InitLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "personacall %s\n", Version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (default ./personacall.yaml or ~/.personacall/personacall.yaml)")
	pf.StringP("model", "m", "haiku", "Completion model: haiku, sonnet, nova-lite, gemini-flash, gemini-pro")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("personas", "personas.json", "Persona JSON file (when personas.source is file)")
	pf.String("personas-source", "file", "Persona store: file or dynamodb")
	pf.String("regions", "", "Regional profile table YAML overriding the built-in one")
	pf.String("timing", "simultaneous", "Response timing: simultaneous or staggered")
	pf.Int64("seed", 0, "Random seed for responder selection (0 uses the clock)")
	pf.Duration("timeout", 0, "Per-response generation timeout (default 8s)")

	bind(pf.Lookup("model"), "model")
	bind(pf.Lookup("log-level"), "log_level")
	bind(pf.Lookup("personas"), "personas.file")
	bind(pf.Lookup("personas-source"), "personas.source")
	bind(pf.Lookup("regions"), "regions.file")
	bind(pf.Lookup("timing"), "timing")
	bind(pf.Lookup("seed"), "seed")
	bind(pf.Lookup("timeout"), "generation.timeout")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(serveCmd)
}

// bind ties a flag to a config key. Only flags the user sets override the
// config file and environment.
func bind(flag *pflag.Flag, key string) {
	_ = v.BindPFlag(key, flag)
}

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
