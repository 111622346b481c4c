package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/personacall/internal/ingest"
	"github.com/apresai/personacall/internal/pipeline"
	"github.com/apresai/personacall/internal/prompt"
	"github.com/apresai/personacall/internal/region"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <location>...",
	Short: "Show the speech region each location maps to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, loc := range args {
			fmt.Fprintf(out, "%-32s %s\n", loc, region.Classify(loc))
		}
		return nil
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt <persona-id>",
	Short: "Print the system prompt a participant would receive",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrompt,
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the regional speech profiles",
	RunE:  runRegions,
}

var (
	flagPromptTopic string
	flagPromptBrief string
)

func init() {
	promptCmd.Flags().StringVar(&flagPromptTopic, "topic", "", "What the call is about (default \"product feedback\")")
	promptCmd.Flags().StringVarP(&flagPromptBrief, "brief", "b", "", "Reference material (text file, PDF, or URL)")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	table, err := pipeline.LoadTable(cfg.Regions.File)
	if err != nil {
		return err
	}
	store, closeStore, err := pipeline.OpenPersonas(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := store.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("persona %q: %w", args[0], err)
	}

	b := prompt.Builder{}
	if flagPromptBrief != "" {
		brief, err := ingest.Load(ctx, flagPromptBrief)
		if err != nil {
			return err
		}
		b.Brief = brief.Text
	}

	fmt.Fprintln(cmd.OutOrStdout(), b.Build(p, table.Lookup(region.Classify(p.Location)), flagPromptTopic))
	return nil
}

func runRegions(cmd *cobra.Command, args []string) error {
	table, err := pipeline.LoadTable(cfg.Regions.File)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nRegional profiles:")
	for _, prof := range table.Profiles() {
		fmt.Fprintf(out, "\n  %s\n", strings.ToUpper(string(prof.Code)))
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))
		fmt.Fprintf(out, "  %-16s %s\n", "Accent", prof.Accent)
		fmt.Fprintf(out, "  %-16s %s\n", "Native language", prof.NativeLanguage)
		fmt.Fprintf(out, "  %-16s %s\n", "Filler words", strings.Join(prof.FillerWords, ", "))
		fmt.Fprintf(out, "  %-16s %s\n", "Speech style", prof.SpeechStyle)

		providers := make([]string, 0, len(prof.Voices))
		for name := range prof.Voices {
			providers = append(providers, name)
		}
		sort.Strings(providers)
		for _, name := range providers {
			fmt.Fprintf(out, "  %-16s %s\n", "Voice ("+name+")", prof.Voices[name])
		}
	}
	fmt.Fprintln(out)
	return nil
}
