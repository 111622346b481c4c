package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/apresai/personacall/internal/call"
	"github.com/apresai/personacall/internal/pipeline"
	"github.com/apresai/personacall/internal/render"
)

var respondCmd = &cobra.Command{
	Use:   "respond [utterance]",
	Short: "Ask the participants something and print their replies",
	Long: `Answers one interviewer utterance. With no utterance argument, reads one
utterance per line from stdin and answers each as a turn of the same call.`,
	RunE: runRespond,
}

var (
	flagPersonas []string
	flagMode     string
	flagTopic    string
	flagBrief    string
	flagSpeakDir string
	flagJSON     bool
)

func init() {
	f := respondCmd.Flags()
	f.StringSliceVarP(&flagPersonas, "persona", "p", nil, "Participant persona IDs in join order (default: every stored persona)")
	f.StringVar(&flagMode, "mode", "one_on_one", "Call mode: one_on_one or group")
	f.StringVar(&flagTopic, "topic", "", "What the call is about (default \"product feedback\")")
	f.StringVarP(&flagBrief, "brief", "b", "", "Reference material participants have seen (text file, PDF, or URL)")
	f.StringVar(&flagSpeakDir, "speak-dir", "", "Write one audio file per reply to this directory")
	f.String("tts", "", "TTS provider for --speak-dir: elevenlabs, polly, google")
	f.BoolVar(&flagJSON, "json", false, "Print the reply as JSON (object for one_on_one, array for group)")

	bind(f.Lookup("tts"), "tts.provider")
}

func runRespond(cmd *cobra.Command, args []string) error {
	if flagMode != string(call.Group) && flagMode != string(call.OneOnOne) {
		return fmt.Errorf("invalid mode %q: must be one_on_one or group", flagMode)
	}
	if flagSpeakDir != "" && cfg.TTS.Provider == "" {
		return fmt.Errorf("--speak-dir needs a TTS provider: pass --tts elevenlabs, polly, or google")
	}

	ctx := cmd.Context()
	rt, err := pipeline.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := pipeline.Options{
		SessionID:  "cli",
		Mode:       call.ParseMode(flagMode),
		PersonaIDs: flagPersonas,
		Topic:      flagTopic,
		Brief:      flagBrief,
		SpeakDir:   flagSpeakDir,
	}

	if len(args) > 0 {
		opts.Utterance = strings.Join(args, " ")
		_, err := respondOnce(cmd, rt, opts)
		return err
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for turn := 1; ; turn++ {
		if interactive {
			fmt.Fprint(cmd.OutOrStdout(), "\nyou> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		opts.Utterance = line
		if flagSpeakDir != "" {
			opts.SpeakDir = fmt.Sprintf("%s/turn-%03d", flagSpeakDir, turn)
		}
		res, err := respondOnce(cmd, rt, opts)
		if err != nil {
			return err
		}
		// Every turn of the call shares the brief read on the first one.
		if opts.LoadedBrief == nil && res != nil {
			opts.LoadedBrief = res.Brief
		}
	}
}

func respondOnce(cmd *cobra.Command, rt *pipeline.Runtime, opts pipeline.Options) (*pipeline.Result, error) {
	out := cmd.OutOrStdout()

	if flagJSON {
		res, err := pipeline.Run(cmd.Context(), rt, opts, nil)
		if err != nil {
			return nil, err
		}
		return res, writeJSON(out, res.Reply)
	}

	r := newRenderer(out)
	res, err := pipeline.Run(cmd.Context(), rt, opts, r.Handle)
	if err != nil {
		r.Handle(render.Event{Stage: render.StageComplete, Message: "Turn failed", Error: err})
		r.Finish()
		return nil, err
	}
	r.Reply(res.Reply)
	for _, f := range res.Files {
		fmt.Fprintf(out, "  audio: %s\n", f)
	}
	return res, nil
}

func newRenderer(w io.Writer) *render.TurnRenderer {
	if f, ok := w.(*os.File); ok {
		return render.NewTurnRenderer(f)
	}
	return render.NewPlainRenderer(w)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
