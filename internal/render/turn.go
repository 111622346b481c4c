package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"

	"github.com/apresai/personacall/internal/call"
	"github.com/apresai/personacall/internal/region"
)

var (
	nameStyle   = lipgloss.NewStyle().Bold(true)
	regionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	silentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")).Italic(true)

	regionColors = map[region.Code]lipgloss.Color{
		region.North: lipgloss.Color("#FF8C42"),
		region.South: lipgloss.Color("#04B575"),
		region.West:  lipgloss.Color("#3FA7D6"),
		region.East:  lipgloss.Color("#F25F5C"),
		region.Tamil: lipgloss.Color("#FFD23F"),
	}
)

// TurnRenderer prints turn progress and the participants' responses. On a
// TTY the status line is rewritten in place and output is styled; otherwise
// it prints timestamped plain lines.
type TurnRenderer struct {
	out     io.Writer
	start   time.Time
	isTTY   bool
	width   int
	status  bool // a status line is currently on screen
	lastErr error
}

// NewTurnRenderer creates a renderer that writes to out, detecting TTY mode
// and terminal width.
func NewTurnRenderer(out *os.File) *TurnRenderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return &TurnRenderer{out: out, start: time.Now(), isTTY: tty, width: width}
}

// NewPlainRenderer creates a renderer without terminal styling.
func NewPlainRenderer(out io.Writer) *TurnRenderer {
	return &TurnRenderer{out: out, start: time.Now(), width: 80}
}

// Handle processes a progress event. It satisfies Callback.
func (r *TurnRenderer) Handle(e Event) {
	e.Elapsed = time.Since(r.start)
	if e.Error != nil {
		r.lastErr = e.Error
	}

	if !r.isTTY {
		fmt.Fprintf(r.out, "[%s] %s\n", formatElapsed(e.Elapsed), e.Message)
		return
	}
	r.clearStatus()
	line := truncate(fmt.Sprintf("  %s  %s", e.Message, formatElapsed(e.Elapsed)), r.width)
	fmt.Fprint(r.out, statusStyle.Render(line))
	r.status = true
}

// Reply prints every response of a turn. A turn with no responses prints a
// single silence marker.
func (r *TurnRenderer) Reply(reply call.Reply) {
	r.clearStatus()
	if len(reply.Responses) == 0 {
		r.println(silentStyle, "  (no one responded)")
		return
	}
	for _, resp := range reply.Responses {
		r.response(resp)
	}
}

// Finish clears the status line and reports the last error, if any.
func (r *TurnRenderer) Finish() {
	r.clearStatus()
	if r.lastErr != nil {
		r.println(errorStyle, fmt.Sprintf("\n  Error: %v", r.lastErr))
		return
	}
	fmt.Fprintf(r.out, "\n  Done (%s)\n", formatElapsed(time.Since(r.start)))
}

func (r *TurnRenderer) response(resp call.Response) {
	header := fmt.Sprintf("%s (%s)", resp.AgentName, resp.Region)
	if resp.DelayMS > 0 {
		header += fmt.Sprintf(" +%dms", resp.DelayMS)
	}
	if !r.isTTY {
		fmt.Fprintf(r.out, "%s: %s\n", header, resp.ResponseText)
		return
	}

	name := nameStyle.Foreground(regionColor(resp.Region)).Render(resp.AgentName)
	meta := regionStyle.Render(strings.TrimPrefix(header, resp.AgentName))
	body := lipgloss.NewStyle().Width(r.width - 4).PaddingLeft(4).Render(resp.ResponseText)
	fmt.Fprintf(r.out, "  %s%s\n%s\n\n", name, meta, body)
}

func (r *TurnRenderer) println(style lipgloss.Style, s string) {
	if r.isTTY {
		s = style.Render(s)
	}
	fmt.Fprintln(r.out, s)
}

func (r *TurnRenderer) clearStatus() {
	if !r.status {
		return
	}
	fmt.Fprint(r.out, "\r\033[2K")
	r.status = false
}

func regionColor(code region.Code) lipgloss.Color {
	if c, ok := regionColors[code]; ok {
		return c
	}
	return regionColors[region.Fallback]
}

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

// formatElapsed formats a duration as M:SS.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
