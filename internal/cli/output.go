package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"wv-forge/internal/types"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#00875F", Dark: "#5FD787"}
	colorError   = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}
)

type outputStyles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
}

func newOutputStyles() outputStyles {
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	return outputStyles{
		Header:  lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Dim:     lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func printRunSummary(w io.Writer, summary types.RunSummary) {
	styles := newOutputStyles()
	fmt.Fprintln(w, styles.Header.Render("run "+summary.RunID))
	for _, level := range summary.Levels {
		if level.Skipped {
			fmt.Fprintf(w, "  %s %s\n", level.Name, styles.Dim.Render("(not started)"))
			continue
		}
		line := fmt.Sprintf("  %s: built %d, failed %d, published %d, already present %d",
			level.Name, len(level.Built), len(level.Failed), level.Published, level.Present)
		if len(level.Failed) > 0 {
			line = styles.Warning.Render(line)
		}
		fmt.Fprintln(w, line)
	}
	for _, result := range summary.Results {
		status := styles.Success.Render("ok")
		if !result.OK {
			status = styles.Error.Render("FAILED")
		}
		fmt.Fprintf(w, "  %-40s %s %s\n", result.Name, status, styles.Dim.Render(result.Duration.Round(time.Second).String()))
	}
	if len(summary.Failures) > 0 {
		fmt.Fprintln(w, styles.Error.Render("failed packages: "+strings.Join(summary.Failures, ", ")))
		return
	}
	fmt.Fprintln(w, styles.Success.Render(fmt.Sprintf("all packages built, %d artifacts published", summary.Published())))
}

// shellCommand renders argv one flag pair per line for display.
func shellCommand(args []string) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			if strings.HasPrefix(arg, "-") {
				b.WriteString(" \\\n    ")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(shellQuote(arg))
	}
	return b.String()
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.ContainsAny(arg, " \t;'\"$&|<>*?()") {
		return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
	}
	return arg
}
