package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/d2site/pkg/pipeline"
)

// Status lines go to the CLI's status writer (stderr by default), so that
// `d2site render` can stream HTML on stdout.

// =============================================================================
// Styles
// =============================================================================

var (
	colorAccent = lipgloss.Color("36")  // teal
	colorOK     = lipgloss.Color("35")  // green
	colorWarn   = lipgloss.Color("220") // amber
	colorFail   = lipgloss.Color("167") // soft red
	colorLink   = lipgloss.Color("75")  // light blue
	colorValue  = lipgloss.Color("255")
	colorMuted  = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	// StyleTitle for command headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorLink).Underline(true)

	// StyleDim for secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for paths and config values.
	StyleValue = lipgloss.NewStyle().Foreground(colorValue)

	// StyleNumber for counts.
	StyleNumber = lipgloss.NewStyle().Foreground(colorAccent)

	// StyleWarning for warnings and failed diagram counts.
	StyleWarning = lipgloss.NewStyle().Foreground(colorWarn)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorOK)
	styleIconError   = lipgloss.NewStyle().Foreground(colorFail)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorMuted)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorAccent)

	styleCached   = lipgloss.NewStyle().Foreground(colorOK)
	styleRendered = lipgloss.NewStyle().Foreground(colorMuted)
	styleKey      = lipgloss.NewStyle().Foreground(colorMuted).Width(12)
	styleCommand  = lipgloss.NewStyle().Foreground(colorLink)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Lines
// =============================================================================

func (c *CLI) line(icon, msg string) {
	if icon == "" {
		fmt.Fprintln(c.status, msg)
		return
	}
	fmt.Fprintln(c.status, icon+" "+msg)
}

func (c *CLI) printTitle(title string) {
	c.line("", StyleTitle.Render(title))
}

func (c *CLI) printSuccess(format string, args ...any) {
	c.line(styleIconSuccess.Render(iconSuccess), fmt.Sprintf(format, args...))
}

func (c *CLI) printError(format string, args ...any) {
	c.line(styleIconError.Render(iconError), fmt.Sprintf(format, args...))
}

func (c *CLI) printWarning(format string, args ...any) {
	c.line(StyleWarning.Render(iconWarning), StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func (c *CLI) printInfo(format string, args ...any) {
	c.line(styleIconInfo.Render(iconInfo), fmt.Sprintf(format, args...))
}

// printDetail prints an indented secondary line.
func (c *CLI) printDetail(format string, args ...any) {
	c.line("", "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written output path.
func (c *CLI) printFile(path string) {
	c.line("", "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func (c *CLI) printKeyValue(key, value string) {
	c.line("", styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printNextStep suggests a command to run.
func (c *CLI) printNextStep(description, cmd string) {
	c.line("", StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

func (c *CLI) printNewline() {
	c.line("", "")
}

// =============================================================================
// Build Summary
// =============================================================================

// printBuildResult prints a headline and the diagram counts, e.g.
//
//	✓ Built 12 documents into dist
//	  9 diagrams · 2 rendered · 6 cached · 1 failed · 340ms
func (c *CLI) printBuildResult(result *pipeline.Result, outDir string) {
	c.printSuccess("Built %s into %s",
		StyleNumber.Render(fmt.Sprintf("%d documents", result.Stats.Documents)),
		StyleValue.Render(outDir))
	c.line("", "  "+strings.Join(summaryParts(result.Stats), StyleDim.Render(" · ")))
}

func summaryParts(s pipeline.Stats) []string {
	d := s.Diagrams
	parts := []string{fmt.Sprintf("%d diagrams", d.Blocks)}
	if rendered := d.Blocks - d.Cached - d.Failed; rendered > 0 {
		parts = append(parts, styleRendered.Render(fmt.Sprintf("%d rendered", rendered)))
	}
	if d.Cached > 0 {
		parts = append(parts, styleCached.Render(fmt.Sprintf("%d cached", d.Cached)))
	}
	if d.Failed > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d failed", d.Failed)))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d drafts skipped", s.Skipped))
	}
	return append(parts, s.Duration.Round(time.Millisecond).String())
}
