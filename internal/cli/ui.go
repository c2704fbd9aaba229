package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	graphio "github.com/matzehuels/autofuse/pkg/io"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)
	styleKey      = lipgloss.NewStyle().Foreground(colorGray).Width(14)
	styleHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints a detail line (indented).
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// keyValue renders a labeled value.
func keyValue(key, value string) string {
	return styleKey.Render(key) + " " + StyleValue.Render(value)
}

// newTable returns a rounded table in the CLI palette.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if col > 0 {
				return lipgloss.NewStyle().Foreground(colorCyan).Align(lipgloss.Right)
			}
			return lipgloss.NewStyle()
		})
}

// =============================================================================
// Fusion Summary
// =============================================================================

// renderSummary formats a fusion report for the terminal.
func renderSummary(r graphio.Report) string {
	res := r.Result
	var b strings.Builder

	status := styleComputed.Render(iconFresh)
	if r.Cached {
		status = styleCached.Render(iconCached)
	}
	b.WriteString(StyleTitle.Render("Fusion summary") + "  " + status + "\n")

	lines := []string{
		keyValue("policy", r.Policy),
		keyValue("nodes", fmt.Sprintf("%d %s %d", r.NodesBefore, iconArrow, r.NodesAfter)),
	}
	if res != nil {
		lines = append(lines,
			keyValue("rounds", strconv.Itoa(res.Rounds)),
			keyValue("fusions", strconv.Itoa(res.Fusions)),
			keyValue("fused nodes", strconv.Itoa(res.Stats.FusedCount)),
			keyValue("scale", fmt.Sprintf("min %d · avg %.2f · max %d", res.Stats.MinScale, res.Stats.AvgScale, res.Stats.MaxScale)),
			keyValue("reads", res.Stats.TotalRead.String()),
			keyValue("writes", res.Stats.TotalWrite.String()),
			keyValue("pass", StyleDim.Render(res.PassID)),
		)
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")

	if res != nil && len(res.Rejections) > 0 {
		t := newTable("rejected", "pairs")
		for _, reason := range slices.Sorted(maps.Keys(res.Rejections)) {
			t.Row(reason, strconv.Itoa(res.Rejections[reason]))
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	return b.String()
}
