package cmd

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v2"

	"grimm.is/ifctl/internal/errors"
)

var (
	primaryColor = lipgloss.Color("#25A065")
	dangerColor  = lipgloss.Color("#DC3545")
	mutedColor   = lipgloss.Color("240")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(mutedColor)

	cellStyle = lipgloss.NewStyle().PaddingRight(2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Width(16)

	upStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	downStyle = lipgloss.NewStyle().Foreground(dangerColor)
	mutedText = lipgloss.NewStyle().Foreground(mutedColor)
)

// Output formats accepted by -o.
const (
	formatTable = "table"
	formatYAML  = "yaml"
)

func checkFormat(f string) error {
	if f != formatTable && f != formatYAML {
		return errors.Errorf(errors.KindValidation, "unknown output format %q (want table or yaml)", f)
	}
	return nil
}

func state(up bool) string {
	if up {
		return upStyle.Render("up")
	}
	return downStyle.Render("down")
}

func orDash(s string) string {
	if s == "" {
		return mutedText.Render("-")
	}
	return s
}

// renderTable lays rows out under headers, each column as wide as its
// widest cell.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for c, h := range headers {
		widths[c] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for c, cell := range row {
			widths[c] = max(widths[c], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	cells := make([]string, len(headers))
	for c, h := range headers {
		cells[c] = headerStyle.Width(widths[c] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	b.WriteString("\n")
	for _, row := range rows {
		for c := range headers {
			cells[c] = cellStyle.Width(widths[c] + 2).Render(row[c])
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFields renders label/value pairs, one per line.
func renderFields(pairs [][2]string) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(labelStyle.Render(p[0]))
		b.WriteString(p[1])
		b.WriteString("\n")
	}
	return b.String()
}

func writeYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.KindEncoding, "failed to render yaml")
	}
	_, err = w.Write(out)
	return err
}
