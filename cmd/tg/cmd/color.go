package cmd

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

// colorizeResults highlights the leading "path:line" of each
// ripgrep-style result line when stdout is a terminal, leaving output
// byte-for-byte unchanged otherwise so it stays pipeable into other
// tools.
func colorizeResults(output string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return output
	}

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		first := strings.IndexByte(line, ':')
		if first < 0 {
			continue
		}
		second := strings.IndexByte(line[first+1:], ':')
		if second < 0 {
			continue
		}
		end := first + 1 + second
		lines[i] = pathStyle.Render(line[:end]) + line[end:]
	}
	return strings.Join(lines, "\n")
}
