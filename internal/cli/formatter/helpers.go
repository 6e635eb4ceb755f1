package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(1).
		PaddingRight(1)

	if title != "" {
		content = StyleHeader.Render(title) + "\n\n" + content
	}
	return boxStyle.Render(content)
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}

// Optional renders a nullable value, or a dimmed "--".
func Optional(s *string) string {
	if s == nil || *s == "" {
		return StyleDim.Render("--")
	}
	return *s
}

func OptionalDate(t *time.Time) string {
	if t == nil {
		return StyleDim.Render("--")
	}
	return t.Format("2006-01-02")
}

func OptionalInt(n *int64) string {
	if n == nil {
		return StyleDim.Render("--")
	}
	return fmt.Sprintf("%d", *n)
}

func upper(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "_", " "))
}
