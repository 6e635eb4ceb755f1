package formatter

import (
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// OrderStatusStyle returns the style for a work order status.
func OrderStatusStyle(s domain.OrderStatus) lipgloss.Style {
	switch s {
	case domain.OrderActive:
		return StyleBlue
	case domain.OrderCompleted:
		return StyleGreen
	case domain.OrderCancelled:
		return StyleRed
	default:
		return StyleDim
	}
}

// OrderStatusPill renders a status such as "● ACTIVE".
func OrderStatusPill(s domain.OrderStatus) string {
	return OrderStatusStyle(s).Render("● " + upper(string(s)))
}

func PlanStatusPill(s domain.PlanStatus) string {
	switch s {
	case domain.PlanActive:
		return StyleBlue.Render("● ACTIVE")
	case domain.PlanClosed:
		return StyleGreen.Render("● CLOSED")
	default:
		return StyleYellow.Render("● IN CONSTRUCTION")
	}
}
