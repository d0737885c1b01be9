package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/stridecoach/setback/internal/engine"
)

// Cap the context block so a pile of low-grade events can't crowd the
// agent's instructions. The list arrives ordered by impact, so truncation
// keeps the most impactful events.
const maxContextEvents = 5

// buildContext renders active events as splice-ready plain text for the
// conversational agent's instruction block. Returns "" when nothing is worth
// mentioning; how the agent phrases things is its own business.
func buildContext(events []engine.ContextEvent) string {
	if len(events) == 0 {
		return ""
	}
	if len(events) > maxContextEvents {
		events = events[:maxContextEvents]
	}

	var b strings.Builder
	b.WriteString("## Current Life Events\n")
	b.WriteString("The user is dealing with the following temporary disruptions. Adjust coaching expectations accordingly.\n")

	for _, ce := range events {
		e := ce.Event
		age := "today"
		if days := int(time.Since(time.UnixMilli(e.CreatedAt)).Hours() / 24); days > 0 {
			age = fmt.Sprintf("%dd ago", days)
		}
		b.WriteString(fmt.Sprintf("- [%s] %s (impact %.2f, %s, started %s)",
			e.EventType, e.Title, ce.CurrentImpact, e.Status, age))
		if e.Description != "" {
			b.WriteString(": " + e.Description)
		}
		if len(e.AffectedHabits) > 0 {
			b.WriteString(fmt.Sprintf(" [affects %d habit(s)]", len(e.AffectedHabits)))
		}
		b.WriteString("\n")
	}

	return b.String()
}
