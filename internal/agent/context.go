package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/model"
)

// buildEnvContext renders the per-turn environmental grounding block
// prepended to the user's message. It is deliberately NOT persisted to
// the durable conversation log: grounding is ephemeral turn context,
// not dialogue.
func (a *Agent) buildEnvContext(now time.Time) string {
	var b strings.Builder
	b.WriteString("[REAL-TIME ENVIRONMENTAL CONTEXT]\n")
	fmt.Fprintf(&b, "Current time: %s\n", now.Format("Monday, January 2, 2006 at 15:04"))

	items := a.store.CalendarItems()
	var upcoming []model.CalendarItem
	for _, item := range items {
		if item.Status == model.ItemStatusScheduled || item.Status == model.ItemStatusSent {
			upcoming = append(upcoming, item)
		}
	}
	if len(upcoming) > 0 {
		b.WriteString("Calendar items:\n")
		for _, item := range upcoming {
			fmt.Fprintf(&b, "- %s at %s (%s)\n", item.Title, item.ScheduledAt, item.Status)
		}
	} else {
		b.WriteString("Calendar items: none\n")
	}

	actions := a.store.DeviceActions()
	if len(actions) > 0 {
		b.WriteString("Pending device actions:\n")
		for _, action := range actions {
			fmt.Fprintf(&b, "- %s: %s\n", action.Kind, action.TextToSpeak)
		}
	} else {
		b.WriteString("Pending device actions: none\n")
	}

	caregivers := a.store.Caregivers()
	if len(caregivers) > 0 {
		names := make([]string, 0, len(caregivers))
		for _, cg := range caregivers {
			name := cg.Name
			if cg.Primary {
				name += " (primary)"
			}
			names = append(names, name)
		}
		fmt.Fprintf(&b, "Registered caregivers: %s\n", strings.Join(names, ", "))
	}

	// Location and weather are a stub until the kiosk reports them.
	b.WriteString("Location: at home\n")
	b.WriteString("[END ENVIRONMENTAL CONTEXT]")
	return b.String()
}
