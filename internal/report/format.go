package report

import (
	"fmt"
	"strings"
)

// FormatDaily renders a daily summary as the plain-text report the gateway
// forwards to chat.
func FormatDaily(sum DailySummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DAILY ATTENDANCE %s\n", sum.Date.Format("02/01/2006"))
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	b.WriteString("OVERVIEW:\n")
	fmt.Fprintf(&b, "  Active users: %d\n", sum.TotalActiveUsers)
	fmt.Fprintf(&b, "  Checked in: %d\n", sum.CheckedIn)
	fmt.Fprintf(&b, "  On time: %d\n", sum.OnTime)
	fmt.Fprintf(&b, "  Late: %d\n", sum.Late)
	fmt.Fprintf(&b, "  Not checked in: %d\n", sum.NotCheckedIn)
	fmt.Fprintf(&b, "  Checked out: %d\n", sum.CheckedOut)

	if len(sum.LateArrivals) > 0 {
		b.WriteString("\nLATE ARRIVALS:\n")
		for _, e := range sum.LateArrivals {
			fmt.Fprintf(&b, "  - %s: %s (%d min late)\n", e.Name, e.CheckIn.Format("15:04"), e.MinutesLate)
		}
	}

	if len(sum.Absent) > 0 {
		b.WriteString("\nNOT CHECKED IN:\n")
		for _, name := range sum.Absent {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}

	if len(sum.Present) > 0 {
		b.WriteString("\nCHECKED IN:\n")
		for _, e := range sum.Present {
			suffix := ""
			if e.Late {
				suffix = " (late)"
			}
			fmt.Fprintf(&b, "  - %s: %s%s\n", e.Name, e.CheckIn.Format("15:04"), suffix)
		}
	}

	return b.String()
}
