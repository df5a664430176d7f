package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tharunkd/attendbot/attendance"
)

// skipThreshold is the attendance percentage the college requires. At or
// above it the report shows skippable hours, below it the hours still
// needed to climb back.
const skipThreshold = 75.0

// pct renders a percentage without a forced decimal, so 80 reads "80" and
// 72.5 reads "72.5", matching what the attendance API returns.
func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatReport renders one attendance report as a chat message. The
// subject rows use a fixed one-decimal percentage so they are visually
// distinct from the headline total.
func formatReport(rep *attendance.Report) string {
	var b strings.Builder
	b.WriteString("Hi, Roll Number: " + rep.RollNumber + "\n")
	fmt.Fprintf(&b, "Total: %d/%d (%s%%)\n", rep.Total.Attended, rep.Total.Held, pct(rep.Total.Percentage))

	if rep.Total.Percentage < skipThreshold {
		fmt.Fprintf(&b, "\nYou need to attend %d more hours to reach 75%%.", rep.Total.AdditionalHoursNeeded)
	} else {
		fmt.Fprintf(&b, "\nYou can skip %d hours and still maintain above 75%%.", rep.Total.HoursCanSkip)
	}

	if len(rep.Today) > 0 && rep.Today[0].Subject != "" {
		b.WriteString("\n\nToday's Attendance:\n")
		for _, t := range rep.Today {
			b.WriteString(t.Subject + ": " + t.AttendanceToday + "\n")
		}
	} else if len(rep.Today) > 0 {
		b.WriteString("\n" + rep.Today[0].Message + "\n")
	}

	b.WriteString("\nSubject-wise Attendance:\n")
	for _, s := range rep.Subjects {
		fmt.Fprintf(&b, "%s: %s (%.1f%%)\n", s.Name, s.AttendedHeld, s.Percentage)
	}
	return b.String()
}

// formatSkip renders the what-if projection for skipping a number of hours.
func formatSkip(hours int, res *attendance.SkipResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attendance report after skipping %d hours:\n\n", hours)
	fmt.Fprintf(&b, "New attendance %% : %s%%\n", pct(res.NewPercentage))
	fmt.Fprintf(&b, "Original attendance %% : %s%%\n", pct(res.OriginalPercentage))
	b.WriteString(res.Status + "\n\n")
	fmt.Fprintf(&b, "Hours left to skip : %d\n", res.HoursCanSkipAfter)
	return b.String()
}

func invalidCredentialsText(helpURL string) string {
	return "Invalid roll number or password.\n\nFor help, click here: " + helpURL
}

func rollNumberLinkedText(shortID, helpURL string) string {
	return "This roll number is already linked to short form: " + shortID + "\n\n" +
		"To delete it, type: delete " + shortID + "\n\nFor help, click here: " + helpURL
}

func helpText(helpURL string) string {
	return strings.Join([]string{
		"Hi there!",
		"",
		"Welcome to the Attendance Bot.",
		"",
		"Method 1: Quick Data",
		"Send your roll number followed by your password.",
		"Example: 22L31A0596 password",
		"",
		"Method 2: Short Form",
		"Save a short form for easier use.",
		"To save, type: set short_form roll_number password",
		"Example: set 596 22L31A0596 password",
		"",
		"To delete a saved short form: delete short_form_id",
		"To view all saved short forms, type: shortforms",
		"",
		"For help, click here: " + helpURL,
	}, "\n")
}
