package stats

import (
	"fmt"
	"strings"
	"time"
)

const rangeLayout = "2006-01-02 15:04"

// Markdown renders r as a GitHub-flavored Markdown document.
func Markdown(r Report) string {
	var b strings.Builder

	b.WriteString("# Performance Report\n\n")
	if r.Range == nil {
		b.WriteString("**Range:** All Time\n\n")
	} else {
		fmt.Fprintf(&b, "**Range:** %s to %s\n\n",
			r.Range.Start.Format(rangeLayout), r.Range.End.Format(rangeLayout))
	}
	if r.CaseType != "" {
		fmt.Fprintf(&b, "**Case type:** %s\n\n", escapeCell(r.CaseType))
	}

	s := r.Summary
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Queue load | %d |\n", s.QueueLoad)
	fmt.Fprintf(&b, "| Completed | %d (%d aborted) |\n", s.Completed, s.Aborted)
	fmt.Fprintf(&b, "| Avg handle time | %s (%d cases measured) |\n", s.Average.Display, s.Measured)
	fmt.Fprintf(&b, "| Fastest | %s |\n", displayOrDash(s.Fastest))
	fmt.Fprintf(&b, "| Slowest | %s |\n", displayOrDash(s.Slowest))
	if s.Throughput != nil {
		fmt.Fprintf(&b, "| Throughput | %.1f cases/hour |\n", *s.Throughput)
	} else {
		b.WriteString("| Throughput | - |\n")
	}

	b.WriteString("\n## By case type\n\n")
	if len(r.ByType) == 0 {
		b.WriteString("_No cases in range._\n")
	} else {
		b.WriteString("| Type | Queued | Completed |\n|---|---:|---:|\n")
		for _, tc := range r.ByType {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", escapeCell(tc.Type), tc.Queued, tc.Completed)
		}
	}

	fmt.Fprintf(&b, "\n## Last %d days\n\n", len(r.Trend))
	b.WriteString("| Date | Completed |\n|---|---:|\n")
	for _, d := range r.Trend {
		label := d.Date
		if t, err := time.Parse(time.DateOnly, d.Date); err == nil {
			label = t.Format("Jan 2")
		}
		fmt.Fprintf(&b, "| %s | %d |\n", label, d.Count)
	}

	b.WriteString("\n## By hour\n\n")
	b.WriteString("| Hour | Completed |\n|---|---:|\n")
	for h, n := range r.Hourly {
		if n == 0 {
			continue
		}
		fmt.Fprintf(&b, "| %s | %d |\n", hourLabel(h), n)
	}
	return b.String()
}

func displayOrDash(h *HandleTime) string {
	if h == nil {
		return "-"
	}
	return h.Display
}

// hourLabel renders 0..23 as 12AM..11PM.
func hourLabel(h int) string {
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d%s", h12, suffix)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
