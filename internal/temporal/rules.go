package temporal

import (
	"regexp"
	"strconv"
	"time"

	"github.com/olebedev/when/rules"
)

// dayOfMonth recognises a bare "dia 20": the next occurrence of that day of
// the month, today included. It moves by whole days so it merges with the
// hour rules.
func dayOfMonth() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)(?:\W|^)dia\s+(\d{1,2})(?:\W|$)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			day, err := strconv.Atoi(m.Captures[0])
			if err != nil || day < 1 || day > 31 {
				return false, nil
			}
			target, ok := nextDayOfMonth(ref, day)
			if !ok {
				return false, nil
			}
			today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
			days := 0
			for d := today; d.Before(target); d = d.AddDate(0, 0, 1) {
				days++
			}
			c.Duration += time.Duration(days) * 24 * time.Hour
			return true, nil
		},
	}
}

// nextDayOfMonth finds the first month, starting at ref's, whose day d is
// not before ref's day. Months too short for d are skipped.
func nextDayOfMonth(ref time.Time, d int) (time.Time, bool) {
	month := ref.Month()
	if d < ref.Day() {
		month++
	}
	for i := 0; i < 12; i++ {
		t := time.Date(ref.Year(), month+time.Month(i), d, 0, 0, 0, 0, ref.Location())
		if t.Day() == d {
			return t, true
		}
	}
	return time.Time{}, false
}
