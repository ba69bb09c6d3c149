package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/finia/backend/internal/textnorm"
)

// Schedule is when a task is due. Date is local midnight; Time is an
// optional wall-clock "HH:mm".
type Schedule struct {
	Date time.Time
	Time *string
}

// dateStrategy inspects folded text and reports a day when it recognises one.
type dateStrategy func(text string, ref time.Time) (time.Time, bool)

var (
	reNumericDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	reWrittenDate = regexp.MustCompile(`\b(\d{1,2}) de (janeiro|fevereiro|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)(?: de (\d{4}))?\b`)

	reDayAfterTomorrow = regexp.MustCompile(`\bdepois de amanha\b|\bday after tomorrow\b`)
	rePastReference    = regexp.MustCompile(`\b(ontem|yesterday|semana passada|last week|mes passado|last month)\b`)

	reHintTime  = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	reHourWord  = regexp.MustCompile(`(\d)\s*(horas|hora|hrs|hr)\b`)
	reLooseTime = regexp.MustCompile(`\b(\d{1,2})\s*(?:h(\d{2})?\b|:(\d{2}))`)

	// Parts of a phrase match that say nothing about the day.
	reNonDay = regexp.MustCompile(`\d{1,2}\s*(h|:)\s*\d{0,2}|\d{1,2}\s*(am|pm)\b|\b(as|a|at|de|da|do|pela|of|the|in)\b|\b(manha|tarde|noite|morning|afternoon|evening|night|depois)\b`)
)

var relativeDayWords = map[string]bool{
	"": true, "hoje": true, "amanha": true, "ontem": true,
	"today": true, "tomorrow": true, "yesterday": true, "tonight": true,
}

// ResolveTaskDateTime finds the due day and time of a task.
//
// The day comes from the first strategy that recognises one: a numeric
// D/M[/Y] date, a written "D de <mês>" date, the interpreter's ISO date hint,
// a generic phrase parser, then relative-day keywords with now as the last
// resort. The time comes from an "HH:mm" hint or else from an "13h"/"13:30"
// pattern in the text. A day before today is moved to today unless the text
// explicitly points to the past.
func (r *Resolver) ResolveTaskDateTime(text, hintedDate, hintedTime string, ref time.Time) Schedule {
	folded := textnorm.Fold(text)
	var date time.Time
	for _, s := range r.dateStrategies(strings.ToLower(text), hintedDate) {
		if d, ok := s(folded, ref); ok {
			date = d
			break
		}
	}
	date = r.StartOfDay(date)
	today := r.StartOfDay(ref)
	if date.Before(today) && !rePastReference.MatchString(folded) {
		date = today
	}
	return Schedule{Date: date, Time: resolveTime(folded, hintedTime)}
}

func (r *Resolver) dateStrategies(raw, hintedDate string) []dateStrategy {
	return []dateStrategy{
		r.numericDate,
		r.writtenDate,
		r.hintedDate(hintedDate),
		r.phraseDate(raw),
		r.keywordDate,
	}
}

func (r *Resolver) numericDate(text string, ref time.Time) (time.Time, bool) {
	m := reNumericDate.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return r.calendarDate(day, month, m[3], ref)
}

func (r *Resolver) writtenDate(text string, ref time.Time) (time.Time, bool) {
	m := reWrittenDate.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	return r.calendarDate(day, monthIndex(m[2])+1, m[3], ref)
}

// calendarDate builds a day from its parts. Without an explicit year the
// current one is used, rolling to next year if the day already passed.
func (r *Resolver) calendarDate(day, month int, year string, ref time.Time) (time.Time, bool) {
	today := r.StartOfDay(ref)
	y := today.Year()
	explicit := year != ""
	if explicit {
		y, _ = strconv.Atoi(year)
		if y < 100 {
			y += 2000
		}
	}
	d, ok := r.validDate(y, month, day)
	if !ok {
		return time.Time{}, false
	}
	if !explicit && d.Before(today) {
		return r.validDate(y+1, month, day)
	}
	return d, true
}

func (r *Resolver) validDate(y, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(y, time.Month(month), day, 0, 0, 0, 0, r.loc)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func (r *Resolver) hintedDate(hint string) dateStrategy {
	return func(_ string, _ time.Time) (time.Time, bool) {
		h := strings.TrimSpace(hint)
		if len(h) < 10 {
			return time.Time{}, false
		}
		d, err := time.ParseInLocation("2006-01-02", h[:10], r.loc)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}
}

// phraseDate defers to the generic parser for phrases such as "próxima
// sexta". It reads the unfolded text. Matches that only name a relative day
// or a time of day are left to keywordDate.
func (r *Resolver) phraseDate(raw string) dateStrategy {
	return func(_ string, ref time.Time) (time.Time, bool) {
		res, err := r.phrase.Parse(raw, ref.In(r.loc))
		if err != nil || res == nil {
			return time.Time{}, false
		}
		rest := strings.Join(strings.Fields(reNonDay.ReplaceAllString(textnorm.Fold(res.Text), " ")), " ")
		if relativeDayWords[rest] {
			return time.Time{}, false
		}
		d := r.StartOfDay(res.Time)
		if d.Equal(r.StartOfDay(ref)) {
			return time.Time{}, false
		}
		return d, true
	}
}

func (r *Resolver) keywordDate(text string, ref time.Time) (time.Time, bool) {
	switch {
	case reDayAfterTomorrow.MatchString(text):
		return ref.AddDate(0, 0, 2), true
	case reTomorrow.MatchString(text):
		return ref.AddDate(0, 0, 1), true
	case reToday.MatchString(text):
		return r.StartOfDay(ref), true
	}
	return ref, true
}

func resolveTime(folded, hint string) *string {
	if m := reHintTime.FindStringSubmatch(strings.TrimSpace(hint)); m != nil {
		if hm, ok := wallClock(m[1], m[2]); ok {
			return &hm
		}
	}
	text := reHourWord.ReplaceAllString(folded, "${1}h")
	m := reLooseTime.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	minutes := m[2]
	if minutes == "" {
		minutes = m[3]
	}
	if hm, ok := wallClock(m[1], minutes); ok {
		return &hm
	}
	return nil
}

func wallClock(hour, minute string) (string, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return "", false
	}
	mi := 0
	if minute != "" {
		if mi, err = strconv.Atoi(minute); err != nil || mi > 59 {
			return "", false
		}
	}
	return fmt.Sprintf("%02d:%02d", h, mi), true
}
