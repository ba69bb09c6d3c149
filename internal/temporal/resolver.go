// Package temporal turns date and time expressions found in free text into
// concrete periods and schedules.
//
// Every function takes the reference instant explicitly and anchors all
// arithmetic to the resolver's location, so results never depend on the
// host time zone or on when a test happens to run.
package temporal

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/goodsign/monday"
	"github.com/jinzhu/now"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/br"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/finia/backend/internal/models"
)

// DefaultZone is where every account lives until per-account zones exist.
const DefaultZone = "America/Sao_Paulo"

const locale = monday.LocalePtBR

type Resolver struct {
	loc    *time.Location
	cal    *now.Config
	phrase *when.Parser
	clock  func() time.Time
}

// New returns a resolver anchored to loc. A nil clock means time.Now.
func New(loc *time.Location, clock func() time.Time) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	w := when.New(nil)
	w.Add(dayOfMonth())
	w.Add(br.All...)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Resolver{
		loc:    loc,
		cal:    &now.Config{WeekStartDay: time.Monday, TimeLocation: loc},
		phrase: w,
		clock:  clock,
	}
}

// NewInZone loads the named zone from the embedded database.
func NewInZone(name string, clock func() time.Time) (*Resolver, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return New(loc, clock), nil
}

// Now is the reference instant used for parsing and for entitlement checks.
func (r *Resolver) Now() time.Time { return r.clock().In(r.loc) }

func (r *Resolver) Location() *time.Location { return r.loc }

func (r *Resolver) at(t time.Time) *now.Now { return r.cal.With(t.In(r.loc)) }

// StartOfDay returns local midnight of t's day.
func (r *Resolver) StartOfDay(t time.Time) time.Time { return r.at(t).BeginningOfDay() }

func (r *Resolver) day(t time.Time, label string) *models.Period {
	c := r.at(t)
	return &models.Period{Start: c.BeginningOfDay(), End: c.EndOfDay(), Label: label}
}

func (r *Resolver) week(t time.Time, label string) *models.Period {
	c := r.at(t)
	return &models.Period{Start: c.BeginningOfWeek(), End: c.EndOfWeek(), Label: label}
}

func (r *Resolver) month(t time.Time, label string) *models.Period {
	c := r.at(t)
	return &models.Period{Start: c.BeginningOfMonth(), End: c.EndOfMonth(), Label: label}
}

// MonthName is the pt-BR month name of t, lower case.
func MonthName(t time.Time) string { return monday.Format(t, "January", locale) }

// DayMonth renders t as "segunda-feira, 20/10".
func DayMonth(t time.Time) string { return monday.Format(t, "Monday, 02/01", locale) }

// DayLabel names a calendar day relative to ref: "Hoje", "Amanhã" or the
// weekday with its date.
func (r *Resolver) DayLabel(day, ref time.Time) string {
	d := r.StartOfDay(day)
	today := r.StartOfDay(ref)
	switch {
	case d.Equal(today):
		return "Hoje"
	case d.Equal(today.AddDate(0, 0, 1)):
		return "Amanhã"
	}
	return DayMonth(d)
}
