package temporal

import (
	"regexp"
	"strconv"
	"time"

	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/textnorm"
)

// periodRule is one step of an ordered period detection chain. Rules see
// folded text only.
type periodRule struct {
	match *regexp.Regexp
	build func(r *Resolver, ref time.Time, m []string) *models.Period
}

var monthNames = []string{
	"janeiro", "fevereiro", "marco", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

var (
	reToday     = regexp.MustCompile(`\b(hoje|today)\b`)
	reTomorrow  = regexp.MustCompile(`\b(amanha|tomorrow)\b`)
	reYesterday = regexp.MustCompile(`\b(ontem|yesterday)\b`)
	reLastWeek  = regexp.MustCompile(`\bsemana passada\b|\blast week\b`)
	reNextWeek  = regexp.MustCompile(`\bproxima semana\b|\bnext week\b`)
	reThisWeek  = regexp.MustCompile(`\b(esta|essa|desta|dessa) semana\b|\bsemana atual\b|\bda semana\b|\bthis week\b`)
	reLastMonth = regexp.MustCompile(`\bmes passado\b|\blast month\b`)
	reNextMonth = regexp.MustCompile(`\bproximo mes\b|\bnext month\b`)
	reThisMonth = regexp.MustCompile(`\best(e|a) mes\b|\bdo mes\b|\bmes\b|\bthis month\b|\bmonth\b`)
	reMonthName = regexp.MustCompile(`\b(janeiro|fevereiro|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\b`)

	// Task listings do not treat a bare "mes" as the current month.
	reThisMonthTask = regexp.MustCompile(`\b(este|esse|deste|desse) mes\b|\bmes atual\b|\bdo mes\b|\bthis month\b`)

	reLooseWeek  = regexp.MustCompile(`\bseman(a|al)\b|\bweekly\b`)
	reLooseMonth = regexp.MustCompile(`\bmes\b|\bmensal\b|\bmonthly\b`)
)

func monthIndex(name string) int {
	for i, n := range monthNames {
		if n == name {
			return i
		}
	}
	return -1
}

// firstOfMonth returns noon on the first day of the month n months away
// from ref.
func (r *Resolver) firstOfMonth(ref time.Time, n int) time.Time {
	ref = ref.In(r.loc)
	return time.Date(ref.Year(), ref.Month()+time.Month(n), 1, 12, 0, 0, 0, r.loc)
}

func monthYearLabel(t time.Time) string {
	return "de " + MonthName(t) + " de " + strconv.Itoa(t.Year())
}

func lastWeek(r *Resolver, ref time.Time, _ []string) *models.Period {
	return r.week(ref.AddDate(0, 0, -7), "da semana passada")
}

func nextWeek(r *Resolver, ref time.Time, _ []string) *models.Period {
	return r.week(ref.AddDate(0, 0, 7), "da próxima semana")
}

func thisWeek(r *Resolver, ref time.Time, _ []string) *models.Period {
	return r.week(ref, "desta semana")
}

var periodRules = []periodRule{
	{reToday, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.day(ref, "hoje")
	}},
	{reTomorrow, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.day(ref.AddDate(0, 0, 1), "amanhã")
	}},
	{reYesterday, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.day(ref.AddDate(0, 0, -1), "ontem")
	}},
	{reLastWeek, lastWeek},
	{reNextWeek, nextWeek},
	{reThisWeek, thisWeek},
	// Legacy: a named month resolves to the month before it.
	{reMonthName, func(r *Resolver, ref time.Time, m []string) *models.Period {
		named := time.Date(r.at(ref).Year(), time.Month(monthIndex(m[1])+1), 1, 12, 0, 0, 0, r.loc)
		d := named.AddDate(0, -1, 0)
		return r.month(d, monthYearLabel(d))
	}},
	{reLastMonth, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		d := r.firstOfMonth(ref, -1)
		return r.month(d, "de "+MonthName(d))
	}},
	{reThisMonth, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.month(ref, "de "+MonthName(ref.In(r.loc)))
	}},
}

var taskPeriodRules = []periodRule{
	{reToday, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.day(ref, "de hoje")
	}},
	{reTomorrow, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.day(ref.AddDate(0, 0, 1), "de amanhã")
	}},
	{reYesterday, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.day(ref.AddDate(0, 0, -1), "de ontem")
	}},
	{reLastWeek, lastWeek},
	{reNextWeek, nextWeek},
	{reThisWeek, thisWeek},
	{reLastMonth, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		d := r.firstOfMonth(ref, -1)
		return r.month(d, "do mês passado ("+MonthName(d)+")")
	}},
	{reNextMonth, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		d := r.firstOfMonth(ref, 1)
		return r.month(d, "do próximo mês ("+MonthName(d)+")")
	}},
	{reThisMonthTask, func(r *Resolver, ref time.Time, _ []string) *models.Period {
		return r.month(ref, "deste mês ("+MonthName(ref.In(r.loc))+")")
	}},
	{reMonthName, func(r *Resolver, ref time.Time, m []string) *models.Period {
		d := time.Date(r.at(ref).Year(), time.Month(monthIndex(m[1])+1), 1, 12, 0, 0, 0, r.loc)
		return r.month(d, monthYearLabel(d))
	}},
}

func (r *Resolver) firstMatch(rules []periodRule, text string, ref time.Time) *models.Period {
	t := textnorm.Fold(text)
	for _, rule := range rules {
		if m := rule.match.FindStringSubmatch(t); m != nil {
			return rule.build(r, ref, m)
		}
	}
	return nil
}

// ResolvePeriod detects a period mentioned in text. Rules run in a fixed
// order and the first match wins: today, tomorrow, yesterday, last week,
// next week, this week, a named month, last month, this month. It returns
// nil when the text mentions no period.
func (r *Resolver) ResolvePeriod(text string, ref time.Time) *models.Period {
	return r.firstMatch(periodRules, text, ref)
}

// ResolveLedgerQueryPeriod picks the window of a ledger summary: the
// interpreter's period hint, then a period found in the text, then a loose
// "semanal"/"mensal" reading, then today.
func (r *Resolver) ResolveLedgerQueryPeriod(hint, text string, ref time.Time) models.Period {
	if p := r.periodFromHint(hint, ref); p != nil {
		return *p
	}
	if p := r.ResolvePeriod(text, ref); p != nil {
		return *p
	}
	t := textnorm.Fold(text)
	switch {
	case reLooseWeek.MatchString(t):
		return *r.week(ref, "desta semana")
	case reLooseMonth.MatchString(t):
		return *r.month(ref, "deste mês")
	}
	return *r.day(ref, "de hoje")
}

func (r *Resolver) periodFromHint(hint string, ref time.Time) *models.Period {
	switch textnorm.Fold(hint) {
	case "hoje", "today", "dia", "day":
		return r.day(ref, "de hoje")
	case "ontem", "yesterday":
		return r.day(ref.AddDate(0, 0, -1), "de ontem")
	case "semana", "week":
		return r.week(ref, "desta semana")
	case "mes", "month":
		return r.month(ref, "deste mês")
	}
	return nil
}

// ResolveTaskQueryPeriod picks the window of a task listing. Task phrasing
// differs from ledger phrasing: named months are taken literally and the
// default is today.
func (r *Resolver) ResolveTaskQueryPeriod(text string, ref time.Time) models.Period {
	if p := r.firstMatch(taskPeriodRules, text, ref); p != nil {
		return *p
	}
	return *r.day(ref, "de hoje")
}
