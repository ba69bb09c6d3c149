// Package reply renders handling results as pt-BR WhatsApp messages.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finia/backend/internal/intent"
	"github.com/finia/backend/internal/ledger"
	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/services"
	"github.com/finia/backend/internal/temporal"
)

// ChartTopCategories caps the slices of the spending chart.
const ChartTopCategories = 8

const (
	DefaultSubscribeURL = "https://finia.app/assinar"
	DefaultLinkTTL      = 30 * time.Minute
)

// ChartRenderer draws a doughnut chart as PNG.
type ChartRenderer interface {
	RenderDoughnut(ctx context.Context, labels []string, values []float64) ([]byte, error)
}

// LinkIssuer creates a single-use dashboard link.
type LinkIssuer interface {
	IssueAccessLink(ctx context.Context, accountID uuid.UUID) (string, error)
}

// Image is a picture sent after the text.
type Image struct {
	PNG     []byte
	Caption string
}

// Reply is what goes back to the user. An empty Text means send nothing.
type Reply struct {
	Text  string
	Image *Image
}

type EnrichmentKind int

const (
	EnrichChart EnrichmentKind = iota + 1
	EnrichAccessLink
)

// Enrichment is extra work a reply needs beyond formatting.
type Enrichment struct {
	Kind      EnrichmentKind
	Caption   string
	Labels    []string
	Values    []float64
	AccountID uuid.UUID
}

// Plan lists the enrichments a result calls for. The chart is only drawn
// when spending spans more than one category.
func Plan(res *services.Result) []Enrichment {
	var out []Enrichment
	switch res.Kind {
	case services.ResultLedgerSummary:
		cats := res.Summary.Categories
		if len(cats) <= 1 {
			return nil
		}
		if len(cats) > ChartTopCategories {
			cats = cats[:ChartTopCategories]
		}
		e := Enrichment{Kind: EnrichChart, Caption: fmt.Sprintf("📊 Seus gastos %s por categoria", res.Summary.Period.Label)}
		for _, c := range cats {
			e.Labels = append(e.Labels, c.Name)
			e.Values = append(e.Values, c.Amount.InexactFloat64())
		}
		out = append(out, e)
	case services.ResultAccessLink:
		if res.Account != nil {
			out = append(out, Enrichment{Kind: EnrichAccessLink, AccountID: res.Account.ID})
		}
	}
	return out
}

type Composer struct {
	Charts       ChartRenderer
	Links        LinkIssuer
	Resolver     *temporal.Resolver
	SubscribeURL string
	LinkTTL      time.Duration
	Logger       *slog.Logger
}

func NewComposer(charts ChartRenderer, links LinkIssuer, resolver *temporal.Resolver, subscribeURL string, logger *slog.Logger) *Composer {
	if subscribeURL == "" {
		subscribeURL = DefaultSubscribeURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		Charts:       charts,
		Links:        links,
		Resolver:     resolver,
		SubscribeURL: subscribeURL,
		LinkTTL:      DefaultLinkTTL,
		Logger:       logger,
	}
}

// Compose renders res and runs its enrichments. Enrichment failures are
// logged and leave the text reply intact.
func (c *Composer) Compose(ctx context.Context, res *services.Result) Reply {
	r := Reply{Text: c.Text(res)}
	for _, e := range Plan(res) {
		switch e.Kind {
		case EnrichChart:
			if c.Charts == nil {
				continue
			}
			png, err := c.Charts.RenderDoughnut(ctx, e.Labels, e.Values)
			if err != nil {
				c.Logger.Warn("chart failed", "error", err)
				continue
			}
			r.Image = &Image{PNG: png, Caption: e.Caption}
		case EnrichAccessLink:
			if c.Links == nil {
				r.Text = textNoLink
				continue
			}
			link, err := c.Links.IssueAccessLink(ctx, e.AccountID)
			if err != nil {
				c.Logger.Warn("access link failed", "account_id", e.AccountID, "error", err)
				r.Text = textNoLink
				continue
			}
			r.Text = fmt.Sprintf(textAccessLink, int(c.LinkTTL/time.Minute), link)
		}
	}
	return r
}

// Text renders the text part of the reply without side effects.
func (c *Composer) Text(res *services.Result) string {
	switch res.Kind {
	case services.ResultDuplicate:
		return ""
	case services.ResultLedgerInserted:
		return c.ledgerInserted(res.Entry, res.Category)
	case services.ResultLedgerSummary:
		return c.summary(res.Summary)
	case services.ResultTaskInserted:
		return c.taskInserted(res.Task)
	case services.ResultTaskList:
		return c.taskList(res.TaskDays)
	case services.ResultNothingFound:
		return nothingFound(res)
	case services.ResultFallback:
		return c.fallback(res)
	case services.ResultDenied:
		return c.denied(res.Denial)
	case services.ResultTranscriptionFailed:
		return textAudio
	case services.ResultAccessLink:
		return textNoLink
	}
	return textFailure
}

func (c *Composer) ledgerInserted(e *models.LedgerEntry, cat *models.Category) string {
	icon, kind := models.CategoryIconOut, "Saída"
	if e.Direction == models.DirectionIn {
		icon, kind = models.CategoryIconIn, "Entrada"
	}
	return fmt.Sprintf("✅ *Registrado com sucesso!*\n%s *Tipo:* %s\n📝 *Descrição:* %s\n💰 *Valor:* %s\n🏷️ *Categoria:* %s",
		icon, kind, e.Description, FormatBRL(e.Amount), cat.Name)
}

func (c *Composer) summary(s *ledger.Summary) string {
	label := s.Period.Label
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Resumo financeiro %s*\n\n", label)
	fmt.Fprintf(&b, "💵 *Saldo atual:* %s\n\n", FormatBRL(s.Balance))
	if s.Direction == nil || *s.Direction == models.DirectionIn {
		fmt.Fprintf(&b, "📈 *Entradas (%s):* %s\n", label, FormatBRL(s.TotalIn))
	}
	if s.Direction == nil || *s.Direction == models.DirectionOut {
		fmt.Fprintf(&b, "📉 *Saídas (%s):* %s\n", label, FormatBRL(s.TotalOut))
	}
	fmt.Fprintf(&b, "\n📅 *Período:* %s — %s", c.dayMonth(s.Period.Start), c.dayMonth(s.Period.End))

	if len(s.Categories) > 0 {
		b.WriteString("\n\n🏷️ *Gastos por categoria:*")
		for _, ct := range s.Categories {
			fmt.Fprintf(&b, "\n• %s: %s", ct.Name, FormatBRL(ct.Amount))
		}
	}
	if len(s.Recent) > 0 {
		b.WriteString("\n\n🧾 *Últimas movimentações:*")
		for _, e := range s.Recent {
			icon := models.CategoryIconOut
			if e.Direction == models.DirectionIn {
				icon = models.CategoryIconIn
			}
			fmt.Fprintf(&b, "\n%s %s %s %s (%s)", icon, c.dayMonth(e.OccurredAt), e.Description, FormatBRL(e.Amount), e.CategoryName)
		}
	}
	b.WriteString("\n\n🔗 Quer ver tudo no painel? Envie *link de acesso*.")
	return b.String()
}

func (c *Composer) dayMonth(t time.Time) string {
	if c.Resolver != nil {
		t = t.In(c.Resolver.Location())
	}
	return t.Format("02/01")
}

func (c *Composer) taskInserted(t *models.Task) string {
	when := temporal.DayMonth(t.ScheduledDate)
	if t.ScheduledTime != nil {
		when += " às " + *t.ScheduledTime
	}
	return fmt.Sprintf("📝 *Tarefa adicionada com sucesso!*\n📌 %s\n🕒 %s", t.Description, when)
}

func (c *Composer) taskList(days []services.TaskDay) string {
	var b strings.Builder
	b.WriteString("📅 *Suas próximas tarefas:*\n")
	for _, d := range days {
		fmt.Fprintf(&b, "\n📆 *%s*\n", d.Label)
		tasks := append([]*models.Task(nil), d.Tasks...)
		sort.SliceStable(tasks, func(i, j int) bool {
			return timeKey(tasks[i]) < timeKey(tasks[j])
		})
		for _, t := range tasks {
			b.WriteString("• " + t.Description)
			if t.ScheduledTime != nil {
				b.WriteString(" ⏰ " + *t.ScheduledTime)
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}

// timeKey orders untimed tasks after timed ones on the same day.
func timeKey(t *models.Task) string {
	if t.ScheduledTime == nil {
		return "99:99"
	}
	return *t.ScheduledTime
}

func nothingFound(res *services.Result) string {
	if res.Command.Domain == intent.DomainTask {
		return fmt.Sprintf("📭 Nenhuma tarefa %s.", res.Period.Label)
	}
	what := "movimentações"
	if res.Direction != nil {
		what = "gastos"
		if *res.Direction == models.DirectionIn {
			what = "entradas"
		}
	}
	return fmt.Sprintf("📭 Nenhum(a) %s %s.", what, res.Period.Label)
}

func (c *Composer) fallback(res *services.Result) string {
	switch res.Fallback {
	case intent.FallbackWelcome:
		return c.welcome(res.Account)
	case intent.FallbackShort:
		return textShort
	case intent.FallbackHelp:
		return textHelp
	}
	return textRephrase
}

func (c *Composer) welcome(acc *models.Account) string {
	var b strings.Builder
	b.WriteString(textWelcomeHead)
	switch {
	case acc != nil && acc.Plan == models.PlanTrial && acc.TrialExpiresAt != nil:
		fmt.Fprintf(&b, "Você está no seu período de *teste gratuito*!\n🗓️ Ele expira em *%s*.\n\n", c.dayMonth(*acc.TrialExpiresAt))
	case acc != nil && acc.Plan == models.PlanBlocked:
		fmt.Fprintf(&b, "🚫 Seu plano está inativo. Ative o PREMIUM em %s\n\n", c.SubscribeURL)
	}
	b.WriteString(textWelcomeBody)
	if acc == nil || acc.Plan == models.PlanTrial {
		fmt.Fprintf(&b, "\n\n👉 Quando quiser liberar tudo, ative o plano PREMIUM em %s", c.SubscribeURL)
	}
	return b.String()
}

func (c *Composer) denied(d *services.Denial) string {
	if d == nil {
		return fmt.Sprintf(textExpired, c.SubscribeURL)
	}
	switch d.Reason {
	case services.DenialTrialLedger:
		return fmt.Sprintf(textTrialLedger, d.Cap, c.SubscribeURL)
	case services.DenialTrialInteractions:
		return fmt.Sprintf(textTrialInteractions, d.Cap, c.SubscribeURL)
	}
	return fmt.Sprintf(textExpired, c.SubscribeURL)
}
