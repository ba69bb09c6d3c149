// Package intent repairs the interpreter's structured guess and classifies
// messages the interpreter could not turn into a command.
package intent

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/textnorm"
)

// Class is the fallback reading of a message.
type Class int

const (
	ClassUnknown Class = iota
	// ClassGreeting is a message made only of greetings ("oi", "bom dia").
	ClassGreeting
	// ClassNoise is a very short message or chatter such as "kkk" or "ok".
	ClassNoise
	ClassFinancial
	ClassTask
)

func (c Class) String() string {
	switch c {
	case ClassGreeting:
		return "greeting"
	case ClassNoise:
		return "noise"
	case ClassFinancial:
		return "financial"
	case ClassTask:
		return "task"
	}
	return "unknown"
}

// MinLength is the shortest folded message, in runes, that is not noise.
const MinLength = 5

var (
	financialWords = []string{
		"gasto", "gastei", "despesa", "compra", "comprei", "paguei", "pagamento", "pagar", "conta", "pix",
		"transferencia", "deposito", "credito", "debito", "entrada", "recebi", "ganhei",
		"salario", "venda", "lucro", "faturamento", "investimento", "resumo", "extrato",
		"relatorio", "balanco", "saldo", "total", "analise", "grafico", "reais", "r$",
		"spent", "expense", "income", "salary", "balance", "paid",
	}
	taskWords = []string{
		"tarefa", "lembrete", "anotacao", "agenda", "reuniao", "compromisso",
		"evento", "planejar", "planejamento", "meta", "objetivo", "fazer", "lavar", "estudar",
		"ir", "buscar", "ligar", "enviar", "organizar", "preparar", "visitar", "lembrar",
		"amanha", "hoje", "ontem", "semana", "mes", "horario", "hora", "data",
		"task", "remind", "meeting", "schedule", "todo",
	}
	greetingWords = []string{
		"oi", "ola", "bom dia", "boa tarde", "boa noite", "e ai", "tudo bem", "tudo bom",
		"blz", "beleza", "hello", "hi", "hey",
	}
	noiseWords = []string{
		"kk", "kkk", "haha", "rs", "rsrs", "ok", "👍", "tchau", "vlw", "valeu", "obrigado", "obrigada",
	}
)

// wordSet matches any of the words at a word start. Trailing letters are
// allowed so "gasto" also matches "gastos".
func wordSet(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)`)
}

func exactSet(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

var (
	reFinancial = wordSet(financialWords)
	reTask      = exactSet(taskWords)
	reGreeting  = exactSet(greetingWords)
	reNoise     = exactSet(noiseWords)

	reGreetingOnly = regexp.MustCompile(`^(?:(?:` + strings.Join(greetingWords, "|") + `)[\s,!.?]*)+$`)
)

// Classify reads folded text with three disjoint keyword sets. Financial and
// task vocabulary wins over greetings, so "oi, gastei 50" is financial.
func Classify(text string) Class {
	t := textnorm.Fold(text)
	financial := reFinancial.MatchString(t)
	task := reTask.MatchString(t)
	switch {
	case financial:
		return ClassFinancial
	case task:
		return ClassTask
	case reGreetingOnly.MatchString(t):
		return ClassGreeting
	case reGreeting.MatchString(t), reNoise.MatchString(t), utf8.RuneCountInString(t) < MinLength:
		return ClassNoise
	}
	return ClassUnknown
}

var (
	reOut = regexp.MustCompile(`gast(?:os?|ei|ar|ou|amos)\b|despesas?|paguei|compra|pagar|debito|expenses?|spent|paid`)
	reIn  = regexp.MustCompile(`ganhos?|recebi|salario|venda|deposit|credito|income|received|salary|sales?\b`)
)

// InferDirection guesses which side of the ledger a summary request is
// about. Outflow words are checked first.
func InferDirection(text string) *models.Direction {
	t := textnorm.Fold(text)
	var d models.Direction
	switch {
	case reOut.MatchString(t):
		d = models.DirectionOut
	case reIn.MatchString(t):
		d = models.DirectionIn
	default:
		return nil
	}
	return &d
}

var reAccess = regexp.MustCompile(`\b(painel|dashboard|link de acesso|acessar o site|acesso ao site|acesso web|versao web|acessar minha conta)\b`)

// WantsAccess reports an explicit request for the web dashboard.
func WantsAccess(text string) bool {
	return reAccess.MatchString(textnorm.Fold(text))
}

// Fallback is the reply given to a message that produced no command.
type Fallback int

const (
	// FallbackRephrase asks the user to rephrase a financial or task message
	// that could not be turned into a command.
	FallbackRephrase Fallback = iota
	FallbackWelcome
	FallbackShort
	FallbackHelp
)

func FallbackFor(c Class) Fallback {
	switch c {
	case ClassGreeting:
		return FallbackWelcome
	case ClassNoise:
		return FallbackShort
	case ClassUnknown:
		return FallbackHelp
	}
	return FallbackRephrase
}
