// Package interpreter asks Gemini to read messages into structured guesses
// and to transcribe voice notes.
package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/finia/backend/internal/intent"
	"github.com/finia/backend/internal/temporal"
)

const DefaultModel = "gemini-2.0-flash"

// generator is the part of *genai.Models the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var ErrEmptyResponse = errors.New("empty model response")

type Client struct {
	gen       generator
	model     string
	validator *Validator
	logger    *slog.Logger
	// MaxAudioBytes caps voice notes sent for transcription.
	MaxAudioBytes int
}

// New connects to the Gemini API.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newClient(gc.Models, model, logger)
}

func newClient(gen generator, model string, logger *slog.Logger) (*Client, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gen: gen, model: model, validator: v, logger: logger, MaxAudioBytes: DefaultMaxAudioBytes}, nil
}

const instructions = `Você é Lume, uma assistente financeira inteligente. Analise a mensagem e retorne APENAS um objeto JSON no formato:

{
  "domain": "transacao" | "tarefa",
  "action": "inserir" | "editar" | "consultar" | "remover",
  "description": "string",
  "amount": number | null,
  "date": "YYYY-MM-DD" | null,
  "time": "HH:mm" | null,
  "direction": "ENTRADA" | "SAIDA" | null,
  "category": "string" | null,
  "period": "hoje" | "ontem" | "semana" | "mes" | null
}

REGRAS:
- Resumo, extrato ou consulta ("gastos do mês", "quanto gastei esta semana", "resumo de hoje") ⇒ action="consultar".
- Período: "hoje"/"do dia" ⇒ "hoje"; "ontem" ⇒ "ontem"; "semana"/"semanal" ⇒ "semana"; "mês"/"mensal" ⇒ "mes".
- Nunca use "null" como string; use null.
- Gasto, compra ou pagamento ⇒ direction="SAIDA". Recebimento, salário ou venda ⇒ direction="ENTRADA".
- Para tarefas, direction, category e period são null.
- Use uma categoria conhecida quando possível (Alimentação, Mercado, Transporte, Moradia, Saúde, Lazer, Educação, Salário, Outros).`

// Interpret reads text into a guess. now anchors relative dates in the
// model's answer.
func (c *Client) Interpret(ctx context.Context, text string, now time.Time) (*intent.Guess, error) {
	prompt := fmt.Sprintf("Hoje é %s/%d.\nMensagem: %q", temporal.DayMonth(now), now.Year(), text)
	resp, err := c.gen.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	raw := stripFences(responseText(resp))
	if raw == "" {
		return nil, ErrEmptyResponse
	}
	if err := c.validator.Validate([]byte(raw)); err != nil {
		c.logger.Warn("interpreter reply rejected", "error", err, "raw", raw)
		return nil, err
	}
	var g intent.Guess
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, fmt.Errorf("decode guess: %w", err)
	}
	return &g, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// stripFences removes a markdown code fence around the reply, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
