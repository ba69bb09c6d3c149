package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultMaxAudioBytes is roughly a minute of WhatsApp opus audio.
const DefaultMaxAudioBytes = 512 << 10

var ErrAudioTooLarge = errors.New("audio too large")

const transcribePrompt = "Transcreva este áudio em português do Brasil. Responda apenas com o texto falado, sem comentários."

// Transcribe turns a voice note into text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.MaxAudioBytes > 0 && len(audio) > c.MaxAudioBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, len(audio))
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromBytes(audio, mimeType),
	}, genai.RoleUser)}
	resp, err := c.gen.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
