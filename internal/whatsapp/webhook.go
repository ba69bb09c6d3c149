package whatsapp

import (
	"strings"
	"unicode"
)

// WebhookPayload is the subset of the Cloud API notification we read.
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
					Audio *struct {
						ID       string `json:"id"`
						MimeType string `json:"mime_type"`
					} `json:"audio,omitempty"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Message is one inbound user message. Exactly one of Text and AudioID is
// set.
type Message struct {
	ID        string
	Phone     string
	Name      string
	Text      string
	AudioID   string
	AudioMIME string
}

// Messages flattens the payload into text and audio messages. Status
// updates and other message types are skipped.
func (p *WebhookPayload) Messages() []Message {
	var out []Message
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			names := map[string]string{}
			for _, c := range ch.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range ch.Value.Messages {
				msg := Message{ID: m.ID, Phone: NormalizePhone(m.From), Name: names[m.From]}
				switch {
				case m.Type == "text" && m.Text != nil && strings.TrimSpace(m.Text.Body) != "":
					msg.Text = m.Text.Body
				case m.Type == "audio" && m.Audio != nil && m.Audio.ID != "":
					msg.AudioID = m.Audio.ID
					msg.AudioMIME = m.Audio.MimeType
				default:
					continue
				}
				out = append(out, msg)
			}
		}
	}
	return out
}

// NormalizePhone returns the number in E.164 form. Brazilian mobile numbers
// delivered without the ninth digit (+55 DD 8 digits starting 6-9) get it
// back, so one person always maps to one account.
func NormalizePhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return ""
	}
	if len(digits) == 12 && strings.HasPrefix(digits, "55") && digits[4] >= '6' {
		digits = digits[:4] + "9" + digits[4:]
	}
	return "+" + digits
}
