// Package whatsapp talks to the WhatsApp Cloud API: outbound messages, media
// transfer and the inbound webhook payload.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v21.0"
	templateLanguage  = "pt_BR"
)

// ErrMediaTooLarge is returned by DownloadMedia when the file exceeds the cap.
var ErrMediaTooLarge = errors.New("media too large")

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api: status %d code %d: %s", e.Status, e.Code, e.Message)
}

type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	// Template is sent when a plain text send fails. Empty disables the
	// fallback.
	Template string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Client) url(path string) string {
	return c.cfg.BaseURL + "/" + c.cfg.APIVersion + "/" + path
}

type outbound struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Image            *imageBody    `json:"image,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type imageBody struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

type templateBody struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
}

// SendText sends a text message. When the API refuses it and a template is
// configured, the template is sent instead so the user can reopen the
// conversation.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	err := c.send(ctx, outbound{Type: "text", To: to, Text: &textBody{Body: body}})
	var apiErr *APIError
	if err == nil || c.cfg.Template == "" || !errors.As(err, &apiErr) {
		return err
	}
	c.logger.Warn("text send refused, falling back to template", "to", to, "code", apiErr.Code, "error", err)
	if terr := c.SendTemplate(ctx, to, c.cfg.Template); terr != nil {
		return fmt.Errorf("send template after %v: %w", err, terr)
	}
	return nil
}

func (c *Client) SendTemplate(ctx context.Context, to, name string) error {
	t := &templateBody{Name: name}
	t.Language.Code = templateLanguage
	return c.send(ctx, outbound{Type: "template", To: to, Template: t})
}

// SendImage uploads png and sends it with a caption.
func (c *Client) SendImage(ctx context.Context, to string, png []byte, caption string) error {
	id, err := c.UploadMedia(ctx, png, "image/png", "chart.png")
	if err != nil {
		return err
	}
	return c.send(ctx, outbound{Type: "image", To: to, Image: &imageBody{ID: id, Caption: caption}})
}

func (c *Client) send(ctx context.Context, msg outbound) error {
	msg.MessagingProduct = "whatsapp"
	msg.To = strings.TrimPrefix(msg.To, "+")
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.cfg.PhoneNumberID+"/messages"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// UploadMedia stores a file on the Cloud API and returns its media id.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("messaging_product", "whatsapp")
	_ = mw.WriteField("type", mimeType)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.cfg.PhoneNumberID+"/media"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return out.ID, nil
}

// DownloadMedia resolves a media id and fetches the file, refusing anything
// larger than maxBytes.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string, maxBytes int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(mediaID), nil)
	if err != nil {
		return nil, "", err
	}
	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
		FileSize int64  `json:"file_size"`
	}
	if err := c.do(req, &meta); err != nil {
		return nil, "", fmt.Errorf("media lookup: %w", err)
	}
	if meta.FileSize > maxBytes {
		return nil, "", ErrMediaTooLarge
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &APIError{Status: resp.StatusCode, Message: "media download failed"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("media download: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", ErrMediaTooLarge
	}
	return data, meta.MimeType, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling whatsapp api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode whatsapp response: %w", err)
	}
	return nil
}
