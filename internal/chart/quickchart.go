// Package chart renders spending charts through the QuickChart HTTP API.
package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://quickchart.io"

// MaxImageBytes caps the PNG read back from the service.
const MaxImageBytes = 5 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	Width      int
	Height     int
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		Width:      600,
		Height:     400,
	}
}

type request struct {
	Chart           chartConfig `json:"chart"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	Format          string      `json:"format"`
	BackgroundColor string      `json:"backgroundColor"`
}

type chartConfig struct {
	Type string `json:"type"`
	Data struct {
		Labels   []string  `json:"labels"`
		Datasets []dataset `json:"datasets"`
	} `json:"data"`
	Options struct {
		Plugins struct {
			Legend struct {
				Position string `json:"position"`
			} `json:"legend"`
		} `json:"plugins"`
	} `json:"options"`
}

type dataset struct {
	Data []float64 `json:"data"`
}

// RenderDoughnut returns a PNG doughnut chart of values labelled by labels.
func (c *Client) RenderDoughnut(ctx context.Context, labels []string, values []float64) ([]byte, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("chart: %d labels for %d values", len(labels), len(values))
	}
	body := request{Width: c.Width, Height: c.Height, Format: "png", BackgroundColor: "white"}
	body.Chart.Type = "doughnut"
	body.Chart.Data.Labels = labels
	body.Chart.Data.Datasets = []dataset{{Data: values}}
	body.Chart.Options.Plugins.Legend.Position = "right"

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chart", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error calling chart service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart service returned status %d", resp.StatusCode)
	}
	png, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read chart: %w", err)
	}
	return png, nil
}
