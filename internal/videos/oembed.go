package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultOEmbedEndpoint is YouTube's public oEmbed endpoint.
const DefaultOEmbedEndpoint = "https://www.youtube.com/oembed"

// OEmbedProvider resolves titles through an oEmbed endpoint.
type OEmbedProvider struct {
	Endpoint string
	Client   *http.Client
}

// NewOEmbedProvider constructs a provider for the given endpoint.
func NewOEmbedProvider(endpoint string, timeout time.Duration) *OEmbedProvider {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultOEmbedEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OEmbedProvider{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Lookup requests `<endpoint>?url=<video>&format=json`.
func (p *OEmbedProvider) Lookup(ctx context.Context, videoURL string) (Metadata, error) {
	if p == nil || p.Endpoint == "" {
		return Metadata{}, ErrProviderUnavailable
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	endpoint, err := url.Parse(p.Endpoint)
	if err != nil {
		return Metadata{}, fmt.Errorf("parse oembed endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("url", videoURL)
	q.Set("format", "json")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build oembed request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("oembed fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Metadata{}, fmt.Errorf("oembed status %d: %w", resp.StatusCode, ErrVideoNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Metadata{}, fmt.Errorf("oembed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Metadata{}, fmt.Errorf("parse oembed response: %w", err)
	}
	if strings.TrimSpace(payload.Title) == "" {
		return Metadata{}, fmt.Errorf("oembed returned empty title")
	}

	return Metadata{Title: payload.Title, Thumbnail: payload.ThumbnailURL}, nil
}
