package videos

import (
	"context"
	"fmt"

	"google.golang.org/api/youtube/v3"
)

// YouTubeProvider resolves metadata through the YouTube Data API.
type YouTubeProvider struct {
	Service *youtube.Service
}

// NewYouTubeProvider wraps an authenticated YouTube service client.
func NewYouTubeProvider(service *youtube.Service) *YouTubeProvider {
	return &YouTubeProvider{Service: service}
}

// Lookup calls videos.list with the snippet part for the URL's video id.
func (p *YouTubeProvider) Lookup(ctx context.Context, videoURL string) (Metadata, error) {
	if p == nil || p.Service == nil {
		return Metadata{}, ErrProviderUnavailable
	}
	id, ok := VideoID(videoURL)
	if !ok {
		return Metadata{}, ErrNotYouTube
	}

	resp, err := p.Service.Videos.List([]string{"snippet"}).Id(id).Context(ctx).Do()
	if err != nil {
		return Metadata{}, fmt.Errorf("youtube videos.list: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return Metadata{}, ErrVideoNotFound
	}

	snippet := resp.Items[0].Snippet
	meta := Metadata{Title: snippet.Title, Description: snippet.Description}
	if snippet.Thumbnails != nil && snippet.Thumbnails.High != nil {
		meta.Thumbnail = snippet.Thumbnails.High.Url
	}
	return meta, nil
}
