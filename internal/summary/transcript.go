package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/youtube/v3"

	"github.com/ibrbtv/backend/internal/videos"
)

var (
	// ErrCaptionsDisabled indicates the video exposes no caption tracks.
	ErrCaptionsDisabled = errors.New("captions are disabled for this video")
	// ErrTranscriptFetch indicates the caption lookup itself failed.
	ErrTranscriptFetch = errors.New("transcript could not be fetched")
)

// Transcript is the source text handed to the summariser.
type Transcript struct {
	VideoID     string
	Title       string
	Description string
	Languages   []string
}

// Text renders the transcript as prompt input.
func (t Transcript) Text() string {
	return strings.TrimSpace(t.Title + "\n\n" + t.Description)
}

// TranscriptSource fetches caption availability and snippet text from the
// YouTube Data API.
type TranscriptSource struct {
	Service *youtube.Service
}

// Fetch requires at least one caption track before returning the snippet text.
func (s *TranscriptSource) Fetch(ctx context.Context, videoURL string) (Transcript, error) {
	if s == nil || s.Service == nil {
		return Transcript{}, fmt.Errorf("%w: youtube client not configured", ErrTranscriptFetch)
	}
	id, ok := videos.VideoID(videoURL)
	if !ok {
		return Transcript{}, videos.ErrNotYouTube
	}

	captions, err := s.Service.Captions.List([]string{"snippet"}, id).Context(ctx).Do()
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscriptFetch, err)
	}
	if len(captions.Items) == 0 {
		return Transcript{}, ErrCaptionsDisabled
	}

	langs := make([]string, 0, len(captions.Items))
	for _, item := range captions.Items {
		if item.Snippet != nil && item.Snippet.Language != "" {
			langs = append(langs, item.Snippet.Language)
		}
	}

	resp, err := s.Service.Videos.List([]string{"snippet"}).Id(id).Context(ctx).Do()
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscriptFetch, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscriptFetch, videos.ErrVideoNotFound)
	}

	return Transcript{
		VideoID:     id,
		Title:       resp.Items[0].Snippet.Title,
		Description: resp.Items[0].Snippet.Description,
		Languages:   langs,
	}, nil
}
