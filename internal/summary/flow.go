package summary

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/videos"
)

// Source returns the text to summarise for a video URL.
type Source interface {
	Fetch(ctx context.Context, videoURL string) (Transcript, error)
}

// Summarizer turns a transcript into a title and summary.
type Summarizer interface {
	Summarize(ctx context.Context, t Transcript) (Result, error)
}

// Flow runs transcript retrieval followed by a single summarisation call.
type Flow struct {
	Source     Source
	Summarizer Summarizer
}

// Generate produces a title and summary for the video.
func (f Flow) Generate(ctx context.Context, videoURL string) (Result, error) {
	ctx, span := logging.StartSpan(ctx, "summary.generate")
	defer span.End()

	if f.Source == nil || f.Summarizer == nil {
		span.Fail(ErrUnavailable)
		return Result{}, ErrUnavailable
	}

	transcript, err := f.Source.Fetch(ctx, videoURL)
	if err != nil {
		logging.FromContext(ctx).Warn("transcript unavailable", slog.String("url", videoURL), slog.Any("error", err))
		span.Fail(err)
		return Result{}, err
	}

	result, err := f.Summarizer.Summarize(ctx, transcript)
	if err != nil {
		logging.FromContext(ctx).Error("summarisation failed", slog.String("url", videoURL), slog.Any("error", err))
		span.Fail(err)
		return Result{}, err
	}
	return result, nil
}

// ErrUnavailable indicates the flow is not configured.
var ErrUnavailable = errors.New("summary generation is not configured")

// Message maps a flow failure to the message shown in the admin banner.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCaptionsDisabled):
		return "this video has captions disabled, so a summary cannot be generated"
	case errors.Is(err, ErrTranscriptFetch):
		return "could not fetch the video transcript, please try again later"
	case errors.Is(err, videos.ErrNotYouTube):
		return "the provided URL does not look like a valid YouTube video"
	case errors.Is(err, ErrUnavailable):
		return "summary generation is not configured"
	default:
		return "failed to generate the video summary"
	}
}
