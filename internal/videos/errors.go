package videos

import "errors"

var (
	// ErrProviderUnavailable indicates the metadata provider is not configured.
	ErrProviderUnavailable = errors.New("video metadata provider unavailable")
	// ErrVideoNotFound indicates the provider has no record of the video.
	ErrVideoNotFound = errors.New("video not found")
	// ErrNotYouTube indicates the URL does not identify a YouTube video.
	ErrNotYouTube = errors.New("url is not a youtube video")
)
