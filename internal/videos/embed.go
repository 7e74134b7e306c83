package videos

import (
	"net/url"
	"strings"
)

const embedBase = "https://www.youtube.com/embed/"

// EmbedURL converts a YouTube watch or short link into its embed form.
// Embed URLs lose any autoplay parameter so the stored value never starts
// playback on its own. Input that cannot be parsed, or that carries no video
// id, is returned unchanged.
func EmbedURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if strings.Contains(u.Path, "/embed/") {
		q := u.Query()
		if _, ok := q["autoplay"]; ok {
			q.Del("autoplay")
			u.RawQuery = q.Encode()
		}
		return u.String()
	}

	if id, ok := VideoID(raw); ok {
		return embedBase + id
	}
	return raw
}

// IsEmbed reports whether the URL points at a YouTube embed path.
func IsEmbed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	id := strings.TrimPrefix(u.Path, "/embed/")
	return strings.HasPrefix(u.Path, "/embed/") && id != "" && !strings.Contains(id, "/")
}

// VideoID extracts the YouTube video id from watch, short or embed URLs.
func VideoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	var id string
	switch strings.ToLower(u.Hostname()) {
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	case "www.youtube.com", "youtube.com", "m.youtube.com", "www.youtube-nocookie.com":
		if strings.HasPrefix(u.Path, "/embed/") {
			id = strings.TrimPrefix(u.Path, "/embed/")
		} else {
			id = u.Query().Get("v")
		}
	}

	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
