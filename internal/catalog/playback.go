package catalog

import "net/url"

// PlaybackURL returns raw with autoplay=1 in its query. URLs that already
// carry a single autoplay=1 are returned unchanged and malformed URLs are
// passed through untouched.
func PlaybackURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	q := u.Query()
	if values := q["autoplay"]; len(values) == 1 && values[0] == "1" {
		return raw
	}

	q.Set("autoplay", "1")
	u.RawQuery = q.Encode()
	return u.String()
}
