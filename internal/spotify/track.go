package spotify

import (
	"net/url"
	"strings"
)

const (
	trackURIPrefix = "spotify:track:"
	trackURLBase   = "https://open.spotify.com/track/"
)

// ParseTrackURI extracts the track id from "spotify:track:<id>" or an open.spotify.com track link
func ParseTrackURI(s string) (string, bool) {
	s = strings.TrimSpace(s)

	var id string
	switch {
	case strings.HasPrefix(s, trackURIPrefix):
		id = strings.TrimPrefix(s, trackURIPrefix)
	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		u, err := url.Parse(s)
		if err != nil || u.Host != "open.spotify.com" {
			return "", false
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "track" {
			return "", false
		}
		id = parts[1]
	default:
		return "", false
	}

	if !validID(id) {
		return "", false
	}
	return id, true
}

// TrackURI returns the canonical URI of a track id
func TrackURI(id string) string {
	return trackURIPrefix + id
}

// TrackURL returns the public web link of a track id
func TrackURL(id string) string {
	return trackURLBase + id
}

// ids are base62
func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z') {
			return false
		}
	}
	return true
}
