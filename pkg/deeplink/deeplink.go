package deeplink

import (
	"errors"
	"fmt"
	"net/url"
)

const (
	DefaultScheme = "custom-video-player"

	host       = "video"
	joinPath   = "/watch_party/join"
	partyIDKey = "party_id"
)

var ErrInvalidLink = errors.New("invalid watch party link")

// Build returns scheme://video/watch_party/join?party_id=<partyID>.
func Build(scheme, partyID string) string {
	return fmt.Sprintf("%s://%s%s?%s=%s", scheme, host, joinPath, partyIDKey, url.QueryEscape(partyID))
}

// Parse extracts the party id from a join link built by Build.
func Parse(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}

	if u.Host != host || u.Path != joinPath {
		return "", ErrInvalidLink
	}

	partyID := u.Query().Get(partyIDKey)
	if partyID == "" {
		return "", ErrInvalidLink
	}

	return partyID, nil
}
