package deeplink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	assert.Equal(t,
		"custom-video-player://video/watch_party/join?party_id=ABC123",
		Build(DefaultScheme, "ABC123"),
	)
}

func TestParseRoundTrip(t *testing.T) {
	for _, id := range []string{"ABC123", "a_b9Zz", "______"} {
		got, err := Parse(Build("myapp", id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, link := range []string{
		"",
		"custom-video-player://video/watch_party/join",
		"custom-video-player://video/other?party_id=ABC123",
		"custom-video-player://audio/watch_party/join?party_id=ABC123",
		"://bad",
	} {
		_, err := Parse(link)
		assert.ErrorIs(t, err, ErrInvalidLink, link)
	}
}
