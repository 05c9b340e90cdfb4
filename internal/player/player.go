// Package player is the local playback facade the watch party client drives.
package player

// Media describes the loaded video.
type Media struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	URL      string `json:"url"`
}

// Player exposes the local playback primitives.
type Player interface {
	Play()
	Pause()
	Seek(seconds float64)
	CurrentTime() float64
	Duration() float64
	IsPlaying() bool
	// IsReady reports whether the player can accept seeks and toggles.
	IsReady() bool
	// Media returns the loaded video, false when nothing is loaded.
	Media() (Media, bool)
}
