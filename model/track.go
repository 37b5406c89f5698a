package model

// Track is a playable unit handed to the playback engine: a beat (or any
// audio source) reduced to what playback needs. Immutable once queued;
// the engine never mutates track metadata.
type Track struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ProducerName string `json:"producerName"`
	AudioURL     string `json:"audioUrl"` // fully-qualified fetchable locator (or local blob ref)
	CoverURL     string `json:"coverUrl,omitempty"`
}

// TrackFromBeat builds a playable Track from a marketplace beat using
// resolved public URLs.
func TrackFromBeat(b *Beat, audioURL, coverURL string) Track {
	return Track{
		ID:           b.ID,
		Title:        b.Title,
		ProducerName: b.ProducerName,
		AudioURL:     audioURL,
		CoverURL:     coverURL,
	}
}
