package lastfm

import (
	"bytes"
	"encoding/json"
)

// RawTrack is one track record as returned by user.getrecenttracks.
type RawTrack struct {
	Name   string       `json:"name"`
	Artist *trackArtist `json:"artist"`
	Attr   *trackAttr   `json:"@attr"`
	Date   *trackDate   `json:"date"`
}

type trackAttr struct {
	NowPlaying string `json:"nowplaying"`
}

type trackDate struct {
	UTS  string `json:"uts"`
	Text string `json:"#text"`
}

// trackArtist covers both the default shape {"#text": "..."} and the
// extended-format shape {"name": "..."}.
type trackArtist struct {
	Text string `json:"#text"`
	Name string `json:"name"`
}

// NowPlaying reports whether the track carries the currently-playing marker.
func (t *RawTrack) NowPlaying() bool {
	return t.Attr != nil && t.Attr.NowPlaying == "true"
}

// ArtistName returns the artist display name, whichever field carries it.
func (t *RawTrack) ArtistName() string {
	if t.Artist == nil {
		return ""
	}
	if t.Artist.Text != "" {
		return t.Artist.Text
	}
	return t.Artist.Name
}

// trackList tolerates the "track" field being a single object or an array.
// With limit=1 the API has been observed to return both shapes.
type trackList []RawTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, (*[]RawTrack)(l))
	}
	var one RawTrack
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*l = trackList{one}
	return nil
}

type recentTracksResponse struct {
	RecentTracks struct {
		Track trackList `json:"track"`
	} `json:"recenttracks"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}
