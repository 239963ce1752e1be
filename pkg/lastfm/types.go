package lastfm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Session represents an authenticated session from auth.getSession.
type Session struct {
	Key        string // Session key for authenticated requests
	Username   string // Last.fm username
	Subscriber bool   // Whether user is a subscriber
}

// Image is one size variant of an artist, album or track image.
type Image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// Images is the list of size variants Last.fm returns for a resource.
type Images []Image

// Largest returns the URL of the biggest non-empty image, or "".
func (im Images) Largest() string {
	for i := len(im) - 1; i >= 0; i-- {
		if im[i].URL != "" {
			return im[i].URL
		}
	}
	return ""
}

// Count is a numeric field Last.fm encodes either as a JSON number or as a
// string. Missing or unparseable values decode as zero.
type Count int

// UnmarshalJSON accepts numbers, numeric strings, empty strings and null.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		*c = 0
		return nil
	}
	*c = Count(n)
	return nil
}

// Stats holds global and per-user play statistics.
type Stats struct {
	Listeners     Count `json:"listeners"`
	PlayCount     Count `json:"playcount"`
	UserPlayCount Count `json:"userplaycount"`
}

// ArtistInfo is the response body of artist.getInfo.
type ArtistInfo struct {
	Name  string `json:"name"`
	MBID  string `json:"mbid"`
	URL   string `json:"url"`
	Image Images `json:"image"`
	Stats Stats  `json:"stats"`
}

// AlbumInfo is the response body of album.getInfo.
type AlbumInfo struct {
	Name          string `json:"name"`
	Artist        string `json:"artist"`
	URL           string `json:"url"`
	Image         Images `json:"image"`
	Listeners     Count  `json:"listeners"`
	PlayCount     Count  `json:"playcount"`
	UserPlayCount Count  `json:"userplaycount"`
}

// TrackInfo is the response body of track.getInfo.
type TrackInfo struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title string `json:"title"`
		Image Images `json:"image"`
	} `json:"album"`
	Listeners     Count `json:"listeners"`
	PlayCount     Count `json:"playcount"`
	UserPlayCount Count `json:"userplaycount"`
}

// ArtistMatch is one artist.search result.
type ArtistMatch struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AlbumMatch is one album.search result.
type AlbumMatch struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// TrackMatch is one track.search result.
type TrackMatch struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// RecentTrack is one entry of user.getRecentTracks.
type RecentTrack struct {
	Name       string
	Artist     string
	Album      string
	Image      Images
	NowPlaying bool

	// PlayedAt is zero for the track that is playing now.
	PlayedAt time.Time
}

// UserInfo is the response body of user.getInfo.
type UserInfo struct {
	Name       string
	RealName   string
	URL        string
	Image      Images
	PlayCount  int
	Registered time.Time
}

// TopItem is one entry of user.getTopTracks or user.getTopAlbums.
type TopItem struct {
	Name      string
	Artist    string
	PlayCount int
	Image     Images
}

type textField struct {
	Text string `json:"#text"`
}

type recentTrackJSON struct {
	Name   string    `json:"name"`
	Artist textField `json:"artist"`
	Album  textField `json:"album"`
	Image  Images    `json:"image"`
	Date   struct {
		UTS string `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

type recentTracksJSON struct {
	Track oneOrMany[recentTrackJSON] `json:"track"`
	Attr  struct {
		Total Count `json:"total"`
	} `json:"@attr"`
}

type userInfoJSON struct {
	Name       string `json:"name"`
	RealName   string `json:"realname"`
	URL        string `json:"url"`
	Image      Images `json:"image"`
	PlayCount  Count  `json:"playcount"`
	Registered struct {
		Unixtime Count `json:"unixtime"`
	} `json:"registered"`
}

type topItemJSON struct {
	Name      string `json:"name"`
	PlayCount Count  `json:"playcount"`
	Image     Images `json:"image"`
	Artist    struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// oneOrMany decodes a JSON value that Last.fm sends as an object when there
// is a single result and as an array otherwise.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}
