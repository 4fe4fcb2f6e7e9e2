package ingest

import "strings"

// MovieRecord is the canonical unit of catalog content, mirroring what the
// scraper emits: top-level presentation fields, the embedded YTS payload,
// the collected subtitles, and a couple of legacy fields older readers
// still expect on the record root.
type MovieRecord struct {
	Title        string     `json:"title"`
	Year         int        `json:"year,omitempty"`
	Rating       float64    `json:"rating,omitempty"`
	DateUploaded string     `json:"date_uploaded,omitempty"`
	IsFeatured   bool       `json:"is_featured,omitempty"`
	YTSData      *YTSData   `json:"yts_data,omitempty"`
	SubtitleList []Subtitle `json:"subtitle_list,omitempty"`

	// Legacy compatibility fields from before the yts_data embedding.
	ImdbCode     string `json:"imdb_code,omitempty"`
	DownloadLink string `json:"download_link,omitempty"`
}

// YTSData is the source-specific movie payload as returned by the YTS API,
// with absolute URLs already rewritten to site-relative paths upstream.
type YTSData struct {
	ID              int      `json:"id,omitempty"`
	ImdbCode        string   `json:"imdb_code,omitempty"`
	URL             string   `json:"url,omitempty"`
	Title           string   `json:"title,omitempty"`
	TitleEnglish    string   `json:"title_english,omitempty"`
	TitleLong       string   `json:"title_long,omitempty"`
	Slug            string   `json:"slug,omitempty"`
	Year            int      `json:"year,omitempty"`
	Rating          float64  `json:"rating,omitempty"`
	Runtime         int      `json:"runtime,omitempty"`
	Genres          []string `json:"genres,omitempty"`
	DescriptionFull string   `json:"description_full,omitempty"`
	Language        string   `json:"language,omitempty"`
	MpaRating       string   `json:"mpa_rating,omitempty"`

	BackgroundImage  string `json:"background_image,omitempty"`
	SmallCoverImage  string `json:"small_cover_image,omitempty"`
	MediumCoverImage string `json:"medium_cover_image,omitempty"`
	LargeCoverImage  string `json:"large_cover_image,omitempty"`

	Cast     []CastMember `json:"cast,omitempty"`
	Torrents []Torrent    `json:"torrents,omitempty"`
}

// CastMember is one cast credit from the YTS payload.
type CastMember struct {
	Name          string `json:"name,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
	ImdbCode      string `json:"imdb_code,omitempty"`
	URLSmallImage string `json:"url_small_image,omitempty"`
}

// Torrent is one release variant of a movie.
type Torrent struct {
	URL        string `json:"url,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Quality    string `json:"quality,omitempty"`
	Type       string `json:"type,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
	Size       string `json:"size,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
}

// Subtitle is one downloadable subtitle attached to a movie.
type Subtitle struct {
	ID           int    `json:"id"`
	Filename     string `json:"filename,omitempty"`
	DownloadLink string `json:"download_link,omitempty"`
}

// ExternalID returns the stable identifier the record is keyed by: the IMDb
// code from the embedded YTS payload, or the legacy root-level field.
// Empty means the record is not ingestible.
func (r *MovieRecord) ExternalID() string {
	if r.YTSData != nil && r.YTSData.ImdbCode != "" {
		return r.YTSData.ImdbCode
	}
	return r.ImdbCode
}

// normalize cleans up whitespace artifacts the scraper occasionally leaves
// in titles.
func (r *MovieRecord) normalize() {
	r.Title = strings.Join(strings.Fields(r.Title), " ")
	if r.YTSData != nil {
		r.YTSData.Title = strings.Join(strings.Fields(r.YTSData.Title), " ")
	}
}
