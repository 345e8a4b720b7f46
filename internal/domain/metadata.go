package domain

// Format is one downloadable variant reported by the probe
type Format struct {
	FormatID string `json:"format_id"`
	Quality  string `json:"quality"`
	Ext      string `json:"ext"`
	Filesize *int64 `json:"filesize"`
	HasVideo bool   `json:"has_video"`
	HasAudio bool   `json:"has_audio"`
}

// MediaMetadata is the normalized result of probing a URL
type MediaMetadata struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Thumbnail   *string  `json:"thumbnail"`
	Uploader    *string  `json:"uploader"`
	Duration    *float64 `json:"duration"`
	Description *string  `json:"description"`
	Formats     []Format `json:"formats"`
}
