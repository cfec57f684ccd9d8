package models

// SearchHit represents one subtitle returned by the OpenSubtitles SearchSubtitles call.
// Field names follow the member names of the XML-RPC response.
type SearchHit struct {
	MovieName       string `json:"MovieName"`
	MovieYear       string `json:"MovieYear"`
	IDSubtitleFile  string `json:"IDSubtitleFile"`
	SubFileName     string `json:"SubFileName"`
	SubDownloadLink string `json:"SubDownloadLink"`
	SubEncoding     string `json:"SubEncoding"`
	LanguageName    string `json:"LanguageName"`
	SubLanguageID   string `json:"SubLanguageID,omitempty"` // e.g. "eng"
	SubFormat       string `json:"SubFormat,omitempty"`     // e.g. "srt"
	IDMovieImdb     string `json:"IDMovieImdb,omitempty"`
}

// SearchResponse is the decoded SearchSubtitles reply, stored as-is in the search cache.
type SearchResponse struct {
	Status  string      `json:"status"`
	Data    []SearchHit `json:"data"`
	Seconds float64     `json:"seconds,omitempty"`
}
