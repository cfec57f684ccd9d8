package testutil

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

// GzipBytes compresses data the way OpenSubtitles serves subtitle payloads.
func GzipBytes(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("Failed to gzip data: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// MatrixHit is an English hit for The Matrix (IMDB 0133093).
func MatrixHit(downloadLink string) models.SearchHit {
	return models.SearchHit{
		MovieName:       "The Matrix",
		MovieYear:       "1999",
		IDSubtitleFile:  "12345",
		SubFileName:     "The.Matrix.1999.720p.BluRay.srt",
		SubDownloadLink: downloadLink,
		SubEncoding:     "ISO-8859-1",
		LanguageName:    "English",
		SubLanguageID:   "eng",
		SubFormat:       "srt",
		IDMovieImdb:     "133093",
	}
}

// Latin1Subtitle is a short SRT cue encoded in ISO-8859-1 ("Café, señor").
var Latin1Subtitle = []byte("1\r\n00:00:01,000 --> 00:00:03,000\r\nCaf\xe9, se\xf1or\r\n\r\n")

// UTF8Subtitle is Latin1Subtitle transcoded to UTF-8.
var UTF8Subtitle = []byte("1\r\n00:00:01,000 --> 00:00:03,000\r\nCafé, señor\r\n\r\n")
