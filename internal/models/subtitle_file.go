package models

// SubtitleFile represents a subtitle written to disk for one SearchHit
type SubtitleFile struct {
	Directory      string // Movie directory, "<root>/<MovieName> - <MovieYear>"
	CompressedPath string // Downloaded gzip payload, kept for later runs
	Path           string // Final .srt file
	Size           int64  // Size of the final file in bytes
	Downloaded     bool   // False when the compressed payload was already present
	Transcoded     bool   // False when source and target encodings matched
}
