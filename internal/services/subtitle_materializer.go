package services

import (
	"context"
	"io"

	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

// SubtitleMaterializer turns a search hit into a subtitle file on disk
type SubtitleMaterializer interface {
	// Materialize downloads (unless already present), inflates and transcodes the subtitle of hit
	Materialize(ctx context.Context, hit models.SearchHit) (*models.SubtitleFile, error)
}

// Transcoder converts a file between character encodings in place
type Transcoder interface {
	// Transcode rewrites path from source to target encoding. It reports whether the file changed.
	Transcode(path, source, target string) (bool, error)
}

// ProgressFunc returns a writer that tracks a download of total bytes (-1 when unknown).
// Writers that also implement io.Closer are closed when the download ends.
type ProgressFunc func(description string, total int64) io.Writer
