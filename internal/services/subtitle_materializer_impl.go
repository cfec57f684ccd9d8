package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/renameio/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
	"github.com/Belphemur/opensubtitles-dl/internal/metrics"
	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

// chunkSize is the read size used when inflating payloads
const chunkSize = 4096

// nameReplacer keeps movie and language names from escaping the subtitles root
var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")

// MaterializerOptions configures a DefaultSubtitleMaterializer
type MaterializerOptions struct {
	Root           string // Subtitles root directory
	TargetEncoding string
	MaxRetries     int          // Download retries, 0 disables retrying
	Progress       ProgressFunc // Optional download progress
}

// DefaultSubtitleMaterializer implements SubtitleMaterializer on the local filesystem
type DefaultSubtitleMaterializer struct {
	httpClient *http.Client
	transcoder Transcoder
	opts       MaterializerOptions
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewSubtitleMaterializer creates a materializer downloading with httpClient
func NewSubtitleMaterializer(httpClient *http.Client, transcoder Transcoder, opts MaterializerOptions, logger zerolog.Logger) *DefaultSubtitleMaterializer {
	if transcoder == nil {
		transcoder = NewTranscoder()
	}
	return &DefaultSubtitleMaterializer{
		httpClient: httpClient,
		transcoder: transcoder,
		opts:       opts,
		retryDelay: 500 * time.Millisecond,
		logger:     logger.With().Str("component", "materializer").Logger(),
	}
}

// Materialize runs the steps for one hit: movie directory, download, inflate,
// transcode and rename. Any failure only concerns this hit.
func (m *DefaultSubtitleMaterializer) Materialize(ctx context.Context, hit models.SearchHit) (*models.SubtitleFile, error) {
	file, err := m.materialize(ctx, hit)
	if err != nil {
		metrics.HitsProcessedTotal.WithLabelValues(apperrors.KindOf(err).String()).Inc()
		return nil, err
	}
	metrics.HitsProcessedTotal.WithLabelValues("success").Inc()
	return file, nil
}

func (m *DefaultSubtitleMaterializer) materialize(ctx context.Context, hit models.SearchHit) (*models.SubtitleFile, error) {
	logger := m.logger.With().Str("subtitle_id", hit.IDSubtitleFile).Logger()

	dir, err := m.movieDirectory(hit)
	if err != nil {
		return nil, err
	}

	base, err := payloadName(hit.SubDownloadLink)
	if err != nil {
		return nil, err
	}

	file := &models.SubtitleFile{
		Directory:      dir,
		CompressedPath: filepath.Join(dir, base),
	}

	if f, err := os.Open(file.CompressedPath); err == nil {
		f.Close()
		metrics.SubtitleDownloadsTotal.WithLabelValues("cached").Inc()
		logger.Debug().Str("path", file.CompressedPath).Msg("Compressed subtitle already present, skipping download")
	} else {
		if err := m.download(ctx, hit, file.CompressedPath); err != nil {
			metrics.SubtitleDownloadsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.SubtitleDownloadsTotal.WithLabelValues("success").Inc()
		file.Downloaded = true
	}

	scratch := filepath.Join(dir, strings.TrimSuffix(base, ".gz")+".srt")
	defer func() {
		if err := os.Remove(scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", scratch).Msg("Failed to remove scratch file")
		}
	}()

	if err := inflate(file.CompressedPath, scratch); err != nil {
		return nil, err
	}

	file.Transcoded, err = m.transcoder.Transcode(scratch, hit.SubEncoding, m.opts.TargetEncoding)
	if err != nil {
		return nil, err
	}

	file.Path = filepath.Join(dir, finalName(hit))
	if err := os.Rename(scratch, file.Path); err != nil {
		return nil, apperrors.Filesystem("rename subtitle", err)
	}

	info, err := os.Stat(file.Path)
	if err != nil {
		return nil, apperrors.Filesystem("stat subtitle", err)
	}
	file.Size = info.Size()

	logger.Info().
		Str("path", file.Path).
		Int64("size", file.Size).
		Bool("downloaded", file.Downloaded).
		Bool("transcoded", file.Transcoded).
		Msg("Subtitle written")

	return file, nil
}

// movieDirectory creates "<root>/<MovieName> - <MovieYear>" if needed.
func (m *DefaultSubtitleMaterializer) movieDirectory(hit models.SearchHit) (string, error) {
	dir := filepath.Join(m.opts.Root, sanitizeName(hit.MovieName+" - "+hit.MovieYear))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Filesystem(fmt.Sprintf("create directory %q", dir), err)
	}
	return dir, nil
}

// download streams the payload to dest through a pending file, so an
// interrupted download never leaves a file that passes the presence check.
func (m *DefaultSubtitleMaterializer) download(ctx context.Context, hit models.SearchHit, dest string) error {
	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return apperrors.Filesystem("create pending file", err)
	}
	defer pending.Cleanup()

	resp, err := m.fetch(ctx, hit.SubDownloadLink)
	if err != nil {
		return apperrors.Network("download subtitle", err)
	}
	defer resp.Body.Close()

	var w io.Writer = pending
	if m.opts.Progress != nil {
		progress := m.opts.Progress(hit.SubFileName, resp.ContentLength)
		if c, ok := progress.(io.Closer); ok {
			defer c.Close()
		}
		w = io.MultiWriter(pending, progress)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return apperrors.Network("download subtitle", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return apperrors.Filesystem("store subtitle", err)
	}

	m.logger.Debug().Str("path", dest).Int64("bytes", n).Msg("Downloaded compressed subtitle")
	return nil
}

// fetch issues the GET, retrying with failsafe-go when MaxRetries is set.
func (m *DefaultSubtitleMaterializer) fetch(ctx context.Context, link string) (*http.Response, error) {
	get := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return resp, nil
	}

	if m.opts.MaxRetries <= 0 {
		return get()
	}

	policy := retrypolicy.NewBuilder[*http.Response]().
		WithMaxRetries(m.opts.MaxRetries).
		WithBackoff(m.retryDelay, 8*m.retryDelay).
		AbortOnErrors(context.Canceled, context.DeadlineExceeded).
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			m.logger.Warn().Err(e.LastError()).Int("attempt", e.Attempts()).Str("url", link).Msg("Retrying subtitle download")
		}).
		ReturnLastFailure().
		Build()

	return failsafe.With[*http.Response](policy).WithContext(ctx).Get(get)
}

// inflate decompresses src into dst in fixed-size chunks.
func inflate(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperrors.Decompression("open compressed subtitle", err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return apperrors.Decompression("read gzip header", err)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return apperrors.Filesystem("create subtitle", err)
	}
	defer out.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := zr.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return apperrors.Filesystem("write subtitle", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return apperrors.Decompression("inflate subtitle", err)
		}
		if n == 0 {
			return apperrors.Decompression("inflate subtitle", io.ErrNoProgress)
		}
	}

	if err := out.Close(); err != nil {
		return apperrors.Filesystem("close subtitle", err)
	}
	return nil
}

// payloadName is the file name of the compressed payload, the last element of
// the download link path.
func payloadName(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", apperrors.Network("parse download link", err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "", apperrors.Network("parse download link", fmt.Errorf("no file name in %q", link))
	}
	return sanitizeName(base), nil
}

// finalName is "<IDSubtitleFile>-<MovieName>.<LanguageName>.srt".
func finalName(hit models.SearchHit) string {
	return sanitizeName(fmt.Sprintf("%s-%s.%s.srt", hit.IDSubtitleFile, hit.MovieName, hit.LanguageName))
}

func sanitizeName(name string) string {
	return nameReplacer.Replace(name)
}
