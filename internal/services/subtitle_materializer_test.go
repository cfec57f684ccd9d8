package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
	"github.com/Belphemur/opensubtitles-dl/internal/models"
	"github.com/Belphemur/opensubtitles-dl/internal/testutil"
)

func newTestMaterializer(t *testing.T, opts MaterializerOptions) *DefaultSubtitleMaterializer {
	t.Helper()
	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	if opts.TargetEncoding == "" {
		opts.TargetEncoding = "UTF-8"
	}
	m := NewSubtitleMaterializer(&http.Client{Timeout: 5 * time.Second}, nil, opts, zerolog.Nop())
	m.retryDelay = time.Millisecond
	return m
}

func TestMaterialize_Matrix(t *testing.T) {
	server := testutil.NewOpenSubtitlesServer(t)
	link := server.AddFile("/download/file.gz", testutil.GzipBytes(t, testutil.Latin1Subtitle))
	hit := testutil.MatrixHit(link)

	root := t.TempDir()
	m := newTestMaterializer(t, MaterializerOptions{Root: root})

	file, err := m.Materialize(context.Background(), hit)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	wantDir := filepath.Join(root, "The Matrix - 1999")
	if file.Directory != wantDir {
		t.Errorf("Expected directory %q, got %q", wantDir, file.Directory)
	}
	wantPath := filepath.Join(wantDir, "12345-The Matrix.English.srt")
	if file.Path != wantPath {
		t.Errorf("Expected path %q, got %q", wantPath, file.Path)
	}
	if !file.Downloaded || !file.Transcoded {
		t.Errorf("Expected downloaded and transcoded file, got %+v", file)
	}
	if file.Size != int64(len(testutil.UTF8Subtitle)) {
		t.Errorf("Expected size %d, got %d", len(testutil.UTF8Subtitle), file.Size)
	}

	got, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("Expected subtitle file, got %v", err)
	}
	if !bytes.Equal(got, testutil.UTF8Subtitle) {
		t.Errorf("Expected %q, got %q", testutil.UTF8Subtitle, got)
	}

	if _, err := os.Stat(filepath.Join(wantDir, "file.gz")); err != nil {
		t.Errorf("Expected compressed payload to be kept, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(wantDir, "file.srt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected scratch file to be removed, got %v", err)
	}
}

func TestMaterialize_ExistingPayloadSkipsDownload(t *testing.T) {
	server := testutil.NewOpenSubtitlesServer(t)
	link := server.AddFile("/download/file.gz", testutil.GzipBytes(t, []byte("remote")))
	hit := testutil.MatrixHit(link)
	hit.SubEncoding = "UTF-8"

	root := t.TempDir()
	dir := filepath.Join(root, "The Matrix - 1999")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.gz"), testutil.GzipBytes(t, []byte("local")), 0o644); err != nil {
		t.Fatalf("Failed to write payload: %v", err)
	}

	m := newTestMaterializer(t, MaterializerOptions{Root: root})

	file, err := m.Materialize(context.Background(), hit)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if file.Downloaded {
		t.Error("Expected download to be skipped")
	}
	if server.Downloads("/download/file.gz") != 0 {
		t.Errorf("Expected no request to the server, got %d", server.Downloads("/download/file.gz"))
	}

	got, _ := os.ReadFile(file.Path)
	if string(got) != "local" {
		t.Errorf("Expected local payload content, got %q", got)
	}
}

func TestMaterialize_ExactChunkMultiple(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789abcdef"), 3*chunkSize/16)

	server := testutil.NewOpenSubtitlesServer(t)
	hit := testutil.MatrixHit(server.AddFile("/download/big.gz", testutil.GzipBytes(t, content)))
	hit.SubEncoding = "UTF-8"

	m := newTestMaterializer(t, MaterializerOptions{})

	file, err := m.Materialize(context.Background(), hit)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, _ := os.ReadFile(file.Path)
	if !bytes.Equal(got, content) {
		t.Errorf("Expected %d bytes, got %d", len(content), len(got))
	}
}

func TestMaterialize_HTTPError(t *testing.T) {
	server := testutil.NewOpenSubtitlesServer(t)
	hit := testutil.MatrixHit(server.URL + "/download/missing.gz")

	root := t.TempDir()
	m := newTestMaterializer(t, MaterializerOptions{Root: root})

	_, err := m.Materialize(context.Background(), hit)
	if !errors.Is(err, apperrors.ErrNetwork) {
		t.Fatalf("Expected network error, got %v", err)
	}
	if apperrors.IsFatal(err) {
		t.Error("Expected download failure to be recoverable")
	}

	entries, _ := os.ReadDir(filepath.Join(root, "The Matrix - 1999"))
	if len(entries) != 0 {
		t.Errorf("Expected no partial payload, found %d entries", len(entries))
	}
}

func TestMaterialize_Retries(t *testing.T) {
	payload := testutil.GzipBytes(t, []byte("retried"))
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	hit := testutil.MatrixHit(server.URL + "/file.gz")
	hit.SubEncoding = "UTF-8"
	m := newTestMaterializer(t, MaterializerOptions{MaxRetries: 3})

	file, err := m.Materialize(context.Background(), hit)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("Expected 3 requests, got %d", requests.Load())
	}

	got, _ := os.ReadFile(file.Path)
	if string(got) != "retried" {
		t.Errorf("Expected 'retried', got %q", got)
	}
}

func TestMaterialize_RetriesStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := newTestMaterializer(t, MaterializerOptions{MaxRetries: 5})

	if _, err := m.Materialize(ctx, testutil.MatrixHit(server.URL+"/file.gz")); err == nil {
		t.Fatal("Expected an error")
	}
	if n := requests.Load(); n > 2 {
		t.Errorf("Expected retries to stop once the context is canceled, got %d requests", n)
	}
}

func TestMaterialize_NoRetriesByDefault(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := newTestMaterializer(t, MaterializerOptions{})

	if _, err := m.Materialize(context.Background(), testutil.MatrixHit(server.URL+"/file.gz")); err == nil {
		t.Fatal("Expected an error")
	}
	if requests.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", requests.Load())
	}
}

func TestMaterialize_CorruptPayload(t *testing.T) {
	server := testutil.NewOpenSubtitlesServer(t)
	hit := testutil.MatrixHit(server.AddFile("/download/file.gz", []byte("this is not gzip")))

	root := t.TempDir()
	m := newTestMaterializer(t, MaterializerOptions{Root: root})

	_, err := m.Materialize(context.Background(), hit)
	if !errors.Is(err, apperrors.ErrDecompression) {
		t.Fatalf("Expected decompression error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "The Matrix - 1999", "12345-The Matrix.English.srt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected no final file, got %v", err)
	}
}

func TestMaterialize_TruncatedPayload(t *testing.T) {
	full := testutil.GzipBytes(t, bytes.Repeat([]byte("subtitle line\n"), 2000))

	server := testutil.NewOpenSubtitlesServer(t)
	hit := testutil.MatrixHit(server.AddFile("/download/file.gz", full[:len(full)/2]))

	m := newTestMaterializer(t, MaterializerOptions{})

	if _, err := m.Materialize(context.Background(), hit); !errors.Is(err, apperrors.ErrDecompression) {
		t.Fatalf("Expected decompression error, got %v", err)
	}
}

func TestMaterialize_TranscodeFailure(t *testing.T) {
	server := testutil.NewOpenSubtitlesServer(t)
	hit := testutil.MatrixHit(server.AddFile("/download/file.gz", testutil.GzipBytes(t, []byte("x"))))
	hit.SubEncoding = "x-unknown-charset"

	m := newTestMaterializer(t, MaterializerOptions{})

	if _, err := m.Materialize(context.Background(), hit); !errors.Is(err, apperrors.ErrTranscode) {
		t.Fatalf("Expected transcode error, got %v", err)
	}
}

func TestMaterialize_DirectoryFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	if err := os.WriteFile(root, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	m := newTestMaterializer(t, MaterializerOptions{Root: root})

	_, err := m.Materialize(context.Background(), testutil.MatrixHit("http://127.0.0.1:1/file.gz"))
	if !errors.Is(err, apperrors.ErrFilesystem) {
		t.Fatalf("Expected filesystem error, got %v", err)
	}
}

type countingWriter struct {
	n      int64
	total  int64
	closed bool
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func (c *countingWriter) Close() error {
	c.closed = true
	return nil
}

func TestMaterialize_Progress(t *testing.T) {
	payload := testutil.GzipBytes(t, []byte("progress"))
	server := testutil.NewOpenSubtitlesServer(t)
	hit := testutil.MatrixHit(server.AddFile("/download/file.gz", payload))
	hit.SubEncoding = "UTF-8"

	var progress *countingWriter
	m := newTestMaterializer(t, MaterializerOptions{
		Progress: func(description string, total int64) io.Writer {
			progress = &countingWriter{total: total}
			return progress
		},
	})

	if _, err := m.Materialize(context.Background(), hit); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if progress == nil {
		t.Fatal("Expected progress writer to be created")
	}
	if progress.n != int64(len(payload)) {
		t.Errorf("Expected %d bytes reported, got %d", len(payload), progress.n)
	}
	if !progress.closed {
		t.Error("Expected progress writer to be closed")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"The Matrix - 1999":  "The Matrix - 1999",
		"AC/DC: Live - 1992": "AC_DC: Live - 1992",
		`..\..\evil`:         ".._.._evil",
	}
	for input, want := range tests {
		if got := sanitizeName(input); got != want {
			t.Errorf("sanitizeName(%q) = %q, expected %q", input, got, want)
		}
	}
}

func TestPayloadName(t *testing.T) {
	name, err := payloadName("http://dl.opensubtitles.org/en/download/src-api/vrf-abc/filead/1951976245.gz")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if name != "1951976245.gz" {
		t.Errorf("Expected '1951976245.gz', got %q", name)
	}

	if _, err := payloadName("http://dl.opensubtitles.org/"); err == nil {
		t.Error("Expected an error for a link without file name")
	}
}

func TestFinalName(t *testing.T) {
	hit := models.SearchHit{IDSubtitleFile: "42", MovieName: "Heat", LanguageName: "French"}
	if got := finalName(hit); got != "42-Heat.French.srt" {
		t.Errorf("Expected '42-Heat.French.srt', got %q", got)
	}
}
