package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
	"github.com/Belphemur/opensubtitles-dl/internal/cache"
	"github.com/Belphemur/opensubtitles-dl/internal/models"
	"github.com/Belphemur/opensubtitles-dl/internal/testutil"
)

type fakeSearcher struct {
	response *models.SearchResponse
	err      error
	calls    int
}

func (f *fakeSearcher) AuthenticateAndSearch(ctx context.Context, imdbID string, languages []string) (*models.SearchResponse, error) {
	f.calls++
	return f.response, f.err
}

func newMemoryCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.New("memory", cache.ProviderConfig{Size: 10, TTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFingerprint(t *testing.T) {
	// md5("eng0133093")
	if got := Fingerprint("0133093", []string{"eng"}); got != "a9fc8483c81e866ff20b23cb624e3712" {
		t.Errorf("Expected fingerprint 'a9fc8483c81e866ff20b23cb624e3712', got %q", got)
	}

	a := Fingerprint("0133093", []string{"eng", "fre"})
	b := Fingerprint("0133093", []string{"eng", "fre"})
	if a != b {
		t.Errorf("Expected identical fingerprints, got %q and %q", a, b)
	}
	if a == Fingerprint("0133093", []string{"eng"}) {
		t.Error("Expected language list to change the fingerprint")
	}
	if a == Fingerprint("0133094", []string{"eng", "fre"}) {
		t.Error("Expected IMDB id to change the fingerprint")
	}
}

func TestCachedSearcher_MissThenHit(t *testing.T) {
	inner := &fakeSearcher{response: &models.SearchResponse{
		Status: "200 OK",
		Data:   []models.SearchHit{testutil.MatrixHit("http://dl.example/file.gz")},
	}}
	s := NewCachedSearcher(inner, newMemoryCache(t), zerolog.Nop())

	first, fromCache, err := s.Search(context.Background(), "0133093", []string{"eng"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected first search to miss the cache")
	}

	second, fromCache, err := s.Search(context.Background(), "0133093", []string{"eng"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected second search to be served from the cache")
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 remote search, got %d", inner.calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Cached response mismatch (-want +got):\n%s", diff)
	}
}

func TestCachedSearcher_CachesEmptyResults(t *testing.T) {
	inner := &fakeSearcher{response: &models.SearchResponse{Status: "200 OK", Data: []models.SearchHit{}}}
	s := NewCachedSearcher(inner, newMemoryCache(t), zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, _, err := s.Search(context.Background(), "0000001", []string{"eng"}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 remote search, got %d", inner.calls)
	}
}

func TestCachedSearcher_UndecodableEntryIsMiss(t *testing.T) {
	c := newMemoryCache(t)
	c.Set(Fingerprint("0133093", []string{"eng"}), []byte("{not json"))

	inner := &fakeSearcher{response: &models.SearchResponse{Status: "200 OK", Data: []models.SearchHit{}}}
	s := NewCachedSearcher(inner, c, zerolog.Nop())

	_, fromCache, err := s.Search(context.Background(), "0133093", []string{"eng"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected undecodable entry to be treated as a miss")
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 remote search, got %d", inner.calls)
	}

	if _, fromCache, _ = s.Search(context.Background(), "0133093", []string{"eng"}); !fromCache {
		t.Error("Expected the entry to be replaced by the fresh response")
	}
}

func TestCachedSearcher_UndecodableEntryDroppedOnFailure(t *testing.T) {
	c := newMemoryCache(t)
	c.Set(Fingerprint("0133093", []string{"eng"}), []byte("{not json"))

	inner := &fakeSearcher{err: apperrors.Network("SearchSubtitles", errors.New("connection refused"))}
	s := NewCachedSearcher(inner, c, zerolog.Nop())

	if _, _, err := s.Search(context.Background(), "0133093", []string{"eng"}); err == nil {
		t.Fatal("Expected the remote error")
	}
	if c.Len() != 0 {
		t.Errorf("Expected the undecodable entry to be dropped, got %d entries", c.Len())
	}
}

func TestCachedSearcher_ErrorNotCached(t *testing.T) {
	c := newMemoryCache(t)
	inner := &fakeSearcher{err: apperrors.Authentication("LogIn", errors.New("401"))}
	s := NewCachedSearcher(inner, c, zerolog.Nop())

	_, _, err := s.Search(context.Background(), "0133093", []string{"eng"})
	if !errors.Is(err, apperrors.ErrAuthentication) {
		t.Fatalf("Expected authentication error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after a failed search, got %d entries", c.Len())
	}
}
