package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Belphemur/opensubtitles-dl/internal/cache"
	"github.com/Belphemur/opensubtitles-dl/internal/metrics"
	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

// Fingerprint returns the cache key of a search: the hex MD5 of the
// comma-joined sublanguage ids followed by the IMDB id.
func Fingerprint(imdbID string, languages []string) string {
	sum := md5.Sum([]byte(strings.Join(languages, ",") + imdbID))
	return hex.EncodeToString(sum[:])
}

// CachedSearcher serves searches from a cache and falls back to a remote
// Searcher on a miss.
type CachedSearcher struct {
	inner  Searcher
	cache  cache.Cache
	logger zerolog.Logger
}

// NewCachedSearcher wraps inner with c.
func NewCachedSearcher(inner Searcher, c cache.Cache, logger zerolog.Logger) *CachedSearcher {
	return &CachedSearcher{
		inner:  inner,
		cache:  c,
		logger: logger.With().Str("component", "search").Logger(),
	}
}

// Search returns the hits for imdbID in languages and whether they came from the cache.
func (s *CachedSearcher) Search(ctx context.Context, imdbID string, languages []string) (*models.SearchResponse, bool, error) {
	key := Fingerprint(imdbID, languages)
	logger := s.logger.With().Str("imdb_id", imdbID).Str("fingerprint", key).Logger()

	if payload, ok := s.cache.Get(key); ok {
		var cached models.SearchResponse
		err := json.Unmarshal(payload, &cached)
		if err == nil {
			metrics.SearchesTotal.WithLabelValues("cache").Inc()
			logger.Debug().Int("hits", len(cached.Data)).Msg("Search served from cache")
			return &cached, true, nil
		}
		logger.Warn().Err(err).Msg("Discarding undecodable cache entry")
		s.cache.Invalidate(key)
	}

	response, err := s.inner.AuthenticateAndSearch(ctx, imdbID, languages)
	if err != nil {
		return nil, false, err
	}
	metrics.SearchesTotal.WithLabelValues("remote").Inc()

	payload, err := json.Marshal(response)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode search response for cache")
		return response, false, nil
	}
	s.cache.Set(key, payload)

	return response, false, nil
}
