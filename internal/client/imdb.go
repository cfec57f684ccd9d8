package client

import (
	"fmt"
	"strings"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
)

// NormalizeIMDBID accepts "0133093" or "tt0133093" and returns the digits.
func NormalizeIMDBID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if len(id) >= 2 && strings.EqualFold(id[:2], "tt") {
		id = id[2:]
	}

	if id == "" {
		return "", apperrors.InvalidInput("NormalizeIMDBID", fmt.Errorf("empty IMDB id"))
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", apperrors.InvalidInput("NormalizeIMDBID", fmt.Errorf("invalid IMDB id %q", raw))
		}
	}

	return id, nil
}
