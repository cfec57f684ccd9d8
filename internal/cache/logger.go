package cache

import "github.com/rs/zerolog"

// zerologAdapter reports backend failures at warn level: a failing cache
// degrades to a miss and the run continues.
type zerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger to the cache Logger interface.
func NewZerologLogger(logger zerolog.Logger) Logger {
	return zerologAdapter{logger: logger.With().Str("component", "cache").Logger()}
}

func (z zerologAdapter) Error(msg string, err error) {
	z.logger.Warn().Err(err).Msg(msg)
}
