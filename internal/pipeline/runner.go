// Package pipeline drives one lookup from IMDB id to subtitle files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
	"github.com/Belphemur/opensubtitles-dl/internal/client"
	"github.com/Belphemur/opensubtitles-dl/internal/metrics"
	"github.com/Belphemur/opensubtitles-dl/internal/models"
	"github.com/Belphemur/opensubtitles-dl/internal/services"
)

// LockFileName is created in the subtitles root while hits are being written.
const LockFileName = ".opensubtitles.lock"

// Searcher returns the hits of a movie and whether they were cached.
type Searcher interface {
	Search(ctx context.Context, imdbID string, languages []string) (*models.SearchResponse, bool, error)
}

// UI is the console side of a run.
type UI interface {
	Prompt() (string, error)
	NoResults(languages []string, imdbID string)
	Hits(hits []models.SearchHit, fromCache bool)
	Hit(index int, hit models.SearchHit)
	Saved(file *models.SubtitleFile)
	HitFailed(index int, err error)
	Error(err error)
	Completed()
}

// Options configures a Runner.
type Options struct {
	Languages       []string
	Root            string // Subtitles root, also holds the lock file once hits are found
	MetricsTextfile string // Written after each run when set
}

// Runner executes lookups sequentially.
type Runner struct {
	searcher     Searcher
	materializer services.SubtitleMaterializer
	ui           UI
	opts         Options
	logger       zerolog.Logger

	state   State
	history []State
}

// NewRunner creates a runner.
func NewRunner(searcher Searcher, materializer services.SubtitleMaterializer, ui UI, opts Options, logger zerolog.Logger) *Runner {
	return &Runner{
		searcher:     searcher,
		materializer: materializer,
		ui:           ui,
		opts:         opts,
		logger:       logger,
		state:        StateIdle,
		history:      []State{StateIdle},
	}
}

// State returns the current state.
func (r *Runner) State() State {
	return r.state
}

// Run looks up imdbID, prompting for it when empty, and materializes every
// hit in order. A hit failure is recorded in the report and the run moves on.
// The returned error is fatal, the report is never nil.
func (r *Runner) Run(ctx context.Context, imdbID string) (*models.RunReport, error) {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Logger()
	report := &models.RunReport{Languages: r.opts.Languages}

	defer func() {
		r.transition(logger, StateTerminal)
		r.ui.Completed()
		r.writeMetrics(logger)
	}()

	err := r.run(ctx, logger, imdbID, report)
	if err != nil {
		r.ui.Error(err)
		logger.Error().Err(err).Str("kind", apperrors.KindOf(err).String()).Msg("Run aborted")
		return report, err
	}

	logger.Info().
		Str("imdb_id", report.IMDBID).
		Int("succeeded", report.Succeeded()).
		Int("failed", report.Failed()).
		Bool("from_cache", report.FromCache).
		Msg("Run finished")
	return report, nil
}

func (r *Runner) run(ctx context.Context, logger zerolog.Logger, rawID string, report *models.RunReport) error {
	if rawID == "" {
		r.transition(logger, StateAwaitingInput)
		var err error
		rawID, err = r.ui.Prompt()
		if err != nil {
			return apperrors.InvalidInput("read IMDB id", err)
		}
	}

	imdbID, err := client.NormalizeIMDBID(rawID)
	if err != nil {
		return err
	}
	report.IMDBID = imdbID

	r.transition(logger, StateSearching)
	response, fromCache, err := r.searcher.Search(ctx, imdbID, r.opts.Languages)
	if err != nil {
		return apperrors.AsFatal(err)
	}
	report.FromCache = fromCache

	if len(response.Data) == 0 {
		report.NotFound = apperrors.NewSubtitlesNotFoundError(imdbID)
		logger.Info().Err(report.NotFound).Strs("languages", r.opts.Languages).Msg("No subtitles found")
		r.transition(logger, StateNoResults)
		r.ui.NoResults(r.opts.Languages, imdbID)
		return nil
	}

	// The root is only created once there is something to write into it.
	unlock, err := r.lock()
	if err != nil {
		return err
	}
	defer unlock()

	r.transition(logger, StateProcessing)
	r.ui.Hits(response.Data, fromCache)

	for i, hit := range response.Data {
		if err := ctx.Err(); err != nil {
			return apperrors.AsFatal(fmt.Errorf("run interrupted: %w", err))
		}

		index := i + 1
		r.ui.Hit(index, hit)

		file, err := r.materializer.Materialize(ctx, hit)
		report.Outcomes = append(report.Outcomes, models.HitOutcome{Index: index, Hit: hit, File: file, Err: err})

		if err != nil {
			if apperrors.IsFatal(err) {
				return err
			}
			logger.Warn().Err(err).Int("index", index).Str("subtitle_id", hit.IDSubtitleFile).Msg("Subtitle failed")
			r.ui.HitFailed(index, err)
			continue
		}
		r.ui.Saved(file)
	}

	r.transition(logger, StateDone)
	return nil
}

// lock takes the single-instance lock in the subtitles root.
func (r *Runner) lock() (func(), error) {
	if err := os.MkdirAll(r.opts.Root, 0o755); err != nil {
		return nil, apperrors.AsFatal(apperrors.Filesystem("create subtitles root", err))
	}

	path := filepath.Join(r.opts.Root, LockFileName)
	fileLock := flock.New(path)

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, apperrors.AsFatal(apperrors.Filesystem("acquire run lock", err))
	}
	if !locked {
		return nil, apperrors.AsFatal(apperrors.Filesystem("acquire run lock", errors.New("another run is using "+r.opts.Root)))
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("Failed to release run lock")
		}
	}, nil
}

func (r *Runner) transition(logger zerolog.Logger, next State) {
	logger.Debug().Stringer("from", r.state).Stringer("to", next).Msg("State change")
	r.state = next
	r.history = append(r.history, next)
}

func (r *Runner) writeMetrics(logger zerolog.Logger) {
	if r.opts.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(r.opts.MetricsTextfile); err != nil {
		logger.Warn().Err(err).Str("path", r.opts.MetricsTextfile).Msg("Failed to write metrics textfile")
	}
}
