package classifier

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/types"
)

// Fallback tries the primary classifier and degrades to the secondary
// when it fails. With a Heuristic secondary, classification always
// produces a result: remote unavailability is recovered here and never
// surfaced to callers.
type Fallback struct {
	primary   Classifier
	secondary Classifier
	logger    zerolog.Logger
}

// NewFallback composes primary over secondary
func NewFallback(primary, secondary Classifier, logger zerolog.Logger) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "classifier").Logger(),
	}
}

func (f *Fallback) Classify(ctx context.Context, fileName string, headers []string, sampleRows [][]string) (types.ClassifiedBatch, error) {
	batch, err := f.primary.Classify(ctx, fileName, headers, sampleRows)
	if err == nil {
		return batch, nil
	}

	f.logger.Warn().Err(err).Str("file", fileName).Msg("remote classifier unavailable, using heuristic")
	return f.secondary.Classify(ctx, fileName, headers, sampleRows)
}
