package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrMalformedResponse means every attempt produced output that could
	// not be parsed into the expected shape.
	ErrMalformedResponse = errors.New("classifier returned malformed output on every attempt")

	// ErrAnomalousEmpty means every attempt returned zero items even though
	// the candidate set was non-empty and the contract requires each
	// candidate to land in a bucket.
	ErrAnomalousEmpty = errors.New("classifier returned no items for a non-empty candidate set")
)

const maxExtractAttempts = 5

// temperatureForAttempt maps a 1-based attempt number onto the sampling
// temperature for that attempt. The first attempt is deterministic and each
// retry raises randomness to escape a repeated failure mode.
func temperatureForAttempt(attempt int) float64 {
	if attempt <= 1 {
		return 0
	}
	t := float64(attempt-1) * 0.2
	if t > 1 {
		return 1
	}
	return t
}

// Extractor turns collected candidates into structured classification
// results, retrying with escalating temperature when the model output is
// malformed or anomalously empty.
type Extractor struct {
	completer Completer
	model     string
	logger    zerolog.Logger
}

func NewExtractor(completer Completer, model string, logger zerolog.Logger) *Extractor {
	return &Extractor{
		completer: completer,
		model:     model,
		logger:    logger,
	}
}

// AnalyzeCheck classifies check-run candidates. Every candidate must land in
// some item's indices, so an empty result against a non-empty candidate set
// is treated as a failed attempt.
func (e *Extractor) AnalyzeCheck(ctx context.Context, req CheckRequest) ([]CheckItem, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}

	system := checkSystemPrompt
	user := buildCheckUserPrompt(req)

	var items []CheckItem
	err := e.extract(ctx, system, user, false, func(payload []byte) (int, error) {
		parsed, err := validateCheckPayload(payload)
		if err != nil {
			return 0, err
		}
		if err := checkIndicesInRange(parsed, len(req.Candidates)); err != nil {
			return 0, err
		}
		items = parsed
		return len(parsed), nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AnalyzeBriefing classifies briefing-run candidates. On an update run an
// empty result is legitimate: it means nothing changed since the last run of
// the day.
func (e *Extractor) AnalyzeBriefing(ctx context.Context, req BriefingRequest) ([]BriefingItem, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}

	system := buildBriefingSystemPrompt(req)
	user := buildBriefingUserPrompt(req)
	allowEmpty := len(req.Existing) > 0

	var items []BriefingItem
	err := e.extract(ctx, system, user, allowEmpty, func(payload []byte) (int, error) {
		parsed, err := validateBriefingPayload(payload)
		if err != nil {
			return 0, err
		}
		if err := briefingIndicesInRange(parsed, len(req.Candidates), len(req.Existing)); err != nil {
			return 0, err
		}
		items = parsed
		return len(parsed), nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// extract runs the bounded attempt loop. The decode callback parses and
// validates one payload and reports how many items it yielded; a returned
// error marks the attempt as malformed.
func (e *Extractor) extract(ctx context.Context, system, user string, allowEmpty bool, decode func([]byte) (int, error)) error {
	var (
		sawMalformed bool
		sawEmpty     bool
		lastErr      error
	)

	for attempt := 1; attempt <= maxExtractAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		text, err := e.completer.Complete(ctx, CompleteRequest{
			Model:       e.model,
			System:      system,
			User:        user,
			Temperature: temperatureForAttempt(attempt),
		})
		if err != nil {
			lastErr = err
			e.logger.Warn().Err(err).Int("attempt", attempt).Msg("classification call failed")
			continue
		}

		payload, ok := extractJSONArray(text)
		if !ok {
			sawMalformed = true
			e.logger.Warn().Int("attempt", attempt).Msg("no JSON array in classifier output")
			continue
		}

		count, err := decode(payload)
		if err != nil {
			sawMalformed = true
			e.logger.Warn().Err(err).Int("attempt", attempt).Msg("classifier output failed validation")
			continue
		}

		if count == 0 && !allowEmpty {
			sawEmpty = true
			e.logger.Warn().Int("attempt", attempt).Msg("classifier returned empty result for non-empty input")
			continue
		}

		return nil
	}

	switch {
	case sawMalformed:
		return ErrMalformedResponse
	case sawEmpty:
		return ErrAnomalousEmpty
	case lastErr != nil:
		return fmt.Errorf("classification attempts exhausted: %w", lastErr)
	default:
		return ErrMalformedResponse
	}
}

func checkIndicesInRange(items []CheckItem, candidateCount int) error {
	for i, item := range items {
		if !item.Category.Valid() {
			return fmt.Errorf("item %d: unknown category %q", i, item.Category)
		}
		if err := indicesInRange(item.SourceIndices, candidateCount); err != nil {
			return fmt.Errorf("item %d source_indices: %w", i, err)
		}
		if err := indicesInRange(item.MergedIndices, candidateCount); err != nil {
			return fmt.Errorf("item %d merged_indices: %w", i, err)
		}
	}
	return nil
}

func briefingIndicesInRange(items []BriefingItem, candidateCount, existingCount int) error {
	for i, item := range items {
		if !item.Category.Valid() {
			return fmt.Errorf("item %d: unknown category %q", i, item.Category)
		}
		if err := indicesInRange(item.SourceIndices, candidateCount); err != nil {
			return fmt.Errorf("item %d source_indices: %w", i, err)
		}
		if err := indicesInRange(item.MergedIndices, candidateCount); err != nil {
			return fmt.Errorf("item %d merged_indices: %w", i, err)
		}
		if item.ExistingRef < 0 || item.ExistingRef > existingCount {
			return fmt.Errorf("item %d: existing_ref %d out of range", i, item.ExistingRef)
		}
	}
	return nil
}

func indicesInRange(indices []int, max int) error {
	for _, idx := range indices {
		if idx < 1 || idx > max {
			return fmt.Errorf("index %d out of range 1..%d", idx, max)
		}
	}
	return nil
}
