// Package extract turns raw file content into type-tagged insights.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
)

// DefaultMaxBytes bounds how much of a file is read for extraction.
const DefaultMaxBytes int64 = 100 * 1024 * 1024

var errTooLarge = errors.New("content exceeds extraction limit")

// Segment is one utterance of a transcribed recording. Start is in seconds.
type Segment struct {
	SpeakerID   string
	SpeakerName string
	Start       float64
	Text        string
}

// Transcriber converts audio to timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, audio []byte) ([]Segment, error)
}

// NopTranscriber produces no segments.
type NopTranscriber struct{}

func (NopTranscriber) Transcribe(context.Context, string, []byte) ([]Segment, error) {
	return nil, nil
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTranscriber sets the speech-to-text backend for audio files.
func WithTranscriber(t Transcriber) Option {
	return func(e *Extractor) { e.transcriber = t }
}

// WithMaxBytes overrides the read limit.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) { e.maxBytes = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// Extractor produces an Insight for each supported strategy.
type Extractor struct {
	transcriber Transcriber
	maxBytes    int64
	log         *zap.Logger
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		transcriber: NopTranscriber{},
		maxBytes:    DefaultMaxBytes,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract reads r and builds the insight for strategy. Every failure is an
// *domain.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, fileID uuid.UUID, strategy domain.Strategy, name string, r io.Reader) (domain.Insight, error) {
	fail := func(err error) (domain.Insight, error) {
		e.log.Debug("extract.Extract: failed",
			zap.String("file_id", fileID.String()),
			zap.String("strategy", string(strategy)),
			zap.Error(err))
		return nil, &domain.ExtractionError{FileID: fileID, Strategy: strategy, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return fail(fmt.Errorf("reading content: %w", err))
	}
	if int64(len(data)) > e.maxBytes {
		return fail(errTooLarge)
	}

	var in domain.Insight
	switch strategy {
	case domain.StrategyPDF:
		in, err = extractPDF(data)
	case domain.StrategyDocx:
		in, err = extractDocx(data)
	case domain.StrategySpreadsheet:
		in, err = extractSpreadsheet(data)
	case domain.StrategyCSV:
		in, err = extractCSV(data)
	case domain.StrategyJSON:
		in, err = extractJSON(data)
	case domain.StrategyAudio:
		in, err = e.extractAudio(ctx, name, data)
	default:
		err = fmt.Errorf("%w: strategy %q", domain.ErrUnsupportedType, strategy)
	}
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	e.log.Debug("extract.Extract: done",
		zap.String("file_id", fileID.String()),
		zap.String("strategy", string(strategy)),
		zap.Int("bytes", len(data)),
		zap.Int("metrics", len(in.Metrics())))
	return in, nil
}
