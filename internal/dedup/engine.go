// internal/dedup/engine.go
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"registry-workers/internal/common/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultThreshold       = 0.8
	DefaultMaxResults      = 10
	DefaultObserverTimeout = 2 * time.Second

	tracerName = "registry-workers/internal/dedup"
)

var (
	// ErrInvalidRequest is wrapped by every request validation failure.
	ErrInvalidRequest = errors.New("invalid match request")
	// ErrCorpusUnavailable is wrapped by the ScanError of a check whose
	// corpus could not be loaded.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
)

// CorpusProvider serves the stored records of one entity type. The returned
// slice is a snapshot: the caller may read it freely and it must not change
// underneath a scan.
type CorpusProvider interface {
	RecordsForType(ctx context.Context, entityType string) ([]Entry, error)
}

// MatchRequest asks whether Record duplicates any stored record of
// EntityType. Build it with NewMatchRequest to get the defaults.
type MatchRequest struct {
	EntityType     string    `json:"entityType"`
	Record         Record    `json:"record"`
	MatchFields    []string  `json:"matchFields,omitempty"`
	Threshold      float64   `json:"threshold"`
	MaxResults     int       `json:"maxResults"`
	IncludePartial bool      `json:"includePartial"`
	Algorithm      Algorithm `json:"algorithm"`
}

func NewMatchRequest(entityType string, record Record) MatchRequest {
	return MatchRequest{
		EntityType:     entityType,
		Record:         record,
		Threshold:      DefaultThreshold,
		MaxResults:     DefaultMaxResults,
		IncludePartial: true,
		Algorithm:      AlgorithmFuzzy,
	}
}

// Validate checks the request and fills a zero MaxResults with the default.
func (r *MatchRequest) Validate() error {
	if strings.TrimSpace(r.EntityType) == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidRequest)
	}
	if r.Record == nil {
		return fmt.Errorf("%w: record is required", ErrInvalidRequest)
	}
	if r.Threshold < 0 || r.Threshold > 1 {
		return fmt.Errorf("%w: threshold %.3f outside [0,1]", ErrInvalidRequest, r.Threshold)
	}
	if r.MaxResults < 0 {
		return fmt.Errorf("%w: maxResults must not be negative", ErrInvalidRequest)
	}
	if r.MaxResults == 0 {
		r.MaxResults = DefaultMaxResults
	}
	return nil
}

// MatchResult is the decision for one MatchRequest. A failed scan still
// yields a well-formed result with Recommendation ERROR.
type MatchResult struct {
	HasDuplicates    bool             `json:"hasDuplicates"`
	TotalMatches     int              `json:"totalMatches"`
	Matches          []DuplicateMatch `json:"matches"`
	Recommendation   Recommendation   `json:"recommendation"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	ProcessedAt      time.Time        `json:"processedAt"`
	RequestID        string           `json:"requestId"`
	EntityType       string           `json:"entityType"`
	Algorithm        Algorithm        `json:"algorithm"`
	Threshold        float64          `json:"threshold"`
	MaxResults       int              `json:"maxResults"`
	Error            string           `json:"error,omitempty"`
}

// TopMatch returns the best match, or nil.
func (r *MatchResult) TopMatch() *DuplicateMatch {
	if r == nil || len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// EngineOptions wires an Engine. ObserverTimeout bounds each observer call;
// zero means DefaultObserverTimeout.
type EngineOptions struct {
	Corpus          CorpusProvider
	Logger          logger.Logger
	Observers       []ScanObserver
	ObserverTimeout time.Duration
	Tracer          trace.Tracer
	Clock           func() time.Time
}

// Engine runs duplicate checks against a corpus provider. It keeps no per
// request state and is safe for concurrent use.
type Engine struct {
	corpus          CorpusProvider
	logger          logger.Logger
	observers       []ScanObserver
	observerTimeout time.Duration
	tracer          trace.Tracer
	now             func() time.Time
}

func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		corpus:          opts.Corpus,
		logger:          opts.Logger,
		observers:       opts.Observers,
		observerTimeout: opts.ObserverTimeout,
		tracer:          opts.Tracer,
		now:             opts.Clock,
	}
	if e.observerTimeout <= 0 {
		e.observerTimeout = DefaultObserverTimeout
	}
	if e.logger == nil {
		e.logger = logger.NewNoOpLogger()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Check loads the corpus for req.EntityType and scans it. An invalid request
// returns an error wrapping ErrInvalidRequest and no result. Any other
// failure returns an ERROR result together with a *ScanError.
func (e *Engine) Check(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.corpus == nil {
		return e.run(ctx, req, nil, &ScanError{Err: fmt.Errorf("%w: no corpus provider configured", ErrCorpusUnavailable)})
	}

	corpus, err := e.corpus.RecordsForType(ctx, req.EntityType)
	if err != nil {
		return e.run(ctx, req, nil, &ScanError{Err: fmt.Errorf("%w: load corpus for %s: %w", ErrCorpusUnavailable, req.EntityType, err)})
	}
	return e.run(ctx, req, corpus, nil)
}

// CheckSnapshot is Check against an already loaded corpus.
func (e *Engine) CheckSnapshot(ctx context.Context, req MatchRequest, corpus []Entry) (*MatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, req, corpus, nil)
}

func (e *Engine) run(ctx context.Context, req MatchRequest, corpus []Entry, loadErr error) (*MatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "dedup.Engine.Check", trace.WithAttributes(
		attribute.String("dedup.entity_type", req.EntityType),
		attribute.String("dedup.algorithm", req.Algorithm.String()),
		attribute.Float64("dedup.threshold", req.Threshold),
		attribute.Int("dedup.corpus_size", len(corpus)),
	))
	defer span.End()

	start := e.now()
	result := &MatchResult{
		Matches:    []DuplicateMatch{},
		RequestID:  uuid.New().String(),
		EntityType: req.EntityType,
		Algorithm:  req.Algorithm,
		Threshold:  req.Threshold,
		MaxResults: req.MaxResults,
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"request_id":  result.RequestID,
		"entity_type": req.EntityType,
		"algorithm":   req.Algorithm.String(),
	})

	scanErr := loadErr
	if scanErr == nil {
		matches, err := Scan(req, corpus)
		if err != nil {
			scanErr = err
		} else {
			result.Matches = matches
			result.TotalMatches = len(matches)
			result.HasDuplicates = len(matches) > 0
			result.Recommendation = Recommend(matches, req.Threshold)
		}
	}

	if scanErr != nil {
		result.Recommendation = RecommendError
		result.Error = scanErr.Error()
		span.RecordError(scanErr)
		span.SetStatus(codes.Error, "duplicate scan failed")
		log.Error("Duplicate scan failed", map[string]interface{}{
			"error": scanErr.Error(),
		})
	}

	finished := e.now()
	elapsed := finished.Sub(start)
	result.ProcessingTimeMs = elapsed.Milliseconds()
	result.ProcessedAt = finished.UTC()

	span.SetAttributes(
		attribute.Int("dedup.total_matches", result.TotalMatches),
		attribute.String("dedup.recommendation", string(result.Recommendation)),
	)

	if scanErr == nil {
		log.Debug("Duplicate scan completed", map[string]interface{}{
			"total_matches":  result.TotalMatches,
			"recommendation": result.Recommendation,
			"corpus_size":    len(corpus),
			"duration_ms":    result.ProcessingTimeMs,
		})
	}

	e.notify(ctx, log, ScanEvent{
		RequestID:      result.RequestID,
		EntityType:     req.EntityType,
		Algorithm:      req.Algorithm,
		Recommendation: result.Recommendation,
		TotalMatches:   result.TotalMatches,
		TopMatch:       result.TopMatch(),
		CorpusSize:     len(corpus),
		Duration:       elapsed,
		ProcessedAt:    result.ProcessedAt,
		Err:            scanErr,
	})

	if scanErr != nil {
		var se *ScanError
		if !errors.As(scanErr, &se) {
			scanErr = &ScanError{Err: scanErr}
		}
		return result, scanErr
	}
	return result, nil
}

// notify runs every observer on a context detached from the job's
// cancellation and limited to observerTimeout.
func (e *Engine) notify(ctx context.Context, log logger.Logger, event ScanEvent) {
	base := context.WithoutCancel(ctx)
	for _, obs := range e.observers {
		obsCtx, cancel := context.WithTimeout(base, e.observerTimeout)
		err := observeSafely(obsCtx, obs, event)
		cancel()
		if err != nil {
			log.Warn("Scan observer failed", map[string]interface{}{
				"observer": fmt.Sprintf("%T", obs),
				"error":    err.Error(),
			})
		}
	}
}

func observeSafely(ctx context.Context, obs ScanObserver, event ScanEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return obs.ObserveScan(ctx, event)
}
