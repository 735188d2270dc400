package pipeline

import (
	"time"

	"go.uber.org/zap"

	apperrors "docgraph/backend/pkg/errors"
)

// Failure records one document that did not make it through the pipeline
type Failure struct {
	SourceLocation string              `json:"source_location"`
	Kind           apperrors.ErrorType `json:"kind"`
	Reason         string              `json:"reason"`
	// Retryable marks transient failures worth another run
	Retryable      bool                `json:"retryable"`
}

// Summary is the outcome of one run
type Summary struct {
	RunID      string        `json:"run_id"`
	Discovered int           `json:"discovered"`
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Failures   []Failure     `json:"failures"`
	Aborted    bool          `json:"aborted"`
	Stopped    bool          `json:"stopped"`
	Duration   time.Duration `json:"duration"`
}

// FailuresByKind counts failures per kind
func (s *Summary) FailuresByKind() map[apperrors.ErrorType]int {
	counts := make(map[apperrors.ErrorType]int)
	for _, f := range s.Failures {
		counts[f.Kind]++
	}
	return counts
}

func (s *Summary) log(log *zap.Logger) {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Int("discovered", s.Discovered),
		zap.Int("attempted", s.Attempted),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", len(s.Failures)),
		zap.Int("skipped", s.Skipped),
		zap.Bool("aborted", s.Aborted),
		zap.Bool("stopped", s.Stopped),
		zap.Duration("duration", s.Duration),
	}
	for kind, n := range s.FailuresByKind() {
		fields = append(fields, zap.Int("failed_"+string(kind), n))
	}
	log.Info("Run finished", fields...)

	for _, f := range s.Failures {
		log.Warn("Document failed",
			zap.String("run_id", s.RunID),
			zap.String("url", f.SourceLocation),
			zap.String("kind", string(f.Kind)),
			zap.String("reason", f.Reason),
			zap.Bool("retryable", f.Retryable),
		)
	}
}
