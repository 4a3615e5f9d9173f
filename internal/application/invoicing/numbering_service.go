package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// maxSequenceAttempts bounds retries of a counter increment that lost a
// first-insert race against another transaction.
const maxSequenceAttempts = 3

// NumberingService issues per-user sequential identifiers and document numbers.
// A number is always issued before the record that carries it is saved, so a
// failed save leaves a gap and a number is never handed out twice.
type NumberingService struct {
	sequences invoicing.SequenceRepository
	policy    invoicing.SequenceResetPolicy
	padding   int
	logger    *zap.Logger
}

// NewNumberingService creates a new NumberingService
func NewNumberingService(sequences invoicing.SequenceRepository, policy invoicing.SequenceResetPolicy, padding int, log *zap.Logger) *NumberingService {
	if !policy.IsValid() {
		policy = invoicing.SequenceResetNever
	}
	if padding <= 0 {
		padding = invoicing.DefaultNumberPadding
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NumberingService{
		sequences: sequences,
		policy:    policy,
		padding:   padding,
		logger:    log,
	}
}

// NextID returns the next value of the kind counter for userID.
// Document-number kinds follow the configured reset policy for the current year.
func (s *NumberingService) NextID(ctx context.Context, userID uuid.UUID, kind invoicing.SequenceKind) (int64, error) {
	if !kind.IsValid() {
		return 0, shared.NewDomainErrorWithDetails(shared.CodeInvalidInput, "Invalid sequence kind", map[string]any{"kind": string(kind)})
	}
	return s.next(ctx, userID, invoicing.SequenceKey(kind, s.policy, time.Now().Year()))
}

// NextDocumentNumber issues the next number for a document dated date,
// e.g. INV-2026-00042, together with the raw sequence value.
func (s *NumberingService) NextDocumentNumber(ctx context.Context, userID uuid.UUID, docType invoicing.DocumentType, date time.Time) (string, int64, error) {
	if !docType.IsValid() {
		return "", 0, shared.NewDomainError(shared.CodeInvalidInput, "Invalid document type")
	}
	year := date.Year()
	seq, err := s.next(ctx, userID, invoicing.SequenceKey(docType.SequenceKind(), s.policy, year))
	if err != nil {
		return "", 0, err
	}
	return invoicing.FormatDocumentNumber(docType.NumberPrefix(), year, seq, s.padding), seq, nil
}

func (s *NumberingService) next(ctx context.Context, userID uuid.UUID, key string) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering", "next")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrUserID, userID,
		telemetry.SpanAttrSequenceKey, key,
	)

	var lastErr error
	for attempt := 1; attempt <= maxSequenceAttempts; attempt++ {
		value, err := s.sequences.Next(ctx, userID, key)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			break
		}
		logger.WithLogger(ctx, s.logger).Warn("sequence increment conflicted, retrying",
			zap.String("sequence_key", key),
			zap.Int("attempt", attempt),
		)
	}

	telemetry.RecordError(span, lastErr)
	return 0, fmt.Errorf("failed to allocate %s number: %w", key, lastErr)
}
