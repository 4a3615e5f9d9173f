package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
	"go.uber.org/zap"
)

// CancellationResumer finishes interrupted invoice cancellations
type CancellationResumer interface {
	ResumeCancellation(ctx context.Context, userID, invoiceID uuid.UUID) (*invoicing.CancelInvoiceResponse, error)
}

// ReleaseExecutor runs release jobs against the settlement service
type ReleaseExecutor struct {
	resumer CancellationResumer
	logger  *zap.Logger
}

// NewReleaseExecutor creates a new release executor
func NewReleaseExecutor(resumer CancellationResumer, logger *zap.Logger) *ReleaseExecutor {
	return &ReleaseExecutor{resumer: resumer, logger: logger}
}

// Execute implements JobExecutor
func (e *ReleaseExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Kind != JobKindReleaseCancelledInvoice {
		return fmt.Errorf("unsupported job kind %q", job.Kind)
	}

	resp, err := e.resumer.ResumeCancellation(ctx, job.UserID, job.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to release payments of invoice %s: %w", job.Number, err)
	}
	if resp.ReleasedPayments > 0 {
		e.logger.Info("Released payments of cancelled invoice",
			zap.String("document_id", job.DocumentID.String()),
			zap.String("number", job.Number),
			zap.Int("released", resp.ReleasedPayments),
		)
	}
	return nil
}
