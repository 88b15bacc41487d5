package ports

import (
	"context"

	"github.com/alejandrodnm/polysim/internal/domain"
)

// DecisionStore persists decision records so evaluation metrics survive
// restarts.
type DecisionStore interface {
	SaveDecision(ctx context.Context, record *domain.DecisionRecord) error
	LoadDecisions(ctx context.Context) ([]*domain.DecisionRecord, error)
	Close() error
}
