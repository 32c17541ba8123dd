package facture

import (
	"context"

	"facturation/internal/core/id"
)

// Repository persists submitted factures.
type Repository interface {
	// GetByID loads a facture with its lines ordered by line number.
	GetByID(ctx context.Context, docID id.ID) (*Facture, error)

	// Save inserts a new facture (assigning its number) or updates an existing one
	// under optimistic locking. Lines are replaced as a whole.
	Save(ctx context.Context, doc *Facture) error
}
