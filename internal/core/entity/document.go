package entity

import (
	"context"
	"time"

	"facturation/internal/core/apperror"
)

// Document is the base type for business transactions such as factures.
type Document struct {
	BaseDocument

	// Number is the document number (assigned by the backend on first save)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID dated today.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// IsNew reports whether the document has never been persisted.
func (d *Document) IsNew() bool {
	return d.Number == ""
}
