package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/paysettle/internal/invoice/format"
	"github.com/smallbiznis/paysettle/pkg/db"
	"gorm.io/gorm"
)

// NextInvoiceNumber allocates the next number for the current year in its own
// serializable transaction.
func (s *Service) NextInvoiceNumber(ctx context.Context) (string, error) {
	var number string
	err := db.RunSerializable(ctx, s.db, func(tx *gorm.DB) error {
		n, err := s.NextInvoiceNumberInTx(ctx, tx)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

// NextInvoiceNumberInTx allocates inside tx. The number is consumed only if tx commits.
func (s *Service) NextInvoiceNumberInTx(ctx context.Context, tx *gorm.DB) (string, error) {
	now := s.clock.Now()
	seq, err := s.repo.IncrementSequence(ctx, tx, now.Year(), now)
	if err != nil {
		return "", fmt.Errorf("increment invoice sequence: %w", err)
	}

	number, err := format.FormatInvoiceNumber(s.template, now, seq)
	if err != nil {
		return "", err
	}
	return number, nil
}
