package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"github.com/smallbiznis/paysettle/pkg/db/pagination"
)

// GetReconciliationReport pages through items in id order with status counts
// over the whole filter.
func (s *Service) GetReconciliationReport(ctx context.Context, filter domain.ReportFilter, page pagination.Pagination) (*domain.Report, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, filter.RequestedBy, authorization.ObjectReport, authorization.ActionReportView); err != nil {
		return nil, err
	}

	var after *snowflake.ID
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPageToken, err)
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPageToken, err)
		}
		after = &id
	}

	limit := page.Limit()
	rows, err := s.repo.ListItems(ctx, s.db, filter, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items, info, err := pagination.Trim(rows, limit, func(item domain.Item) string { return item.ID.String() })
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByStatus(ctx, s.db, filter)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	for _, status := range domain.ItemStatuses {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}

	return &domain.Report{Items: items, Counts: counts, PageInfo: info}, nil
}

func validateFilter(filter domain.ReportFilter) error {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return fmt.Errorf("%w: status %q", domain.ErrInvalidFilter, status)
		}
	}
	if filter.Provider != nil && !filter.Provider.Valid() {
		return fmt.Errorf("%w: provider %q", domain.ErrInvalidFilter, *filter.Provider)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return fmt.Errorf("%w: empty created_at range", domain.ErrInvalidFilter)
	}
	return nil
}
