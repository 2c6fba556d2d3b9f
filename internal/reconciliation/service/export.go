package service

import (
	"context"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	itemsSheet   = "Items"
	summarySheet = "Summary"
	exportBatch  = 500
)

var itemColumns = []string{
	"Item ID", "Run ID", "Provider", "Reference", "Payment Intent", "Provider Transaction",
	"Invoice", "Status", "Reason", "Details", "Created At",
}

// ExportReport writes every item matching filter to an XLSX workbook with an
// items sheet and a status summary sheet.
func (s *Service) ExportReport(ctx context.Context, filter domain.ReportFilter, w io.Writer) error {
	if err := validateFilter(filter); err != nil {
		return err
	}
	if err := s.authorize(ctx, filter.RequestedBy, authorization.ObjectReport, authorization.ActionReportExport); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn("close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return err
	}
	for col, title := range itemColumns {
		if err := setCell(f, itemsSheet, col+1, 1, title); err != nil {
			return err
		}
	}

	row := 2
	var after *snowflake.ID
	for {
		items, err := s.repo.ListItems(ctx, s.db, filter, after, exportBatch)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		for _, item := range items {
			if err := writeItemRow(f, row, item); err != nil {
				return err
			}
			row++
		}
		if len(items) < exportBatch {
			break
		}
		last := items[len(items)-1].ID
		after = &last
	}

	counts, err := s.repo.CountByStatus(ctx, s.db, filter)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	if err := setCell(f, summarySheet, 1, 1, "Status"); err != nil {
		return err
	}
	if err := setCell(f, summarySheet, 2, 1, "Count"); err != nil {
		return err
	}
	for i, status := range domain.ItemStatuses {
		if err := setCell(f, summarySheet, 1, i+2, string(status)); err != nil {
			return err
		}
		if err := setCell(f, summarySheet, 2, i+2, counts[status]); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeItemRow(f *excelize.File, row int, item domain.Item) error {
	values := []any{
		item.ID.String(),
		item.RunID.String(),
		string(item.Provider),
		item.Reference,
		idOrEmpty(item.PaymentIntentID),
		deref(item.ProviderTransactionID),
		idOrEmpty(item.InvoiceID),
		string(item.Status),
		string(item.Reason),
		item.Details,
		item.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
	for col, v := range values {
		if err := setCell(f, itemsSheet, col+1, row, v); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func idOrEmpty(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
