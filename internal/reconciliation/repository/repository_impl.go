package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *domain.Run) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (r *repo) FindRun(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Run, error) {
	var run domain.Run
	err := db.WithContext(ctx).Where("id = ?", id).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, filter domain.ReportFilter, afterID *snowflake.ID, limit int) ([]domain.Item, error) {
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Item{}), filter)
	if afterID != nil {
		stmt = stmt.Where("id > ?", *afterID)
	}

	var items []domain.Item
	if err := stmt.Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, filter domain.ReportFilter) (map[domain.ItemStatus]int64, error) {
	var rows []struct {
		Status domain.ItemStatus
		Total  int64
	}
	err := applyFilter(db.WithContext(ctx).Model(&domain.Item{}), filter).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.ItemStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func applyFilter(stmt *gorm.DB, filter domain.ReportFilter) *gorm.DB {
	if filter.RunID != nil {
		stmt = stmt.Where("run_id = ?", *filter.RunID)
	}
	if filter.Provider != nil {
		stmt = stmt.Where("provider = ?", *filter.Provider)
	}
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if ref := strings.TrimSpace(filter.Reference); ref != "" {
		stmt = stmt.Where("reference = ?", ref)
	}
	if filter.From != nil {
		stmt = stmt.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("created_at < ?", *filter.To)
	}
	return stmt
}
