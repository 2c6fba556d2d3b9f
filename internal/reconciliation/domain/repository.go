package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRun(ctx context.Context, db *gorm.DB, run *Run) error
	InsertItems(ctx context.Context, db *gorm.DB, items []Item) error
	FindRun(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Run, error)
	// ListItems returns up to limit items ordered by id, starting after afterID when set.
	ListItems(ctx context.Context, db *gorm.DB, filter ReportFilter, afterID *snowflake.ID, limit int) ([]Item, error)
	CountByStatus(ctx context.Context, db *gorm.DB, filter ReportFilter) (map[ItemStatus]int64, error)
}
