package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/pkg/types"
)

// ScanRequest is the paginated/filtered listing request used by admin pages.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse[T any] struct {
	Items []*T  `json:"items"`
	Total int64 `json:"total"`
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func scan[T any](ctx context.Context, s *Service, req *ScanRequest) (*ScanResponse[T], error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	var model T
	tx := s.db.WithContext(ctx).Model(&model)
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}

	var rows []*T
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return &ScanResponse[T]{Items: rows, Total: total}, nil
}

// ScanPayments implements paginated/admin listing with filters.
func (s *Service) ScanPayments(ctx context.Context, req *ScanRequest) (*ScanResponse[models.PaymentRequest], error) {
	return scan[models.PaymentRequest](ctx, s, req)
}

func (s *Service) ScanDisbursements(ctx context.Context, req *ScanRequest) (*ScanResponse[models.DisbursementRequest], error) {
	return scan[models.DisbursementRequest](ctx, s, req)
}

// ScanRetries lists deferred callback entries, typically filtered on
// status=dead for manual review.
func (s *Service) ScanRetries(ctx context.Context, req *ScanRequest) (*ScanResponse[models.CallbackRetry], error) {
	return scan[models.CallbackRetry](ctx, s, req)
}
