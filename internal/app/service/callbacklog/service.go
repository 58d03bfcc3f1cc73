package callbacklog

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/pkg/logctx"
	"github.com/havenpay/mpesa-bridge/pkg/tool"
)

// Service persists the raw callback audit trail. Saves run off the request
// path; a failed audit write must never affect callback handling.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a callback log entry. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.CallbackLog) {
	go func() {
		if entry == nil {
			return
		}
		if entry.ID == "" {
			entry.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save callback log: %v", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(New),
)
