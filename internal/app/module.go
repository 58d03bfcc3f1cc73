package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/havenpay/mpesa-bridge/internal/app/api/server"
	"github.com/havenpay/mpesa-bridge/internal/app/service/callbacklog"
	"github.com/havenpay/mpesa-bridge/internal/app/service/disbursement"
	"github.com/havenpay/mpesa-bridge/internal/app/service/notifier"
	"github.com/havenpay/mpesa-bridge/internal/app/service/payment"
	"github.com/havenpay/mpesa-bridge/internal/app/service/reconciler"
	"github.com/havenpay/mpesa-bridge/internal/app/service/retryqueue"
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
	"github.com/havenpay/mpesa-bridge/internal/platform/db"
	"github.com/havenpay/mpesa-bridge/pkg/config"
	"github.com/havenpay/mpesa-bridge/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	daraja.Module,
	store.Module,
	callbacklog.Module,
	notifier.Module,
	reconciler.Module,
	retryqueue.Module,
	payment.Module,
	disbursement.Module,
	server.Module,
)
