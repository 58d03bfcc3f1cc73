package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/docs"
	"github.com/havenpay/mpesa-bridge/internal/app/api/handlers"
	mw "github.com/havenpay/mpesa-bridge/internal/app/api/middleware"
	"github.com/havenpay/mpesa-bridge/internal/app/service/disbursement"
	"github.com/havenpay/mpesa-bridge/internal/app/service/payment"
	"github.com/havenpay/mpesa-bridge/internal/app/service/reconciler"
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	cfgpkg "github.com/havenpay/mpesa-bridge/pkg/config"
	metrics "github.com/havenpay/mpesa-bridge/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request tracing only; request logger and access log attach per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(
	r *gin.Engine,
	log *zap.SugaredLogger,
	cfg *cfgpkg.Config,
	paySvc *payment.Service,
	disbSvc *disbursement.Service,
	recSvc *reconciler.Service,
	storeSvc *store.Service,
) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	// Client-facing payment APIs and gateway webhooks share the /mpesa prefix,
	// matching the URLs registered with the gateway portal.
	mpesa := apiV1.Group("/mpesa")
	handlers.RegisterPaymentRoutes(mpesa, paySvc)
	handlers.RegisterB2CRoutes(mpesa.Group("/b2c"), disbSvc)
	handlers.RegisterWebhookRoutes(mpesa, recSvc, log)

	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), storeSvc)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
