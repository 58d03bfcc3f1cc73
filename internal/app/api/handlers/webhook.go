package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/internal/app/service/reconciler"
	"github.com/havenpay/mpesa-bridge/internal/models"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
	"github.com/havenpay/mpesa-bridge/pkg/logctx"
	"github.com/havenpay/mpesa-bridge/pkg/response"
)

// Every webhook answers ResultCode 0 no matter what happened internally: a
// non-zero code makes the gateway re-deliver, and re-delivery cannot fix a
// malformed payload or a missing record. Recovery is the retry queue's job.

// @Summary      STK Push Callback
// @Description  Receives the asynchronous result of an STK push from the payment gateway.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.CallbackAck
// @Router       /api/v1/mpesa/callback [post]
func ApiSTKCallback(svc *reconciler.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)

		raw, err := c.GetRawData()
		if err != nil {
			lg.Errorw("stk_callback_read_failed", "err", err)
			c.JSON(http.StatusOK, response.Accepted("Callback received successfully"))
			return
		}

		var env daraja.STKCallbackEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			lg.Errorw("stk_callback_undecodable", "err", err)
			c.JSON(http.StatusOK, response.Accepted("Callback received successfully"))
			return
		}

		if _, err := svc.HandleSTKCallback(c.Request.Context(), &env, raw); err != nil {
			lg.Errorw("stk_callback_handle_error", "err", err)
		}
		c.JSON(http.StatusOK, response.Accepted("Callback received successfully"))
	}
}

func b2cWebhook(svc *reconciler.Service, log *zap.SugaredLogger, kind models.CallbackKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)

		raw, err := c.GetRawData()
		if err != nil {
			lg.Errorw("b2c_callback_read_failed", "kind", kind, "err", err)
			c.JSON(http.StatusOK, response.Accepted("Result received successfully"))
			return
		}

		var env daraja.B2CCallbackEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			lg.Errorw("b2c_callback_undecodable", "kind", kind, "err", err)
			c.JSON(http.StatusOK, response.Accepted("Result received successfully"))
			return
		}

		if _, err := svc.HandleB2CCallback(c.Request.Context(), kind, &env, raw); err != nil {
			lg.Errorw("b2c_callback_handle_error", "kind", kind, "err", err)
		}
		c.JSON(http.StatusOK, response.Accepted("Result received successfully"))
	}
}

// @Summary      B2C Result Callback
// @Description  Receives the final outcome of a disbursement from the payment gateway.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.CallbackAck
// @Router       /api/v1/mpesa/b2c/result [post]
func ApiB2CResult(svc *reconciler.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return b2cWebhook(svc, log, models.CallbackKindB2CResult)
}

// @Summary      B2C Queue Timeout Callback
// @Description  Receives the queue-timeout notification for a disbursement that expired in the gateway's queue.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.CallbackAck
// @Router       /api/v1/mpesa/b2c/queue [post]
func ApiB2CQueueTimeout(svc *reconciler.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return b2cWebhook(svc, log, models.CallbackKindB2CTimeout)
}

func RegisterWebhookRoutes(r gin.IRouter, svc *reconciler.Service, log *zap.SugaredLogger) {
	r.POST("/callback", ApiSTKCallback(svc, log))
	r.POST("/b2c/result", ApiB2CResult(svc, log))
	r.POST("/b2c/queue", ApiB2CQueueTimeout(svc, log))
}
