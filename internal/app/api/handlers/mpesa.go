package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/havenpay/mpesa-bridge/internal/app/service/payment"
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/pkg/response"
)

type PayRequest struct {
	Phone     string          `json:"phone" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reference string          `json:"reference"`
}

type PayResponse struct {
	PaymentID         string `json:"payment_id"`
	Reference         string `json:"reference"`
	MerchantRequestID string `json:"merchant_request_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	CustomerMessage   string `json:"customer_message"`
}

// @Summary      Initiate STK Push
// @Description  Pushes a payment authorization prompt to the customer's handset and records a pending payment.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.PayRequest true "Payment initiation request"
// @Success      200  {object}  handlers.RespPay
// @Router       /api/v1/mpesa/pay [post]
func ApiPay(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
			return
		}

		res, err := svc.Initiate(c.Request.Context(), payment.InitiateRequest{
			Phone:     req.Phone,
			Amount:    req.Amount,
			Reference: req.Reference,
		})
		if err != nil {
			if errors.Is(err, payment.ErrValidation) {
				c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
				return
			}
			c.JSON(http.StatusBadGateway, response.Fail[any]("failed to initiate payment", err.Error()))
			return
		}

		c.JSON(http.StatusOK, response.OK("STK push initiated", &PayResponse{
			PaymentID:         res.PaymentID,
			Reference:         res.Reference,
			MerchantRequestID: res.MerchantRequestID,
			CheckoutRequestID: res.CheckoutRequestID,
			CustomerMessage:   res.CustomerMessage,
		}))
	}
}

type StatusResponse struct {
	Reference          string `json:"reference"`
	Status             string `json:"status"`
	MpesaReceiptNumber string `json:"mpesa_receipt_number,omitempty"`
	Amount             string `json:"amount"`
	TransactionDate    string `json:"transaction_date,omitempty"`
	ResultCode         *int   `json:"result_code,omitempty"`
	ResultDesc         string `json:"result_desc,omitempty"`
	// Degraded is set when the gateway poll failed and the answer reflects
	// local state only.
	Degraded bool `json:"degraded,omitempty"`
}

// @Summary      Check Payment Status
// @Description  Reports the state of a payment by reference, polling the gateway for pending records.
// @Tags         Payment
// @Produce      json
// @Param        reference path string true "Payment reference"
// @Success      200  {object}  handlers.RespStatus
// @Router       /api/v1/mpesa/status/{reference} [get]
func ApiPaymentStatus(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		reference := c.Param("reference")
		if reference == "" {
			reference = c.Query("reference")
		}
		if reference == "" {
			c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", "reference is required"))
			return
		}

		res, err := svc.CheckStatus(c.Request.Context(), reference)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.Fail[any]("payment not found", ""))
				return
			}
			if errors.Is(err, payment.ErrValidation) {
				c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
				return
			}
			c.JSON(http.StatusInternalServerError, response.Fail[any]("failed to check status", err.Error()))
			return
		}

		p := res.Payment
		out := &StatusResponse{
			Reference:  p.Reference,
			Status:     string(p.Status),
			Amount:     p.Amount.String(),
			ResultCode: p.ResultCode,
			Degraded:   res.Degraded,
		}
		if p.MpesaReceiptNumber != nil {
			out.MpesaReceiptNumber = *p.MpesaReceiptNumber
		}
		if p.TransactionDate != nil {
			out.TransactionDate = *p.TransactionDate
		}
		if p.ResultDesc != nil {
			out.ResultDesc = *p.ResultDesc
		}
		c.JSON(http.StatusOK, response.OK("payment status", out))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc *payment.Service) {
	r.POST("/pay", ApiPay(svc))
	r.GET("/status", ApiPaymentStatus(svc))
	r.GET("/status/:reference", ApiPaymentStatus(svc))
}
