package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/havenpay/mpesa-bridge/internal/app/service/disbursement"
	"github.com/havenpay/mpesa-bridge/pkg/response"
)

type B2CSendRequest struct {
	PhoneNumber string          `json:"phone_number" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Remarks     string          `json:"remarks" binding:"required,max=100"`
	Occasion    string          `json:"occasion" binding:"omitempty,max=100"`
}

type B2CSendResponse struct {
	DisbursementID           string `json:"disbursement_id"`
	OriginatorConversationID string `json:"originator_conversation_id"`
	ConversationID           string `json:"conversation_id"`
	ResponseDescription      string `json:"response_description"`
}

// @Summary      Send B2C Payment
// @Description  Initiates a business-to-customer payout. The outcome arrives asynchronously through the result callback.
// @Tags         Disbursement
// @Accept       json
// @Produce      json
// @Param        request body handlers.B2CSendRequest true "Disbursement request"
// @Success      200  {object}  handlers.RespB2CSend
// @Router       /api/v1/mpesa/b2c/send [post]
func ApiB2CSend(svc *disbursement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req B2CSendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
			return
		}

		res, err := svc.Initiate(c.Request.Context(), disbursement.InitiateRequest{
			Phone:    req.PhoneNumber,
			Amount:   req.Amount,
			Remarks:  req.Remarks,
			Occasion: req.Occasion,
		})
		if err != nil {
			if errors.Is(err, disbursement.ErrValidation) {
				c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
				return
			}
			c.JSON(http.StatusBadGateway, response.Fail[any]("failed to send payment", err.Error()))
			return
		}

		c.JSON(http.StatusOK, response.OK("payment sent", &B2CSendResponse{
			DisbursementID:           res.DisbursementID,
			OriginatorConversationID: res.OriginatorConversationID,
			ConversationID:           res.ConversationID,
			ResponseDescription:      res.ResponseDescription,
		}))
	}
}

func RegisterB2CRoutes(r gin.IRouter, svc *disbursement.Service) {
	r.POST("/send", ApiB2CSend(svc))
}
