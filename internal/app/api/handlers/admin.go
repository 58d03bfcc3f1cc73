package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/pkg/response"
	"github.com/havenpay/mpesa-bridge/pkg/types"
)

// ListRequest is the shared paginated/filterable listing request for all
// admin endpoints.
type ListRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

func (r *ListRequest) toScan() *store.ScanRequest {
	return &store.ScanRequest{Filters: r.Filters, From: r.From, Size: r.Size, SortBy: r.SortBy, SortOrder: r.SortOrder}
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of collection records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.ListRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/payments/list [post]
func ApiListPayments(svc *store.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
			return
		}
		res, err := svc.ScanPayments(c.Request.Context(), req.toScan())
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.Fail[any]("failed to list payments", err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OK("payments", res))
	}
}

// @Summary      List Disbursements (Admin)
// @Description  Retrieves a paginated and filterable list of payout records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.ListRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListDisbursements
// @Router       /api/v1/admin/disbursements/list [post]
func ApiListDisbursements(svc *store.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
			return
		}
		res, err := svc.ScanDisbursements(c.Request.Context(), req.toScan())
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.Fail[any]("failed to list disbursements", err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OK("disbursements", res))
	}
}

// @Summary      List Callback Retries (Admin)
// @Description  Retrieves deferred callback entries, typically filtered on status=dead for manual review.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.ListRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListRetries
// @Router       /api/v1/admin/retries/list [post]
func ApiListRetries(svc *store.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Fail[any]("invalid request", err.Error()))
			return
		}
		res, err := svc.ScanRetries(c.Request.Context(), req.toScan())
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.Fail[any]("failed to list retries", err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OK("retries", res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc *store.Service) {
	r.POST("/payments/list", ApiListPayments(svc))
	r.POST("/disbursements/list", ApiListDisbursements(svc))
	r.POST("/retries/list", ApiListRetries(svc))
}
