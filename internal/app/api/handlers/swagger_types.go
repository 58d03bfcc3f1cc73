package handlers

import (
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/models"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// RespPay wraps PayResponse in the standard envelope.
type RespPay struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    PayResponse `json:"data"`
}

// RespStatus wraps StatusResponse in the standard envelope.
type RespStatus struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    StatusResponse `json:"data"`
}

// RespB2CSend wraps B2CSendResponse in the standard envelope.
type RespB2CSend struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    B2CSendResponse `json:"data"`
}

// RespListPayments wraps a payment listing in the standard envelope.
type RespListPayments struct {
	Success bool                                      `json:"success"`
	Message string                                    `json:"message"`
	Data    store.ScanResponse[models.PaymentRequest] `json:"data"`
}

// RespListDisbursements wraps a disbursement listing in the standard envelope.
type RespListDisbursements struct {
	Success bool                                           `json:"success"`
	Message string                                         `json:"message"`
	Data    store.ScanResponse[models.DisbursementRequest] `json:"data"`
}

// RespListRetries wraps a callback retry listing in the standard envelope.
type RespListRetries struct {
	Success bool                                     `json:"success"`
	Message string                                   `json:"message"`
	Data    store.ScanResponse[models.CallbackRetry] `json:"data"`
}
