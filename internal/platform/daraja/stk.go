package daraja

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type stkPushRequest struct {
	BusinessShortCode string      `json:"BusinessShortCode"`
	Password          string      `json:"Password"`
	Timestamp         string      `json:"Timestamp"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber"`
	CallBackURL       string      `json:"CallBackURL"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous acknowledgement of a collection request.
// The two request ids correlate the eventual callback with our record.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResponse is the synchronous status poll result. ResultCode is absent
// while the push is still pending on the handset.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// ResultCodeValue parses the gateway's string result code. ok is false while
// the transaction has no final result yet.
func (r *STKQueryResponse) ResultCodeValue() (int, bool) {
	if r == nil || r.ResultCode == "" {
		return 0, false
	}
	code, err := strconv.Atoi(r.ResultCode)
	if err != nil {
		return 0, false
	}
	return code, true
}

// InitiateSTKPush prompts the payer's device to authorize the charge.
func (c *Client) InitiateSTKPush(ctx context.Context, phone, reference string, amount decimal.Decimal) (*STKPushResponse, error) {
	password, timestamp := stkPassword(c.cfg.ShortCode, c.cfg.Passkey, time.Now())
	req := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            json.Number(amount.String()),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   reference,
	}

	var resp STKPushResponse
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QuerySTKStatus polls the gateway for the outcome of an earlier push.
func (c *Client) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	password, timestamp := stkPassword(c.cfg.ShortCode, c.cfg.Passkey, time.Now())
	req := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var resp STKQueryResponse
	if err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
