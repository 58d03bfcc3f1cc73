package daraja

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type b2cRequest struct {
	OriginatorConversationID string      `json:"OriginatorConversationID"`
	InitiatorName            string      `json:"InitiatorName"`
	SecurityCredential       string      `json:"SecurityCredential"`
	CommandID                string      `json:"CommandID"`
	Amount                   json.Number `json:"Amount"`
	PartyA                   string      `json:"PartyA"`
	PartyB                   string      `json:"PartyB"`
	Remarks                  string      `json:"Remarks"`
	QueueTimeOutURL          string      `json:"QueueTimeOutURL"`
	ResultURL                string      `json:"ResultURL"`
	Occasion                 string      `json:"Occasion"`
}

// B2CResponse acknowledges a disbursement request. The gateway's
// ConversationID arrives here, but the final outcome only comes through the
// asynchronous result callback.
type B2CResponse struct {
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ConversationID           string `json:"ConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// CommandIDBusinessPayment is the default B2C command.
const CommandIDBusinessPayment = "BusinessPayment"

// InitiateB2C posts a business-to-customer payment. originatorID must be
// generated (and persisted) by the caller before this call, since it is the
// only correlation key available if the call times out.
func (c *Client) InitiateB2C(ctx context.Context, originatorID, phone string, amount decimal.Decimal, remarks, occasion string) (*B2CResponse, error) {
	password := c.cfg.InitiatorPassword
	if password == "" {
		password = initiatorPassword(c.cfg.ShortCode, c.cfg.Passkey, time.Now())
	}
	credential, err := c.cred.Encrypt(password)
	if err != nil {
		return nil, err
	}

	req := b2cRequest{
		OriginatorConversationID: originatorID,
		InitiatorName:            c.cfg.InitiatorName,
		SecurityCredential:       credential,
		CommandID:                CommandIDBusinessPayment,
		Amount:                   json.Number(amount.String()),
		PartyA:                   c.cfg.ShortCode,
		PartyB:                   phone,
		Remarks:                  remarks,
		QueueTimeOutURL:          c.cfg.QueueTimeoutURL,
		ResultURL:                c.cfg.ResultURL,
		Occasion:                 occasion,
	}

	var resp B2CResponse
	if err := c.postJSON(ctx, "/mpesa/b2c/v3/paymentrequest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
