package daraja

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MetadataItem is one name/value pair from a callback metadata list. The
// gateway does not guarantee item order, so values must be looked up by name.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// STKCallbackEnvelope is the collection result webhook body.
type STKCallbackEnvelope struct {
	Body STKCallbackBody `json:"Body"`
}

type STKCallbackBody struct {
	StkCallback *STKCallback `json:"stkCallback"`
}

type STKCallback struct {
	MerchantRequestID string              `json:"MerchantRequestID"`
	CheckoutRequestID string              `json:"CheckoutRequestID"`
	ResultCode        int                 `json:"ResultCode"`
	ResultDesc        string              `json:"ResultDesc"`
	CallbackMetadata  STKCallbackMetadata `json:"CallbackMetadata"`
}

type STKCallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

func (c *STKCallback) metadataValue(name string) (string, bool) {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == name {
			return stringifyMetadataValue(item.Value), true
		}
	}
	return "", false
}

func (c *STKCallback) ReceiptNumber() (string, bool)   { return c.metadataValue("MpesaReceiptNumber") }
func (c *STKCallback) TransactionDate() (string, bool) { return c.metadataValue("TransactionDate") }
func (c *STKCallback) PhoneNumber() (string, bool)     { return c.metadataValue("PhoneNumber") }
func (c *STKCallback) Amount() (string, bool)          { return c.metadataValue("Amount") }

// stringifyMetadataValue normalizes metadata values, which arrive as strings
// or JSON numbers (receipt is a string, amount and dates are numbers).
func stringifyMetadataValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// B2CCallbackEnvelope covers both the result and the queue-timeout webhooks;
// they share one structure and one reconciliation path. Fields may appear
// nested under Result or at the top level depending on the gateway path that
// produced the callback.
type B2CCallbackEnvelope struct {
	OriginatorConversationID string     `json:"OriginatorConversationID"`
	ConversationID           string     `json:"ConversationID"`
	ResultCode               *int       `json:"ResultCode"`
	ResultDesc               string     `json:"ResultDesc"`
	Result                   *B2CResult `json:"Result"`
}

type B2CResult struct {
	ResultType               int                  `json:"ResultType"`
	ResultCode               *int                 `json:"ResultCode"`
	ResultDesc               string               `json:"ResultDesc"`
	OriginatorConversationID string               `json:"OriginatorConversationID"`
	ConversationID           string               `json:"ConversationID"`
	TransactionID            string               `json:"TransactionID"`
	ResultParameters         *B2CResultParameters `json:"ResultParameters"`
}

type B2CResultParameters struct {
	ResultParameter []MetadataItem `json:"ResultParameter"`
}

// CorrelationID extracts the OriginatorConversationID, checking the nested
// Result object first and the top level second. ok is false when neither
// location carries it, in which case the callback cannot be matched at all.
func (e *B2CCallbackEnvelope) CorrelationID() (string, bool) {
	if e.Result != nil && e.Result.OriginatorConversationID != "" {
		return e.Result.OriginatorConversationID, true
	}
	if e.OriginatorConversationID != "" {
		return e.OriginatorConversationID, true
	}
	return "", false
}

// FinalResultCode follows the same nested-first precedence. A callback with no
// result code at all is treated as a failure, never as success.
func (e *B2CCallbackEnvelope) FinalResultCode() int {
	if e.Result != nil && e.Result.ResultCode != nil {
		return *e.Result.ResultCode
	}
	if e.ResultCode != nil {
		return *e.ResultCode
	}
	return 1
}

func (e *B2CCallbackEnvelope) FinalResultDesc() string {
	if e.Result != nil && e.Result.ResultDesc != "" {
		return e.Result.ResultDesc
	}
	return e.ResultDesc
}

// GatewayConversationID returns the gateway-assigned conversation id when
// present; it is informational only and never used for correlation.
func (e *B2CCallbackEnvelope) GatewayConversationID() string {
	if e.Result != nil && e.Result.ConversationID != "" {
		return e.Result.ConversationID
	}
	return e.ConversationID
}
