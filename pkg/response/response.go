package response

// APIResponse is the envelope returned by the initiate and status endpoints.
// Use OK / Fail helpers to construct instances.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK returns a successful response with data.
func OK[T any](message string, data T) *APIResponse[T] {
	return &APIResponse[T]{Success: true, Message: message, Data: data}
}

// Fail returns an error response. detail carries the underlying error text and
// may be empty.
func Fail[T any](message string, detail string) *APIResponse[T] {
	return &APIResponse[T]{Success: false, Message: message, Error: detail}
}

// CallbackAck is the body M-Pesa expects from every callback endpoint. Any
// non-zero ResultCode makes the gateway re-deliver the callback, so handlers
// answer Accepted regardless of internal outcome.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Accepted returns the standard success acknowledgement.
func Accepted(desc string) CallbackAck {
	return CallbackAck{ResultCode: 0, ResultDesc: desc}
}
