package models

// TransactionStatus is the lifecycle state shared by payment and disbursement
// records. pending is the only non-terminal state; terminal states are never
// re-entered.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// StatusForResultCode maps a gateway result code to the terminal state it
// implies: 0 means the operation succeeded, anything else is a failure.
func StatusForResultCode(code int) TransactionStatus {
	if code == 0 {
		return TransactionStatusCompleted
	}
	return TransactionStatusFailed
}
