package constants

const (
	CntTypeHeaderJson = "application/json"
	CookieToken       = "Authorization"

	// Order statuses, monotone: pending may move to any terminal
	// status, terminal statuses never change.
	OrderStatusPending = "PENDING"
	OrderStatusSettled = "SETTLED"
	OrderStatusExpired = "EXPIRED"
	OrderStatusFailed  = "FAILED"

	WithdrawalStatusApproved = "APPROVED"
	WithdrawalStatusRejected = "REJECTED"

	// Gateway transaction_status values carried by notifications.
	TxStatusSettlement = "settlement"
	TxStatusCapture    = "capture"
	TxStatusExpire     = "expire"
	TxStatusCancel     = "cancel"
	TxStatusDeny       = "deny"
	TxStatusFailure    = "failure"
)
