package payme

import (
	"encoding/json"
	"time"

	"github.com/kamol666/finish/internal/domain/model"
)

// Method names the provider invokes over the webhook endpoint.
const (
	MethodCheckPerformTransaction = "CheckPerformTransaction"
	MethodCreateTransaction       = "CreateTransaction"
	MethodPerformTransaction      = "PerformTransaction"
	MethodCancelTransaction       = "CancelTransaction"
	MethodCheckTransaction        = "CheckTransaction"
	MethodGetStatement            = "GetStatement"
)

// Request is the JSON-RPC envelope of an inbound merchant call.
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params Params          `json:"params"`
}

// Params is the union of every method's parameters; unused fields stay zero.
type Params struct {
	ID      string  `json:"id"`     // correlation id (transaction methods)
	Amount  int64   `json:"amount"` // tiyin
	Account Account `json:"account"`
	Reason  *int    `json:"reason"`
	Time    int64   `json:"time"`
	From    int64   `json:"from"` // ms epoch (GetStatement)
	To      int64   `json:"to"`
}

// Account identifies what is being bought and by whom.
type Account struct {
	PlanID          string `json:"plan_id"`
	UserID          string `json:"user_id"`
	SelectedService string `json:"selected_service,omitempty"`
}

// Response is the JSON-RPC envelope we answer with.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

type CheckPerformResult struct {
	Allow bool `json:"allow"`
}

type CreateResult struct {
	Transaction string                 `json:"transaction"`
	State       model.TransactionState `json:"state"`
	CreateTime  int64                  `json:"create_time"`
}

type PerformResult struct {
	Transaction string                 `json:"transaction"`
	State       model.TransactionState `json:"state"`
	PerformTime int64                  `json:"perform_time"`
}

type CancelResult struct {
	Transaction string                 `json:"transaction"`
	State       model.TransactionState `json:"state"`
	CancelTime  int64                  `json:"cancel_time"`
}

type CheckResult struct {
	Transaction string                 `json:"transaction"`
	State       model.TransactionState `json:"state"`
	CreateTime  int64                  `json:"create_time"`
	PerformTime int64                  `json:"perform_time"`
	CancelTime  int64                  `json:"cancel_time"`
	Reason      *model.CancelReason    `json:"reason"`
}

type StatementEntry struct {
	ID          string                 `json:"id"`
	Time        int64                  `json:"time"`
	Amount      int64                  `json:"amount"`
	Account     Account                `json:"account"`
	CreateTime  int64                  `json:"create_time"`
	PerformTime int64                  `json:"perform_time"`
	CancelTime  int64                  `json:"cancel_time"`
	Transaction string                 `json:"transaction"`
	State       model.TransactionState `json:"state"`
	Reason      *model.CancelReason    `json:"reason"`
}

type StatementResult struct {
	Transactions []StatementEntry `json:"transactions"`
}

// Millis converts an optional timestamp to the ms-epoch the protocol uses;
// nil becomes 0, which the provider treats as "not yet".
func Millis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
