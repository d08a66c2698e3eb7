// Package payme holds the merchant-protocol vocabulary the provider drives
// the transaction state machine with: numeric error codes, localized
// messages, and the JSON-RPC result shapes.
package payme

import (
	"fmt"

	"github.com/kamol666/finish/internal/domain/model"
)

// Message is the tri-lingual message body the merchant protocol returns.
type Message struct {
	Uz string `json:"uz"`
	En string `json:"en"`
	Ru string `json:"ru"`
}

// Error is a protocol-level error. Code and Message go on the wire verbatim;
// State and Reason are attached when an operation canceled the transaction
// as a side effect (timeout, settlement race).
type Error struct {
	Code    int                     `json:"code"`
	Message Message                 `json:"message"`
	Data    *string                 `json:"data,omitempty"`
	State   *model.TransactionState `json:"state,omitempty"`
	Reason  *model.CancelReason     `json:"reason,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("payme error %d: %s", e.Code, e.Message.En)
}

// WithState returns a copy of the error carrying the post-cancel state.
func (e *Error) WithState(state model.TransactionState, reason model.CancelReason) *Error {
	cp := *e
	cp.State = &state
	cp.Reason = &reason
	return &cp
}

// Error codes follow the merchant API: -31001 amount, -31003 unknown
// transaction, -31008 operation not performable, -31050..-31099 account
// errors, -32504 bad credentials.
var (
	ErrProductOrUserNotFound = &Error{
		Code: -31050,
		Message: Message{
			Uz: "Sizda mahsulot/foydalanuvchi topilmadi",
			En: "Product/user not found",
			Ru: "Товар/пользователь не найден",
		},
	}
	ErrAlreadyDone = &Error{
		Code: -31060,
		Message: Message{
			Uz: "Sizda faol obuna mavjud",
			En: "Subscription is already active",
			Ru: "Подписка уже активна",
		},
	}
	ErrInvalidAmount = &Error{
		Code: -31001,
		Message: Message{
			Uz: "Summa noto'g'ri",
			En: "Invalid amount",
			Ru: "Неверная сумма",
		},
	}
	ErrTransactionInProcess = &Error{
		Code: -31099,
		Message: Message{
			Uz: "Tranzaksiya hozirda amalga oshirilmoqda",
			En: "Another transaction is in process for this account",
			Ru: "Другая транзакция уже обрабатывается",
		},
	}
	ErrTransactionNotFound = &Error{
		Code: -31003,
		Message: Message{
			Uz: "Tranzaksiya topilmadi",
			En: "Transaction not found",
			Ru: "Транзакция не найдена",
		},
	}
	ErrCantPerform = &Error{
		Code: -31008,
		Message: Message{
			Uz: "Ushbu amalni bajarib bo'lmaydi",
			En: "Unable to perform the operation",
			Ru: "Невозможно выполнить операцию",
		},
	}
	ErrInvalidAuthorization = &Error{
		Code: -32504,
		Message: Message{
			Uz: "Avtorizatsiya yaroqsiz",
			En: "Invalid authorization",
			Ru: "Неверная авторизация",
		},
	}
	ErrInternal = &Error{
		Code: -32400,
		Message: Message{
			Uz: "Tizim xatosi",
			En: "Internal system error",
			Ru: "Внутренняя ошибка системы",
		},
	}
)
