package services

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a workflow failure. Handlers map kinds to status codes.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindWalletNotFound      Kind = "wallet_not_found"
	KindAlreadyPurchased    Kind = "already_purchased"
	KindOutOfStock          Kind = "out_of_stock"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindNotRedeemable       Kind = "not_redeemable"
	KindAlreadyRedeemed     Kind = "already_redeemed"
	KindAlreadyTerminal     Kind = "already_terminal"
	KindInvalidInput        Kind = "invalid_input"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
	KindSystem              Kind = "system"
)

// Sub-reasons of KindNotRedeemable.
const (
	ReasonExpired         = "expired"
	ReasonAlreadyRedeemed = "already_redeemed"
	ReasonOther           = "other"
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindSystem {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrWalletNotFound      = &Error{Kind: KindWalletNotFound, Message: "wallet not found"}
	ErrAlreadyPurchased    = &Error{Kind: KindAlreadyPurchased, Message: "you have already purchased this voucher"}
	ErrOutOfStock          = &Error{Kind: KindOutOfStock, Message: "voucher is out of stock"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "insufficient wallet balance"}
	ErrNotRedeemable       = &Error{Kind: KindNotRedeemable, Message: "voucher cannot be redeemed"}
	ErrAlreadyRedeemed     = &Error{Kind: KindAlreadyRedeemed, Message: "voucher has already been redeemed"}
	ErrAlreadyTerminal     = &Error{Kind: KindAlreadyTerminal, Message: "purchase is no longer active"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
)

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func invalidInput(err error) *Error {
	return &Error{Kind: KindInvalidInput, Message: err.Error(), Err: err}
}

func notRedeemable(reason, msg string) *Error {
	return &Error{Kind: KindNotRedeemable, Reason: reason, Message: msg}
}

// systemError hides a storage or transport fault from callers and records
// the stack where it leaves the service layer, for logs.
func systemError(op string, err error) *Error {
	return &Error{Kind: KindSystem, Message: op + " failed", Err: pkgerrors.WithStack(err)}
}

// Detail renders err with the recorded stack, for operator logs only.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return fmt.Sprintf("%+v", e.Err)
	}
	return fmt.Sprintf("%+v", err)
}

// KindOf reports the kind of err. Errors that are not *Error are system errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// ensure turns an unclassified error into a system error.
func ensure(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return systemError(op, err)
}
