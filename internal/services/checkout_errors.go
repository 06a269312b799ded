package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/example/crumb/internal/money"
)

// CheckoutErrorInfo describes one kind of checkout failure.
type CheckoutErrorInfo struct {
	Kind   string
	Status int
}

var (
	CheckoutErrorEmptyCart              = CheckoutErrorInfo{Kind: "EmptyCart", Status: http.StatusBadRequest}
	CheckoutErrorMissingFields          = CheckoutErrorInfo{Kind: "MissingFields", Status: http.StatusBadRequest}
	CheckoutErrorItemUnavailable        = CheckoutErrorInfo{Kind: "ItemUnavailable", Status: http.StatusConflict}
	CheckoutErrorPriceChanged           = CheckoutErrorInfo{Kind: "PriceChanged", Status: http.StatusConflict}
	CheckoutErrorServiceAreaUnavailable = CheckoutErrorInfo{Kind: "ServiceAreaUnavailable", Status: http.StatusUnprocessableEntity}
	CheckoutErrorMinimumNotMet          = CheckoutErrorInfo{Kind: "MinimumNotMet", Status: http.StatusUnprocessableEntity}
	CheckoutErrorSlotUnavailable        = CheckoutErrorInfo{Kind: "SlotUnavailable", Status: http.StatusConflict}
	CheckoutErrorOrderPersistence       = CheckoutErrorInfo{Kind: "OrderPersistenceFailure", Status: http.StatusServiceUnavailable}
	CheckoutErrorPaymentSession         = CheckoutErrorInfo{Kind: "PaymentSessionFailure", Status: http.StatusBadGateway}
)

// CheckoutError is a structured checkout failure returned to the storefront.
type CheckoutError struct {
	Info      CheckoutErrorInfo
	Message   string
	Items     []string
	Fields    []string
	Shortfall *money.Cents
	cause     error
}

func (e *CheckoutError) Error() string {
	return e.Info.Kind + ": " + e.Message
}

func (e *CheckoutError) Unwrap() error {
	return e.cause
}

// Is matches another *CheckoutError of the same kind.
func (e *CheckoutError) Is(target error) bool {
	t, ok := target.(*CheckoutError)
	return ok && t.Info.Kind == e.Info.Kind
}

func errEmptyCart() *CheckoutError {
	return &CheckoutError{Info: CheckoutErrorEmptyCart, Message: "your cart is empty"}
}

func errMissingFields(fields []string) *CheckoutError {
	return &CheckoutError{
		Info:    CheckoutErrorMissingFields,
		Message: "missing or invalid fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

func errItemUnavailable(names []string) *CheckoutError {
	return &CheckoutError{
		Info:    CheckoutErrorItemUnavailable,
		Message: "no longer available: " + strings.Join(names, ", "),
		Items:   names,
	}
}

func errPriceChanged(names []string) *CheckoutError {
	return &CheckoutError{
		Info:    CheckoutErrorPriceChanged,
		Message: "prices changed for: " + strings.Join(names, ", ") + "; refresh your cart and try again",
		Items:   names,
	}
}

func errServiceArea(zip string) *CheckoutError {
	return &CheckoutError{
		Info:    CheckoutErrorServiceAreaUnavailable,
		Message: fmt.Sprintf("we do not deliver to %s yet", zip),
		Fields:  []string{"delivery_address.zip"},
	}
}

func errMinimumNotMet(zoneName string, shortfall money.Cents) *CheckoutError {
	return &CheckoutError{
		Info:      CheckoutErrorMinimumNotMet,
		Message:   fmt.Sprintf("add %s more to meet the %s delivery minimum", shortfall, zoneName),
		Shortfall: &shortfall,
	}
}

func errSlotUnavailable(cause error) *CheckoutError {
	return &CheckoutError{
		Info:    CheckoutErrorSlotUnavailable,
		Message: "the selected time slot is no longer available; please pick another",
		cause:   cause,
	}
}

func errOrderPersistence(cause error) *CheckoutError {
	return &CheckoutError{
		Info:    CheckoutErrorOrderPersistence,
		Message: "we could not save your order; please try again",
		cause:   cause,
	}
}

func errPaymentSession(cause error) *CheckoutError {
	return &CheckoutError{
		Info:    CheckoutErrorPaymentSession,
		Message: "we could not start the payment; please try again",
		cause:   cause,
	}
}
