// Package errors provides structured domain errors with localized messages.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidRequest  Code = "INVALID_REQUEST"
	CodeAccountRequired Code = "ACCOUNT_REQUIRED"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeFilterInvalid   Code = "FILTER_INVALID"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// Account errors
	CodeAccountInvalidSettings Code = "ACCOUNT_INVALID_SETTINGS"

	// Client errors
	CodeClientNameEmpty       Code = "CLIENT_NAME_EMPTY"
	CodeClientInvalidEmail    Code = "CLIENT_INVALID_EMAIL"
	CodeClientInvalidLocation Code = "CLIENT_INVALID_LOCATION"

	// Price library errors
	CodePriceLabelEmpty    Code = "PRICE_LABEL_EMPTY"
	CodePriceInvalidUnit   Code = "PRICE_INVALID_UNIT"
	CodePriceInvalidAmount Code = "PRICE_INVALID_AMOUNT"

	// Quote errors
	CodeQuoteNoLines                 Code = "QUOTE_NO_LINES"
	CodeQuoteInvalidLine             Code = "QUOTE_INVALID_LINE"
	CodeQuoteInvalidRate             Code = "QUOTE_INVALID_RATE"
	CodeQuoteNotEditable             Code = "QUOTE_NOT_EDITABLE"
	CodeQuoteInvalidStatusTransition Code = "QUOTE_INVALID_STATUS_TRANSITION"
	CodeQuoteExpired                 Code = "QUOTE_EXPIRED"

	// Invoice errors
	CodeInvoiceInvalidPlan   Code = "INVOICE_INVALID_PLAN"
	CodeInvoiceNotPayable    Code = "INVOICE_NOT_PAYABLE"
	CodeInvoiceOverpayment   Code = "INVOICE_OVERPAYMENT"
	CodePaymentInvalidAmount Code = "PAYMENT_INVALID_AMOUNT"

	// Appointment errors
	CodeAppointmentInvalidRange Code = "APPOINTMENT_INVALID_RANGE"
	CodeAppointmentOverlap      Code = "APPOINTMENT_OVERLAP"

	// Follow-up errors
	CodeFollowUpInvalidKind Code = "FOLLOWUP_INVALID_KIND"
	CodeFollowUpStale       Code = "FOLLOWUP_STALE"

	// Travel fee errors
	CodeTravelInvalidCoordinates Code = "TRAVEL_INVALID_COORDINATES"
	CodeTravelOutOfRange         Code = "TRAVEL_OUT_OF_RANGE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeInvalidRequest,
		CodeFilterInvalid,
		CodeAccountInvalidSettings,
		CodeClientNameEmpty,
		CodeClientInvalidEmail,
		CodeClientInvalidLocation,
		CodePriceLabelEmpty,
		CodePriceInvalidUnit,
		CodePriceInvalidAmount,
		CodeQuoteNoLines,
		CodeQuoteInvalidLine,
		CodeQuoteInvalidRate,
		CodeInvoiceInvalidPlan,
		CodePaymentInvalidAmount,
		CodeAppointmentInvalidRange,
		CodeFollowUpInvalidKind,
		CodeTravelInvalidCoordinates:
		return http.StatusBadRequest

	// Conflict - state doesn't allow operation
	case CodeAlreadyExists,
		CodeQuoteNotEditable,
		CodeQuoteInvalidStatusTransition,
		CodeQuoteExpired,
		CodeInvoiceNotPayable,
		CodeInvoiceOverpayment,
		CodeAppointmentOverlap,
		CodeFollowUpStale:
		return http.StatusConflict

	case CodeTravelOutOfRange:
		return http.StatusUnprocessableEntity

	case CodeNotFound:
		return http.StatusNotFound

	case CodeAccountRequired:
		return http.StatusUnauthorized

	case CodeRateLimited:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
