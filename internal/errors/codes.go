// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodePriceMustBeAboveZero Code = "PRICE_MUST_BE_ABOVE_ZERO"
	CodeInvalidAssetKey      Code = "ASSET_KEY_INVALID"
	CodeCallerRequired       Code = "CALLER_REQUIRED"

	// Authorization errors
	CodeNotByOwner                Code = "NOT_BY_OWNER"
	CodeNotApprovedForMarketplace Code = "NOT_APPROVED_FOR_MARKETPLACE"

	// Listing state errors
	CodeAlreadyListed Code = "ALREADY_LISTED"
	CodeNotListed     Code = "NOT_LISTED"

	// Payment errors
	CodePriceNotMet            Code = "PRICE_NOT_MET"
	CodeNoProceeds             Code = "NO_PROCEEDS"
	CodeTransferProceedsFailed Code = "TRANSFER_PROCEEDS_FAILED"

	// Ownership registry integration errors
	CodeAssetTransferFailed   Code = "ASSET_TRANSFER_FAILED"
	CodeOwnershipLookupFailed Code = "OWNERSHIP_LOOKUP_FAILED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodePriceMustBeAboveZero,
		CodeInvalidAssetKey,
		CodeCallerRequired:
		return http.StatusBadRequest

	// Forbidden - caller is not authorized for the operation
	case CodeNotByOwner,
		CodeNotApprovedForMarketplace:
		return http.StatusForbidden

	// Conflict - current state disallows the operation
	case CodeAlreadyListed,
		CodeNotListed,
		CodeNoProceeds:
		return http.StatusConflict

	// Payment required - attached payment does not meet the listed price
	case CodePriceNotMet:
		return http.StatusPaymentRequired

	// Bad gateway - an external transfer or lookup failed
	case CodeTransferProceedsFailed,
		CodeAssetTransferFailed,
		CodeOwnershipLookupFailed:
		return http.StatusBadGateway

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
