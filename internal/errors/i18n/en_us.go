package i18n

// Error codes must match the codes defined in internal/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodePriceMustBeAboveZero      = "PRICE_MUST_BE_ABOVE_ZERO"
	CodeInvalidAssetKey           = "ASSET_KEY_INVALID"
	CodeCallerRequired            = "CALLER_REQUIRED"
	CodeNotByOwner                = "NOT_BY_OWNER"
	CodeNotApprovedForMarketplace = "NOT_APPROVED_FOR_MARKETPLACE"
	CodeAlreadyListed             = "ALREADY_LISTED"
	CodeNotListed                 = "NOT_LISTED"
	CodePriceNotMet               = "PRICE_NOT_MET"
	CodeNoProceeds                = "NO_PROCEEDS"
	CodeTransferProceedsFailed    = "TRANSFER_PROCEEDS_FAILED"
	CodeAssetTransferFailed       = "ASSET_TRANSFER_FAILED"
	CodeOwnershipLookupFailed     = "OWNERSHIP_LOOKUP_FAILED"
	CodeNotFound                  = "NOT_FOUND"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Validation errors
		CodePriceMustBeAboveZero: "Listing price must be above zero",
		CodeInvalidAssetKey:      "Asset key requires a collection and token id",
		CodeCallerRequired:       "Caller identity is required",

		// Authorization errors
		CodeNotByOwner:                "Caller {{.caller}} does not own token {{.token_id}} of {{.collection}}",
		CodeNotApprovedForMarketplace: "Marketplace is not approved to transfer token {{.token_id}} of {{.collection}}",

		// Listing state errors
		CodeAlreadyListed: "Token {{.token_id}} of {{.collection}} is already listed",
		CodeNotListed:     "Token {{.token_id}} of {{.collection}} is not listed",

		// Payment errors
		CodePriceNotMet:            "Payment {{.payment}} does not meet the listed price {{.price}}",
		CodeNoProceeds:             "No withdrawable proceeds for {{.caller}}",
		CodeTransferProceedsFailed: "Sending proceeds to {{.caller}} failed",

		// Ownership registry integration errors
		CodeAssetTransferFailed:   "Transferring token {{.token_id}} of {{.collection}} failed",
		CodeOwnershipLookupFailed: "Ownership lookup for token {{.token_id}} of {{.collection}} failed",

		// Storage errors
		CodeNotFound: "Record not found",
	},
}
