package oauth

import "fmt"

// Stable error-code strings. These are part of the HTTP contract and must not
// change meaning.
const (
	CodeUnknownProvider     = "unknown_provider"
	CodeMissingCodeOrState  = "missing_code_or_state"
	CodeInvalidState        = "invalid_state"
	CodeInvalidStatePayload = "invalid_state_payload"
	CodeTransactionExpired  = "transaction_expired"
	CodeCSRFMismatch        = "csrf_mismatch"
	CodeProviderMismatch    = "provider_mismatch"
	CodeTokenExchangeFailed = "token_exchange_failed"
	CodeNonOIDCProvider     = "unknown_or_non_oidc_provider"
	CodeMissingIDToken      = "missing_idToken"
	CodeMissingNonce        = "missing_nonce"
	CodeInvalidIDToken      = "invalid_idToken"
	CodeUnauthorized        = "unauthorized"
	CodeNotLoggedIn         = "not_logged_in"
	CodeMissingWalletToken  = "missing_wallet_token"
	CodeInvalidWalletToken  = "invalid_wallet_token"
	CodeInvalidWalletAddr   = "invalid_wallet_address"
	CodeWalletVerifierDown  = "wallet_verifier_failed"
	CodeNoAccountLinked     = "no_account_linked"
	CodeInternalError       = "internal_error"
)

// FlowError is a terminal protocol failure with a stable outward code. The
// detail is safe to return to callers; anything sensitive stays in logs.
type FlowError struct {
	Code   string
	Status int
	Detail string
}

func (e *FlowError) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Validation is a 400-class input failure.
func Validation(code, detail string) *FlowError {
	return &FlowError{Code: code, Status: 400, Detail: detail}
}

// Unauthorized is a 401-class authentication failure.
func Unauthorized(code, detail string) *FlowError {
	return &FlowError{Code: code, Status: 401, Detail: detail}
}

// Upstream is a 502-class provider failure.
func Upstream(code, detail string) *FlowError {
	return &FlowError{Code: code, Status: 502, Detail: detail}
}
