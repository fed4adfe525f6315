package gate

import "errors"

// Every failure is terminal for the current operation and surfaced
// synchronously. Callers match with errors.Is.
var (
	ErrAccessDenied           = errors.New("access denied")
	ErrInvalidInput           = errors.New("invalid input")
	ErrHardcapReached         = errors.New("total mint hardcap reached")
	ErrFeatureDisabled        = errors.New("authorized minting is disabled")
	ErrSignatureWindowInvalid = errors.New("authorization is not yet valid or has expired")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrAuthorizationMismatch  = errors.New("signer does not match stated authorizer")
	ErrNonceAlreadyUsed       = errors.New("authorization nonce already used or cancelled")
)
