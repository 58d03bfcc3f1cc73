package daraja

import "errors"

var (
	// ErrAuth means the gateway rejected our consumer credentials or the OAuth
	// endpoint was unreachable. It always propagates to the caller.
	ErrAuth = errors.New("daraja: failed to obtain access token")
	// ErrGatewayRequest means the gateway answered and rejected the request
	// (non-2xx or undecodable response).
	ErrGatewayRequest = errors.New("daraja: gateway request failed")
	// ErrGatewayUnreachable means the request never got an answer (connect
	// failure or timeout). The operation may still have been accepted, so the
	// asynchronous callback remains the source of truth.
	ErrGatewayUnreachable = errors.New("daraja: gateway unreachable")
	// ErrCredentialEncryption is a local cryptographic failure building the B2C
	// SecurityCredential; it is fatal to the disbursement attempt.
	ErrCredentialEncryption = errors.New("daraja: failed to generate security credentials")
)
