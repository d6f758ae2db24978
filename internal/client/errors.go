package client

import "errors"

var (
	// ErrNotInitialized reports an operation that requires Initialize to
	// have completed first.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrNotReady reports a gateway call issued before the session
	// reached the ready state. The automation surface is not touched.
	ErrNotReady = errors.New("session not ready")

	// ErrDestroyed reports an operation on a session that has been torn
	// down.
	ErrDestroyed = errors.New("session destroyed")
)

// DisconnectReasonQRExhausted is the disconnection reason emitted when the
// QR retry budget runs out.
const DisconnectReasonQRExhausted = "qr retries exhausted"

// disconnectReasonUnknown is used when the page reports a disconnect
// without a reason.
const disconnectReasonUnknown = "Unknown"
