// Package idface is a client for the Control iD iDFace fcgi API.
//
// A session is obtained from login.fcgi and passed as the "session" query
// parameter on every call. Sessions are reused until they expire or the device
// rejects them; concurrent callers share a single login.
//
// Requests are rate limited and pass through a circuit breaker that only counts
// transport failures. Errors wrap the sentinels of core/reconcile:
//   - ErrDeviceUnreachable: dial or timeout failures, 5xx answers, open breaker
//   - ErrDeviceAuth: 401/403 answers, rejected login
//   - ErrDeviceProtocol: other 4xx answers, undecodable bodies
package idface
