// Package server exposes an agent's envelope codec over HTTP.
//
// EnvelopeHandler accepts POSTed signed envelopes, runs the codec's
// verification and dispatch, and answers with a signed envelope: the
// handler's result on success, a signed error envelope (with a stable
// error_code) on failure. Only envelopes whose sender DID cannot be
// parsed fall back to an unsigned JSON error body.
package server
