// Package service orchestrates the derived task views: it owns the per-user
// caches, the concurrent source fetches behind them, the whiteboard
// synchronization state machine, and overlay upserts.
package service

import "errors"

// Sentinel errors callers check with errors.Is(). The API layer maps these
// to HTTP status codes.
var (
	// ErrAllProvidersFailed indicates every task provider failed in the same
	// build, the only condition that fails a unified build outright. API
	// layer should map this to HTTP 502 Bad Gateway.
	ErrAllProvidersFailed = errors.New("all task providers failed")

	// ErrOverlayListingFailed indicates the overlay listing could not be
	// fetched while building a view that cannot degrade without it. API
	// layer should map this to HTTP 502 Bad Gateway.
	ErrOverlayListingFailed = errors.New("overlay listing unavailable")

	// ErrEmptyPatch indicates an overlay upsert carried no usable fields
	// after whitelisting. API layer should map this to HTTP 400 Bad Request.
	ErrEmptyPatch = errors.New("overlay patch contains no writable fields")
)
