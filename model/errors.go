package model

import "errors"

// Error taxonomy for the pipeline. Components wrap these with %w and callers
// classify with errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrInvalidIdentifier means the input never resolved to a target. Not
	// retryable, a client error.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrAuthenticationFailed means the upstream rejected the credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrStoryNotFound covers deleted or never-existing stories and parts.
	ErrStoryNotFound = errors.New("story not found")

	// ErrRateLimited is terminal: the retry budget was exhausted against
	// upstream throttling.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrTimeout covers per-call timeouts and the overall build deadline.
	ErrTimeout = errors.New("timed out")

	// ErrUpstreamUnavailable is terminal for transient network/5xx faults
	// after the retry budget is spent.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAssembly means no viable content to emit, e.g. zero resolved
	// chapters.
	ErrAssembly = errors.New("assembly failed")

	// ErrCacheBackend marks cache-store faults. The cache is best effort:
	// callers degrade to building uncached instead of failing the request.
	ErrCacheBackend = errors.New("cache backend error")
)
