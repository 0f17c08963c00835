package cdx

import "errors"

// Sentinel errors returned by the catalog fetcher and the fetch loop.
var (
	ErrCatalogStatus    = errors.New("catalog returned non-success status")
	ErrCatalogFormat    = errors.New("catalog is not a JSON array of crawls")
	ErrMalformedRecord  = errors.New("malformed JSON record")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrEmptyDomain      = errors.New("domain is required")
)
