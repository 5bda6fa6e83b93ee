package api

// Cache-Control header values.
const (
	// CacheNoStore is used for asset bytes: renumbering reuses names for other content.
	CacheNoStore = "no-store"
)
