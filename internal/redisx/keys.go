package redisx

import "time"

const (
	// Storefront catalog snapshot: kiosk:catalog -> {"categories": [...], "products": [...]}
	KeyCatalog = "kiosk:catalog"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCatalog = 5 * time.Minute
	TTLDedup   = 48 * time.Hour
)
