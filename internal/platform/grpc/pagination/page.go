// Package pagination normalizes list request paging inputs.
package pagination

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	pageSize := int(value)
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// NextCursor returns the cursor for the page after items when the page is
// full, or zero when the listing is exhausted.
func NextCursor[T any](items []T, pageSize int, key func(T) uint64) uint64 {
	if pageSize <= 0 || len(items) < pageSize || len(items) == 0 {
		return 0
	}
	return key(items[len(items)-1])
}
