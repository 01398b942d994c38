package services

// PageMeta is the pagination block returned by every listing operation.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// PagedResult wraps a page of rows with its meta.
type PagedResult struct {
	Data any      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NormalizePage clamps page/limit to their minimums and applies the
// defaults page=1, limit=10.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}

// NewPageMeta computes totalPages = ceil(total/limit).
func NewPageMeta(total int64, page, limit int) PageMeta {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}
