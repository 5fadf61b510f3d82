package dto

// PageInfo describes one page of a listing. Page numbers start at 1;
// Start and End are slice bounds into the complete listing.
type PageInfo struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	TotalItems int64 `json:"totalItems"`
	PageSize   int   `json:"pageSize"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
	Start      int   `json:"-"`
	End        int   `json:"-"`
}

// NewPageInfo computes the page bounds. An empty listing has one empty page,
// and an out of range page is clamped to the nearest valid one.
func NewPageInfo(totalItems int64, pageSize, page int) PageInfo {
	totalPages := 1
	if totalItems > 0 && pageSize > 0 {
		totalPages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	page = max(1, min(page, totalPages))

	start := min((page-1)*pageSize, int(totalItems))
	end := min(start+pageSize, int(totalItems))

	return PageInfo{
		Page:       page,
		TotalPages: totalPages,
		TotalItems: totalItems,
		PageSize:   pageSize,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		Start:      start,
		End:        end,
	}
}
