package repository

// PaginationParams selects one page of a collection query.
type PaginationParams struct {
	Page           int    // 1-based, defaults to 1
	Limit          int    // defaults per repository
	OrderBy        string // column name, defaults per repository
	OrderDirection string // "asc" or "desc"
}

// Pagination describes the page that was returned.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

func (p *PaginationParams) normalize(defaultLimit int, defaultOrderBy string, defaultDirection string) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.OrderBy == "" {
		p.OrderBy = defaultOrderBy
	}
	if p.OrderDirection != "asc" && p.OrderDirection != "desc" {
		p.OrderDirection = defaultDirection
	}
}

func (p PaginationParams) offset() int {
	return (p.Page - 1) * p.Limit
}

func makePagination(p PaginationParams, total int64) Pagination {
	return Pagination{
		Page:    p.Page,
		Limit:   p.Limit,
		Total:   total,
		HasNext: int64(p.offset()+p.Limit) < total,
		HasPrev: p.Page > 1,
	}
}
