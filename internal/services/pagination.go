package services

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Page is a normalized page request.
type Page struct {
	Number  int
	PerPage int
}

// NewPage clamps page and perPage to sane bounds.
func NewPage(number, perPage int) Page {
	if number < 1 {
		number = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Page{Number: number, PerPage: perPage}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// PageInfo describes a page of results.
type PageInfo struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	PerPage     int   `json:"per_page"`
}

func (p Page) Info(total int64) PageInfo {
	pages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return PageInfo{
		CurrentPage: p.Number,
		TotalPages:  pages,
		TotalCount:  total,
		PerPage:     p.PerPage,
	}
}
