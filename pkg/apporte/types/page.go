package types

// Page is one page of a paginated listing
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// HasNext reports whether a later page exists
func (p *Page[T]) HasNext() bool {
	return p != nil && p.CurrentPage < p.LastPage
}

// HasPrev reports whether an earlier page exists
func (p *Page[T]) HasPrev() bool {
	return p != nil && p.CurrentPage > 1
}
