package listing

// State is the pagination state of a list view. Page is 1-based and always within [1, PageCount].
type State struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

// PageCount returns max(1, ceil(totalCount/pageSize)). A non-positive pageSize counts as 1.
func PageCount(pageSize, totalCount int) int {
	if pageSize <= 0 {
		pageSize = 1
	}
	if totalCount <= 0 {
		return 1
	}
	pages := totalCount / pageSize
	if totalCount%pageSize != 0 {
		pages++
	}
	return pages
}

// Clamp returns `page` bounded to [1, PageCount(pageSize, totalCount)].
func Clamp(page, pageSize, totalCount int) int {
	if page < 1 {
		page = 1
	}
	if last := PageCount(pageSize, totalCount); page > last {
		return last
	}
	return page
}

// NewState returns a clamped pagination state.
func NewState(page, pageSize, totalCount int) State {
	if pageSize <= 0 {
		pageSize = 1
	}
	if totalCount < 0 {
		totalCount = 0
	}
	return State{
		Page:       Clamp(page, pageSize, totalCount),
		PageSize:   pageSize,
		TotalCount: totalCount,
	}
}

func (s State) PageCount() int {
	return PageCount(s.PageSize, s.TotalCount)
}

func (s State) HasNext() bool {
	return s.Page < s.PageCount()
}

func (s State) HasPrev() bool {
	return s.Page > 1
}

// Next moves one page forward; it is a no-op on the last page.
func (s State) Next() State {
	return NewState(s.Page+1, s.PageSize, s.TotalCount)
}

// Prev moves one page back; it is a no-op on the first page.
func (s State) Prev() State {
	return NewState(s.Page-1, s.PageSize, s.TotalCount)
}

// WithTotal re-clamps the state against a new total, e.g. after filters shrank the list.
func (s State) WithTotal(totalCount int) State {
	return NewState(s.Page, s.PageSize, totalCount)
}

// Offset is the index of the first item of the current page.
func (s State) Offset() int {
	s = NewState(s.Page, s.PageSize, s.TotalCount)
	return (s.Page - 1) * s.PageSize
}

// Window returns the slice of `items` the state points at.
func Window(items []Record, s State) []Record {
	s = NewState(s.Page, s.PageSize, len(items))
	start := s.Offset()
	if start >= len(items) {
		return []Record{}
	}
	end := start + s.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
