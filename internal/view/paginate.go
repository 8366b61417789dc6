package view

import "github.com/roach88/backoffice/internal/record"

// DefaultPageSize is used when a page size below 1 is requested.
const DefaultPageSize = 10

// linkWindow is how many pages either side of the current page are shown.
const linkWindow = 2

// PageState locates one page within a filtered list.
type PageState struct {
	Current int `json:"current_page"`
	Size    int `json:"page_size"`
	Total   int `json:"total_count"`
}

// TotalPages is ceil(Total/Size), never less than 1.
func (s PageState) TotalPages() int {
	size := s.Size
	if size < 1 {
		size = DefaultPageSize
	}
	if s.Total <= 0 {
		return 1
	}
	return (s.Total-1)/size + 1
}

// Clamp returns s with Size defaulted and Current moved into
// [1, TotalPages()].
func (s PageState) Clamp() PageState {
	if s.Size < 1 {
		s.Size = DefaultPageSize
	}
	if s.Total < 0 {
		s.Total = 0
	}
	last := s.TotalPages()
	switch {
	case s.Current < 1:
		s.Current = 1
	case s.Current > last:
		s.Current = last
	}
	return s
}

// PageLink is one entry of the pagination bar. An ellipsis entry has Page 0.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Current  bool `json:"current,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// Page is the visible slice of a list plus its metadata.
type Page struct {
	Items []record.Record `json:"items"`
	State PageState       `json:"state"`
	Links []PageLink      `json:"links"`
}

// Paginate slices records to the requested page. Total is recomputed from
// records and Current is clamped, so page 0 yields page 1 and any page past
// the end yields the last page.
func Paginate(records []record.Record, state PageState) Page {
	state.Total = len(records)
	state = state.Clamp()

	start := (state.Current - 1) * state.Size
	end := len(records)
	if state.Size < end-start {
		end = start + state.Size
	}

	items := make([]record.Record, 0, end-start)
	items = append(items, records[start:end]...)

	return Page{
		Items: items,
		State: state,
		Links: PageLinks(state.Current, state.TotalPages()),
	}
}

// PageLinks lists the pages to render: the first and last page, every page
// within two of current, and one ellipsis for each gap between them.
func PageLinks(current, total int) []PageLink {
	if total < 1 {
		total = 1
	}
	current = min(max(current, 1), total)

	var links []PageLink
	prev := 0
	for p := 1; p <= total; p++ {
		show := p == 1 || p == total || (p >= current-linkWindow && p <= current+linkWindow)
		if !show {
			continue
		}
		if prev != 0 && p-prev > 1 {
			links = append(links, PageLink{Ellipsis: true})
		}
		links = append(links, PageLink{Page: p, Current: p == current})
		prev = p
	}
	return links
}
