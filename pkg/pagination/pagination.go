// Package pagination computes page bounds and display text for row browsing.
package pagination

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultItemsPerPage is used when a caller passes a non-positive page size.
const DefaultItemsPerPage = 10

// printer formats counts with English thousands separators.
var printer = message.NewPrinter(language.English)

// Data describes one page of a result set.
// PrevPage and NextPage are nil at the first and last page respectively.
type Data struct {
	CurrentPage    int    `json:"currentPage"`
	FirstRowOnPage int    `json:"firstRowOnPage"`
	LastRowOnPage  int    `json:"lastRowOnPage"`
	TotalRows      int    `json:"totalRows"`
	PrevPage       *int   `json:"prevPage,omitempty"`
	NextPage       *int   `json:"nextPage,omitempty"`
	EndPage        int    `json:"endPage"`
	ItemsPerPage   int    `json:"itemsPerPage"`
	DisplayText    string `json:"displayText"`
}

// Paginate returns the page data for the requested page.
//
// Out-of-range pages are clamped into [1, EndPage] before any bound is
// computed, so stale page numbers (for example after rows were deleted)
// never produce an error.
func Paginate(page, totalRows, itemsPerPage int) Data {
	if itemsPerPage < 1 {
		itemsPerPage = DefaultItemsPerPage
	}
	if totalRows <= 0 {
		return Data{
			CurrentPage:  1,
			EndPage:      1,
			ItemsPerPage: itemsPerPage,
			DisplayText:  displayText(0, 0, 0),
		}
	}

	endPage := (totalRows + itemsPerPage - 1) / itemsPerPage
	current := min(max(page, 1), endPage)

	first := (current-1)*itemsPerPage + 1
	last := current * itemsPerPage
	if current == endPage {
		last = totalRows
	}

	data := Data{
		CurrentPage:    current,
		FirstRowOnPage: first,
		LastRowOnPage:  last,
		TotalRows:      totalRows,
		EndPage:        endPage,
		ItemsPerPage:   itemsPerPage,
		DisplayText:    displayText(first, last, totalRows),
	}
	if current > 1 {
		prev := current - 1
		data.PrevPage = &prev
	}
	if current < endPage {
		next := current + 1
		data.NextPage = &next
	}
	return data
}

// Offset returns the row offset of the current page.
func (d Data) Offset() int {
	return (d.CurrentPage - 1) * d.ItemsPerPage
}

func displayText(first, last, total int) string {
	return printer.Sprintf("Showing %d to %d of %d records", first, last, total)
}
