package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestPaginate(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		total     int
		perPage   int
		wantPrev  *int
		wantNext  *int
		wantText  string
		wantFirst int
		wantLast  int
	}{
		{
			name: "first page", page: 1, total: 100, perPage: 10,
			wantNext: intPtr(2), wantText: "Showing 1 to 10 of 100 records", wantFirst: 1, wantLast: 10,
		},
		{
			name: "middle page", page: 5, total: 100, perPage: 10,
			wantPrev: intPtr(4), wantNext: intPtr(6), wantText: "Showing 41 to 50 of 100 records", wantFirst: 41, wantLast: 50,
		},
		{
			name: "last page", page: 10, total: 100, perPage: 10,
			wantPrev: intPtr(9), wantText: "Showing 91 to 100 of 100 records", wantFirst: 91, wantLast: 100,
		},
		{
			name: "partial last page", page: 3, total: 25, perPage: 10,
			wantPrev: intPtr(2), wantText: "Showing 21 to 25 of 25 records", wantFirst: 21, wantLast: 25,
		},
		{
			name: "page past the end is clamped", page: 42, total: 25, perPage: 10,
			wantPrev: intPtr(2), wantText: "Showing 21 to 25 of 25 records", wantFirst: 21, wantLast: 25,
		},
		{
			name: "page below one is clamped", page: -3, total: 25, perPage: 10,
			wantNext: intPtr(2), wantText: "Showing 1 to 10 of 25 records", wantFirst: 1, wantLast: 10,
		},
		{
			name: "thousands separators", page: 50000, total: 1000000, perPage: 20,
			wantPrev: intPtr(49999), wantText: "Showing 999,981 to 1,000,000 of 1,000,000 records", wantFirst: 999981, wantLast: 1000000,
		},
		{
			name: "single row", page: 1, total: 1, perPage: 10,
			wantText: "Showing 1 to 1 of 1 records", wantFirst: 1, wantLast: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(tt.page, tt.total, tt.perPage)
			assert.Equal(t, tt.wantText, got.DisplayText)
			assert.Equal(t, tt.wantFirst, got.FirstRowOnPage)
			assert.Equal(t, tt.wantLast, got.LastRowOnPage)
			assert.Equal(t, tt.wantPrev, got.PrevPage)
			assert.Equal(t, tt.wantNext, got.NextPage)
			assert.Equal(t, tt.total, got.TotalRows)
		})
	}
}

func TestPaginate_ZeroRows(t *testing.T) {
	got := Paginate(1, 0, 10)

	assert.Equal(t, Data{
		CurrentPage:  1,
		EndPage:      1,
		ItemsPerPage: 10,
		DisplayText:  "Showing 0 to 0 of 0 records",
	}, got)
	assert.Nil(t, got.PrevPage)
	assert.Nil(t, got.NextPage)
}

func TestPaginate_EndPage(t *testing.T) {
	assert.Equal(t, 10, Paginate(1, 100, 10).EndPage)
	assert.Equal(t, 11, Paginate(1, 101, 10).EndPage)
	assert.Equal(t, 1, Paginate(1, 9, 10).EndPage)
}

func TestPaginate_DefaultPageSize(t *testing.T) {
	got := Paginate(2, 35, 0)
	assert.Equal(t, DefaultItemsPerPage, got.ItemsPerPage)
	assert.Equal(t, 11, got.FirstRowOnPage)
	assert.Equal(t, 10, got.Offset())
}

func TestPaginate_Invariants(t *testing.T) {
	for total := 0; total <= 57; total++ {
		for _, per := range []int{1, 3, 10, 25} {
			for page := -1; page <= 60; page += 7 {
				d := Paginate(page, total, per)

				require.GreaterOrEqual(t, d.CurrentPage, 1)
				require.LessOrEqual(t, d.CurrentPage, d.EndPage)
				require.LessOrEqual(t, d.FirstRowOnPage, d.LastRowOnPage)
				require.LessOrEqual(t, d.LastRowOnPage, d.TotalRows)
				if total == 0 {
					require.Zero(t, d.FirstRowOnPage)
					require.Zero(t, d.LastRowOnPage)
				} else {
					require.Equal(t, d.Offset()+1, d.FirstRowOnPage)
				}
			}
		}
	}
}
