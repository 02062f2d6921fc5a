package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestPaginatedResponse(t *testing.T) {
	tests := []struct {
		name    string
		filter  VenueFilter
		total   int
		page    int
		limit   int
		hasMore bool
	}{
		{"first page", VenueFilter{Offset: 0, Limit: 10}, 25, 1, 10, true},
		{"last partial page", VenueFilter{Offset: 20, Limit: 10}, 25, 3, 10, false},
		{"exact end", VenueFilter{Offset: 10, Limit: 10}, 20, 2, 10, false},
		{"oversized limit", VenueFilter{Offset: 0, Limit: 1000}, 150, 1, MaxVenuePageSize, true},
		{"empty", VenueFilter{Offset: 0, Limit: 10}, 0, 1, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := PaginatedResponse([]string{}, tt.filter, tt.total)
			if !res.Success || res.Page != tt.page || res.Limit != tt.limit || res.HasMore != tt.hasMore {
				t.Errorf("got page=%d limit=%d has_more=%v", res.Page, res.Limit, res.HasMore)
			}
			if res.Offset != tt.filter.Offset || res.Total != tt.total {
				t.Errorf("got offset=%d total=%d", res.Offset, res.Total)
			}
		})
	}
}

func TestClampedKeepsOwner(t *testing.T) {
	id := uuid.New()
	owner := &id
	f := VenueFilter{OwnerID: owner, Offset: 5, Limit: 0}.Clamped()
	if f.Limit != 1 || f.Offset != 5 || f.OwnerID != owner {
		t.Errorf("unexpected clamp %+v", f)
	}
}
