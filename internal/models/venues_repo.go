package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
)

type VenuesRepo interface {
	CreateVenue(ctx context.Context, venue *Venue, accessToken string) (*Venue, error)
	GetVenueByID(ctx context.Context, id uuid.UUID) (*Venue, error)
	ListVenues(ctx context.Context, filter VenueFilter, accessToken string) ([]*Venue, int, error)
	UpdateVenue(ctx context.Context, id uuid.UUID, fields map[string]interface{}, accessToken string) (*Venue, error)
	DeleteVenue(ctx context.Context, id uuid.UUID, accessToken string) error
}

func (su *SupabaseRepo) CreateVenue(ctx context.Context, venue *Venue, accessToken string) (*Venue, error) {
	client, err := su.GetAuthenticatedClient(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %v", err)
	}

	data, _, err := client.
		From(VenuesTable).
		Insert(venue.ToRow(), false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert venue: %w", err)
	}

	var created []Venue
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to unmarshal venue: %v", err)
	}
	if len(created) == 0 {
		// RLS may hide the returned row from the caller; the insert itself succeeded
		return venue, nil
	}
	return &created[0], nil
}

// GetVenueByID reads with the service client so the webhook path can resolve venue names.
func (su *SupabaseRepo) GetVenueByID(ctx context.Context, id uuid.UUID) (*Venue, error) {
	data, _, err := su.privileged().
		From(VenuesTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}

	var venues []Venue
	if err := json.Unmarshal(data, &venues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal venue: %v", err)
	}
	if len(venues) == 0 {
		return nil, ErrNotFound
	}
	return &venues[0], nil
}

func (su *SupabaseRepo) ListVenues(ctx context.Context, filter VenueFilter, accessToken string) ([]*Venue, int, error) {
	client, err := su.GetAuthenticatedClient(accessToken)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create authenticated client: %v", err)
	}

	query := client.From(VenuesTable).Select("*", "exact", false)
	if filter.OwnerID != nil {
		query = query.Eq("owner_user_id", filter.OwnerID.String())
	}
	data, count, err := query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Range(filter.Offset, filter.Offset+filter.Limit-1, "").
		Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get venues: %w", err)
	}

	venues := []*Venue{}
	if err := json.Unmarshal(data, &venues); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal venues: %v", err)
	}
	return venues, int(count), nil
}

func (su *SupabaseRepo) UpdateVenue(ctx context.Context, id uuid.UUID, fields map[string]interface{}, accessToken string) (*Venue, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	client, err := su.GetAuthenticatedClient(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticated client: %v", err)
	}

	data, _, err := client.From(VenuesTable).
		Update(fields, "representation", "exact").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update venue: %w", err)
	}

	var updated []Venue
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated venue: %v", err)
	}
	if len(updated) == 0 {
		return nil, ErrNotFound
	}
	return &updated[0], nil
}

func (su *SupabaseRepo) DeleteVenue(ctx context.Context, id uuid.UUID, accessToken string) error {
	client, err := su.GetAuthenticatedClient(accessToken)
	if err != nil {
		return fmt.Errorf("failed to create authenticated client: %v", err)
	}

	data, _, err := client.From(VenuesTable).
		Delete("representation", "exact").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete venue: %w", err)
	}

	var deleted []map[string]interface{}
	if err := json.Unmarshal(data, &deleted); err != nil {
		return fmt.Errorf("failed to unmarshal deleted venue data: %v", err)
	}
	if len(deleted) == 0 {
		return ErrNotFound
	}
	return nil
}
