package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/middleware"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/joshua-takyi/venuebook/internal/services"
	"github.com/supabase-community/gotrue-go/types"
)

var (
	adminID = uuid.MustParse("4c1a2b3d-0e9f-4a8b-9c7d-6e5f4a3b2c1d")
	guestID = uuid.MustParse("7d6c5b4a-3928-4716-a5b4-c3d2e1f0a9b8")
)

// sessions maps a bearer token to a signed in user.
type sessions map[string]*models.Profile

func (s sessions) ResolveUser(ctx context.Context, credential string) (*models.Identity, error) {
	p, ok := s[credential]
	if !ok {
		return nil, errors.New("invalid JWT")
	}
	return &models.Identity{UserID: p.ID, Email: p.Email}, nil
}

func (s sessions) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	return nil, errors.New("refresh not supported")
}

func (s sessions) GetProfile(ctx context.Context, identity *models.Identity) (*models.Profile, error) {
	for _, p := range s {
		if p.ID == identity.UserID {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

var testSessions = sessions{
	"admin-token": {ID: adminID, Email: "admin@example.com", FullName: "Kofi Boateng", Role: models.RoleAdmin},
	"guest-token": {ID: guestID, Email: "guest@example.com", FullName: "Ama Mensah", Role: models.RoleUser},
}

type venueTable struct {
	mu     sync.Mutex
	venues map[uuid.UUID]*models.Venue
	tokens []string
	// err fails every read when set
	err error
}

func (t *venueTable) CreateVenue(ctx context.Context, venue *models.Venue, accessToken string) (*models.Venue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.venues[venue.ID] = venue
	t.tokens = append(t.tokens, accessToken)
	return venue, nil
}

func (t *venueTable) GetVenueByID(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	v, ok := t.venues[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (t *venueTable) ListVenues(ctx context.Context, filter models.VenueFilter, accessToken string) ([]*models.Venue, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, 0, t.err
	}
	var out []*models.Venue
	for _, v := range t.venues {
		if filter.OwnerID == nil || *filter.OwnerID == v.OwnerUserID {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

func (t *venueTable) UpdateVenue(ctx context.Context, id uuid.UUID, fields map[string]interface{}, accessToken string) (*models.Venue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.venues[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	updated := *v
	if name, ok := fields["name"].(string); ok {
		updated.Name = name
	}
	if url, ok := fields["image_url"].(string); ok {
		updated.ImageURL = &url
	}
	t.venues[id] = &updated
	return &updated, nil
}

func (t *venueTable) DeleteVenue(ctx context.Context, id uuid.UUID, accessToken string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.venues[id]; !ok {
		return models.ErrNotFound
	}
	delete(t.venues, id)
	return nil
}

type bucket struct {
	mu       sync.Mutex
	uploaded []string
	removed  []string
}

func (b *bucket) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploaded = append(b.uploaded, contentType)
	return "https://cdn.example.com/venues/" + name, nil
}

func (b *bucket) Remove(ctx context.Context, publicURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed = append(b.removed, publicURL)
	return nil
}

type venueRig struct {
	router *gin.Engine
	table  *venueTable
	bucket *bucket
}

// newVenueRig mounts the venue routes behind the real auth and role middleware.
func newVenueRig(seed ...*models.Venue) *venueRig {
	rig := &venueRig{
		table:  &venueTable{venues: map[uuid.UUID]*models.Venue{}},
		bucket: &bucket{},
	}
	for _, v := range seed {
		rig.table.venues[v.ID] = v
	}
	vs := services.NewVenuesService(rig.table, rig.bucket, nil, discard)
	ps := services.NewVenuePDFService(rig.table, nil, discard)

	r := gin.New()
	protected := r.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(testSessions, false, discard))
	protected.GET("/profile", GetProfile())

	venues := protected.Group("/venues")
	venues.GET("", ListVenues(vs))
	venues.GET("/:id", ListVenueByID(vs))
	venues.GET("/:id/pdf", ExportVenuePDF(ps))

	admin := venues.Group("")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.POST("", CreateVenueHandler(vs))
	admin.PUT("/:id", UpdateVenue(vs))
	admin.DELETE("/:id", DeleteVenue(vs))

	rig.router = r
	return rig
}

func (rig *venueRig) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, req)
	return w
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func venueForm(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "hall.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func apiResponse(t *testing.T, w *httptest.ResponseRecorder) models.ApiResponse {
	t.Helper()
	var res models.ApiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("response is not json: %v (%s)", err, w.Body.String())
	}
	return res
}

func seededVenue(name string, owner uuid.UUID) *models.Venue {
	return &models.Venue{ID: uuid.New(), OwnerUserID: owner, Name: name, Address: "12 Ring Road, Accra", Capacity: 150}
}

func TestCreateVenueAsAdmin(t *testing.T) {
	rig := newVenueRig()
	body, ct := venueForm(t, map[string]string{
		"name":       "Hall A",
		"address":    "12 Ring Road, Accra",
		"capacity":   "150",
		"event_date": "2025-06-01",
	}, pngHeader)

	w := rig.do(http.MethodPost, "/api/v1/venues", "admin-token", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(rig.table.venues) != 1 {
		t.Fatalf("expected one stored venue, got %d", len(rig.table.venues))
	}
	for _, v := range rig.table.venues {
		if v.OwnerUserID != adminID {
			t.Errorf("owner = %s, want %s", v.OwnerUserID, adminID)
		}
		if v.ImageURL == nil || !strings.HasSuffix(*v.ImageURL, ".png") {
			t.Errorf("unexpected image url %v", v.ImageURL)
		}
		if v.EventDate == nil || v.EventDate.Format("2006-01-02") != "2025-06-01" {
			t.Errorf("unexpected event date %v", v.EventDate)
		}
	}
	if len(rig.bucket.uploaded) != 1 || rig.bucket.uploaded[0] != "image/png" {
		t.Errorf("unexpected uploads %v", rig.bucket.uploaded)
	}
	if rig.table.tokens[0] != "admin-token" {
		t.Errorf("repository must receive the caller's token, got %q", rig.table.tokens[0])
	}
}

func TestCreateVenueRejected(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		fields map[string]string
		image  []byte
		want   int
	}{
		{"anonymous", "", map[string]string{"name": "Hall A", "address": "x", "capacity": "10"}, nil, http.StatusUnauthorized},
		{"not an admin", "guest-token", map[string]string{"name": "Hall A", "address": "x", "capacity": "10"}, nil, http.StatusForbidden},
		{"missing name", "admin-token", map[string]string{"address": "x", "capacity": "10"}, nil, http.StatusBadRequest},
		{"zero capacity", "admin-token", map[string]string{"name": "Hall A", "address": "x", "capacity": "0"}, nil, http.StatusBadRequest},
		{"bad event date", "admin-token", map[string]string{"name": "Hall A", "address": "x", "capacity": "10", "event_date": "June"}, nil, http.StatusBadRequest},
		{"not an image", "admin-token", map[string]string{"name": "Hall A", "address": "x", "capacity": "10"}, []byte("plain text, not a picture"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newVenueRig()
			body, ct := venueForm(t, tt.fields, tt.image)
			w := rig.do(http.MethodPost, "/api/v1/venues", tt.token, body, ct)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if len(rig.table.venues) != 0 || len(rig.bucket.uploaded) != 0 {
				t.Error("rejected requests must not store anything")
			}
		})
	}
}

func TestListVenues(t *testing.T) {
	rig := newVenueRig(
		seededVenue("Hall A", adminID),
		seededVenue("Hall B", adminID),
		seededVenue("Garden", guestID),
	)

	w := rig.do(http.MethodGet, "/api/v1/venues?limit=2&offset=2", "guest-token", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := apiResponse(t, w)
	if res.Page != 2 || res.Limit != 2 || res.Total != 3 || res.HasMore {
		t.Errorf("unexpected pagination page=%d limit=%d total=%d has_more=%v", res.Page, res.Limit, res.Total, res.HasMore)
	}

	w = rig.do(http.MethodGet, "/api/v1/venues?limit=500", "guest-token", nil, "")
	if res := apiResponse(t, w); res.Limit != models.MaxVenuePageSize || res.Page != 1 {
		t.Errorf("oversized limit should be reported clamped, got limit=%d page=%d", res.Limit, res.Page)
	}

	w = rig.do(http.MethodGet, "/api/v1/venues?owner=me", "guest-token", nil, "")
	if res := apiResponse(t, w); res.Total != 1 {
		t.Errorf("owner=me should only list the caller's venues, got %d", res.Total)
	}

	for _, q := range []string{"limit=0", "limit=abc", "offset=-1"} {
		w := rig.do(http.MethodGet, "/api/v1/venues?"+q, "guest-token", nil, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestGetVenue(t *testing.T) {
	hall := seededVenue("Hall A", adminID)
	rig := newVenueRig(hall)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/venues/" + hall.ID.String(), http.StatusOK},
		{"/api/v1/venues/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/venues/" + uuid.New().String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		w := rig.do(http.MethodGet, tt.path, "guest-token", nil, "")
		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}

func TestVenueStoreFailureHidesCause(t *testing.T) {
	hall := seededVenue("Hall A", adminID)
	rig := newVenueRig(hall)
	rig.table.err = errors.New(`(PGRST301) could not connect to server: Connection refused on db.internal:5432`)

	paths := []string{
		"/api/v1/venues",
		"/api/v1/venues/" + hall.ID.String(),
		"/api/v1/venues/" + hall.ID.String() + "/pdf",
	}
	for _, path := range paths {
		w := rig.do(http.MethodGet, path, "guest-token", nil, "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, w.Code)
		}
		res := apiResponse(t, w)
		if res.Success || res.Error != "Internal server error" {
			t.Errorf("%s: unexpected body %s", path, w.Body.String())
		}
		if strings.Contains(w.Body.String(), "db.internal") {
			t.Errorf("%s: store details leaked: %s", path, w.Body.String())
		}
	}
}

func TestUpdateVenueReplacesImage(t *testing.T) {
	hall := seededVenue("Hall A", adminID)
	old := "https://cdn.example.com/venues/old.png"
	hall.ImageURL = &old
	rig := newVenueRig(hall)

	body, ct := venueForm(t, map[string]string{"name": "Hall A (renovated)", "address": hall.Address, "capacity": "200"}, pngHeader)
	w := rig.do(http.MethodPut, "/api/v1/venues/"+hall.ID.String(), "admin-token", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	stored := rig.table.venues[hall.ID]
	if stored.Name != "Hall A (renovated)" {
		t.Errorf("name = %q", stored.Name)
	}
	if len(rig.bucket.removed) != 1 || rig.bucket.removed[0] != old {
		t.Errorf("old image should be removed, got %v", rig.bucket.removed)
	}
}

func TestDeleteVenue(t *testing.T) {
	hall := seededVenue("Hall A", adminID)
	rig := newVenueRig(hall)

	if w := rig.do(http.MethodDelete, "/api/v1/venues/"+hall.ID.String(), "guest-token", nil, ""); w.Code != http.StatusForbidden {
		t.Fatalf("guest delete: expected 403, got %d", w.Code)
	}
	if w := rig.do(http.MethodDelete, "/api/v1/venues/"+hall.ID.String(), "admin-token", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("admin delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := rig.table.venues[hall.ID]; ok {
		t.Error("venue still stored after delete")
	}
	if w := rig.do(http.MethodDelete, "/api/v1/venues/"+hall.ID.String(), "admin-token", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}

func TestExportVenuePDF(t *testing.T) {
	hall := seededVenue("Hall A/B", adminID)
	rig := newVenueRig(hall)

	w := rig.do(http.MethodGet, fmt.Sprintf("/api/v1/venues/%s/pdf", hall.ID), "guest-token", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="Hall A_B.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a pdf document")
	}
}

func TestGetProfile(t *testing.T) {
	rig := newVenueRig()
	tests := []struct {
		token     string
		wantRole  string
		wantAdmin bool
	}{
		{"admin-token", models.RoleAdmin, true},
		{"guest-token", models.RoleUser, false},
	}
	for _, tt := range tests {
		w := rig.do(http.MethodGet, "/api/v1/profile", tt.token, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.token, w.Code)
		}
		body := jsonBody(t, w)
		if body["role"] != tt.wantRole || body["is_admin"] != tt.wantAdmin {
			t.Errorf("%s: unexpected profile %v", tt.token, body)
		}
	}
}
