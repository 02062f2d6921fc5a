package helpers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/joshua-takyi/venuebook/internal/models"
	storage_go "github.com/supabase-community/storage-go"
)

const VenueFolder = "venues"

// SupabaseImageStore keeps venue images in a public storage bucket.
type SupabaseImageStore struct {
	storage *storage_go.Client
	bucket  string
}

func NewSupabaseImageStore(storage *storage_go.Client, bucket string) *SupabaseImageStore {
	return &SupabaseImageStore{storage: storage, bucket: bucket}
}

func (s *SupabaseImageStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	upsert := false
	cacheControl := "3600"
	_, err := s.storage.UploadFile(s.bucket, name, r, storage_go.FileOptions{
		ContentType:  &contentType,
		Upsert:       &upsert,
		CacheControl: &cacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", name, s.bucket, err)
	}
	return s.storage.GetPublicUrl(s.bucket, name).SignedURL, nil
}

func (s *SupabaseImageStore) Remove(ctx context.Context, publicURL string) error {
	object, ok := supabaseObjectPath(publicURL, s.bucket)
	if !ok {
		return fmt.Errorf("%s is not in bucket %s", publicURL, s.bucket)
	}
	if _, err := s.storage.RemoveFile(s.bucket, []string{object}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", object, err)
	}
	return nil
}

// supabaseObjectPath extracts the object key from .../object/public/<bucket>/<key>.
func supabaseObjectPath(publicURL, bucket string) (string, bool) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", false
	}
	marker := "/object/public/" + bucket + "/"
	i := strings.Index(u.Path, marker)
	if i < 0 {
		return "", false
	}
	object := u.Path[i+len(marker):]
	return object, object != ""
}

// CloudinaryImageStore keeps venue images in a Cloudinary folder.
type CloudinaryImageStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryImageStore(cld *cloudinary.Cloudinary, folder string) *CloudinaryImageStore {
	if folder == "" {
		folder = VenueFolder
	}
	return &CloudinaryImageStore{cld: cld, folder: folder}
}

func (s *CloudinaryImageStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     strings.TrimSuffix(name, path.Ext(name)),
		Folder:       s.folder,
		ResourceType: "image",
		Tags:         []string{"venuebook"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image %s: %w", name, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload image %s: %s", name, res.Error.Message)
	}
	return res.SecureURL, nil
}

func (s *CloudinaryImageStore) Remove(ctx context.Context, publicURL string) error {
	publicID, ok := cloudinaryPublicID(publicURL)
	if !ok {
		return fmt.Errorf("%s is not a cloudinary upload url", publicURL)
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: "image"})
	if err != nil {
		return fmt.Errorf("failed to remove image %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("failed to remove image %s: %s", publicID, res.Error.Message)
	}
	return nil
}

// cloudinaryPublicID turns .../image/upload/v123/venues/abc.jpg into venues/abc.
func cloudinaryPublicID(publicURL string) (string, bool) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", false
	}
	const marker = "/upload/"
	i := strings.Index(u.Path, marker)
	if i < 0 {
		return "", false
	}
	rest := u.Path[i+len(marker):]
	if first, after, found := strings.Cut(rest, "/"); found && len(first) > 1 && first[0] == 'v' && isDigits(first[1:]) {
		rest = after
	}
	rest = strings.TrimSuffix(rest, path.Ext(rest))
	return rest, rest != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// HTTPImageFetcher downloads venue images over plain HTTP(S) for the PDF export.
type HTTPImageFetcher struct {
	Client *http.Client
}

func NewHTTPImageFetcher(timeout time.Duration) *HTTPImageFetcher {
	return &HTTPImageFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, models.MaxVenueImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > models.MaxVenueImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", models.MaxVenueImageBytes)
	}
	return data, nil
}
