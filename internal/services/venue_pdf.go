package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/models"
)

// ImageFetcher downloads a venue image for embedding.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const (
	pdfFontSize    = 15.0
	pdfLineSpacing = 30.0
	pdfMargin      = 50.0
	pdfImageMargin = 20.0
	pdfImageWidth  = 200.0
)

type VenuePDFService struct {
	venues VenueReader
	images ImageFetcher
	logger *slog.Logger
}

func NewVenuePDFService(venues VenueReader, images ImageFetcher, logger *slog.Logger) *VenuePDFService {
	return &VenuePDFService{venues: venues, images: images, logger: logger}
}

// Export loads the venue and writes its one page summary to w.
func (ps *VenuePDFService) Export(ctx context.Context, id uuid.UUID, w io.Writer) (*models.Venue, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid venue ID", ErrValidation)
	}
	venue, err := ps.venues.GetVenueByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ps.Render(ctx, venue, w); err != nil {
		return nil, err
	}
	return venue, nil
}

// loadImage returns the image bytes and the fpdf image type, or ok=false when the image
// is missing, unreachable or not png/jpeg.
func (ps *VenuePDFService) loadImage(ctx context.Context, venue *models.Venue) (data []byte, imageType string, ok bool) {
	if venue.ImageURL == nil || *venue.ImageURL == "" || ps.images == nil {
		return nil, "", false
	}
	data, err := ps.images.Fetch(ctx, *venue.ImageURL)
	if err != nil {
		ps.logger.Warn("failed to load venue image for pdf", "venue_id", venue.ID, "error", err)
		return nil, "", false
	}
	switch mt := mimetype.Detect(data); {
	case mt.Is("image/png"):
		return data, "PNG", true
	case mt.Is("image/jpeg"):
		return data, "JPG", true
	default:
		ps.logger.Warn("unsupported venue image type for pdf", "venue_id", venue.ID, "type", mt.String())
		return nil, "", false
	}
}

func (ps *VenuePDFService) Render(ctx context.Context, venue *models.Venue, w io.Writer) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", pdfFontSize)
	_, pageHeight := pdf.GetPageSize()

	phone := "N/A"
	if venue.Phone != nil && *venue.Phone != "" {
		phone = *venue.Phone
	}
	eventDate := "N/A"
	if venue.EventDate != nil {
		eventDate = venue.EventDate.UTC().Format("Jan 2, 2006 3:04 PM MST")
	}

	lines := []string{
		"Name: " + venue.Name,
		"Address: " + venue.Address,
		"Capacity: " + strconv.Itoa(venue.Capacity),
		"Phone: " + phone,
		"Created: " + venue.CreatedAt.UTC().Format("Jan 2, 2006"),
		"Event Date: " + eventDate,
	}

	y := pdfMargin + pdfFontSize
	for _, line := range lines {
		pdf.Text(pdfMargin, y, tr(line))
		y += pdfLineSpacing
	}

	data, imageType, ok := ps.loadImage(ctx, venue)
	if !ok {
		pdf.Text(pdfMargin, y+pdfImageMargin, "Image: N/A")
	} else {
		name := "venue-" + venue.ID.String()
		info := pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
		if pdf.Err() || info == nil || info.Width() == 0 {
			ps.logger.Warn("venue image could not be decoded for pdf", "venue_id", venue.ID, "error", pdf.Error())
			pdf.ClearError()
			pdf.Text(pdfMargin, y+pdfImageMargin, "Image: N/A")
		} else {
			imgHeight := info.Height() / info.Width() * pdfImageWidth
			top := y - pdfFontSize + pdfImageMargin
			if top+imgHeight <= pageHeight-pdfMargin {
				pdf.ImageOptions(name, pdfMargin, top, pdfImageWidth, imgHeight, false, fpdf.ImageOptions{ImageType: imageType}, 0, "")
			} else {
				pdf.Text(pdfMargin, y+pdfImageMargin, "Image: Too large to display")
			}
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render venue pdf: %w", err)
	}
	return nil
}
