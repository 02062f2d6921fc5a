package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/middleware"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/joshua-takyi/venuebook/internal/services"
)

func parseVenueID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid venue ID"))
		return uuid.Nil, false
	}
	return id, true
}

// bindVenueForm reads the multipart fields and the optional "image" file. The caller
// closes the returned closer.
func bindVenueForm(c *gin.Context) (*models.VenueInput, *services.VenueImage, func(), error) {
	var in models.VenueInput
	if err := c.ShouldBind(&in); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: invalid venue form: %v", services.ErrValidation, err)
	}

	noop := func() {}
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return &in, nil, noop, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: invalid image upload: %v", services.ErrValidation, err)
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: unreadable image upload: %v", services.ErrValidation, err)
	}
	return &in, &services.VenueImage{Reader: file, Size: header.Size}, func() { file.Close() }, nil
}

func CreateVenueHandler(v *services.VenuesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok {
			return
		}
		in, img, closeImage, err := bindVenueForm(c)
		if err != nil {
			respondAPIError(c, err)
			return
		}
		defer closeImage()

		createdVenue, err := v.CreateVenue(c.Request.Context(), identity, in, img, middleware.AccessToken(c))
		if err != nil {
			respondAPIError(c, err)
			return
		}

		c.JSON(http.StatusCreated, models.SuccessResponse(createdVenue, "Venue created successfully"))
	}
}

func ListVenues(v *services.VenuesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Parse pagination parameters
		limit := c.DefaultQuery("limit", "10")
		offset := c.DefaultQuery("offset", "0")
		limitInt, err := strconv.Atoi(limit)
		if err != nil || limitInt <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid limit parameter"))
			return
		}
		offsetInt, err := strconv.Atoi(offset)
		if err != nil || offsetInt < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid offset parameter"))
			return
		}

		filter := models.VenueFilter{Offset: offsetInt, Limit: limitInt}
		if c.Query("owner") == "me" {
			identity, ok := currentIdentity(c)
			if !ok {
				return
			}
			filter.OwnerID = &identity.UserID
		}

		venues, total, err := v.ListVenues(c.Request.Context(), filter, middleware.AccessToken(c))
		if err != nil {
			respondAPIError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.PaginatedResponse(venues, filter, total))
	}
}

func ListVenueByID(v *services.VenuesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseVenueID(c)
		if !ok {
			return
		}
		venue, err := v.GetVenue(c.Request.Context(), id)
		if err != nil {
			respondAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(venue, ""))
	}
}

// UpdateVenue answers with the stored record so the dashboard can replace its copy.
func UpdateVenue(v *services.VenuesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseVenueID(c)
		if !ok {
			return
		}
		in, img, closeImage, err := bindVenueForm(c)
		if err != nil {
			respondAPIError(c, err)
			return
		}
		defer closeImage()

		updated, err := v.UpdateVenue(c.Request.Context(), id, in, img, middleware.AccessToken(c))
		if err != nil {
			respondAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(updated, "Venue updated successfully"))
	}
}

func DeleteVenue(v *services.VenuesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseVenueID(c)
		if !ok {
			return
		}
		if err := v.DeleteVenue(c.Request.Context(), id, middleware.AccessToken(c)); err != nil {
			respondAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Venue deleted successfully"))
	}
}

// ExportVenuePDF renders the venue summary as a downloadable attachment.
func ExportVenuePDF(p *services.VenuePDFService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseVenueID(c)
		if !ok {
			return
		}
		var buf bytes.Buffer
		venue, err := p.Export(c.Request.Context(), id, &buf)
		if err != nil {
			respondAPIError(c, err)
			return
		}
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": pdfFileName(venue.Name),
		}))
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}

func pdfFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "venue"
	}
	return name + ".pdf"
}
