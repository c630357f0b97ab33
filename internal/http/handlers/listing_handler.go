package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/dto"
	"github.com/ninerxsolution/trading-market/internal/models"
	"github.com/ninerxsolution/trading-market/internal/service"
)

type ListingUseCase interface {
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	UpdateListing(ctx context.Context, id models.Identity, listingID uuid.UUID, in service.UpdateListingInput) (*models.Listing, error)
}

type ListingHandler struct {
	listings ListingUseCase
}

func NewListingHandler(listings ListingUseCase) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// Get обрабатывает GET /api/listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	listingID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	listing, err := h.listings.GetListing(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// Update обрабатывает PATCH /api/listings/:id.
func (h *ListingHandler) Update(c *gin.Context) {
	id, ok := currentIdentity(c)
	if !ok {
		return
	}
	listingID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateListingRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listings.UpdateListing(c.Request.Context(), id, listingID, service.UpdateListingInput{
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}
