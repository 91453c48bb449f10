package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/models"
)

// SearchGuests handles GET /search?phone=
func (h *Handler) SearchGuests(c echo.Context) error {
	guests, err := h.guests.Lookup(c.Request().Context(), c.QueryParam("phone"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, guests)
}

// SearchFamilies handles GET /search/families?phone=
func (h *Handler) SearchFamilies(c echo.Context) error {
	families, err := h.guests.Families(c.Request().Context(), c.QueryParam("phone"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, families)
}

// SubmitRSVP handles POST /submit
func (h *Handler) SubmitRSVP(c echo.Context) error {
	var sub models.Submission
	if err := c.Bind(&sub); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := c.Validate(&sub); err != nil {
		return err
	}

	result, err := h.rsvp.Submit(c.Request().Context(), sub)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
