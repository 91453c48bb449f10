package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AirtableSchema handles GET /admin/airtable-schema
func (h *Handler) AirtableSchema(c echo.Context) error {
	tables, err := h.schema.Tables(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"tables": tables})
}
