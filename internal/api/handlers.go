package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/studybible/versesim/internal/corpus"
	"github.com/studybible/versesim/internal/search"
)

// Handler serves the query API.
type Handler struct {
	search *search.Service
}

// NewHandler creates an API handler over a query service.
func NewHandler(searchService *search.Service) *Handler {
	return &Handler{search: searchService}
}

// RegisterRoutes attaches handler routes to the server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/status", h.Status)
	e.POST("/api/similar_verses", h.SimilarVerses)
}

// Health handles health check requests.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Status reports loaded index statistics.
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.search.GetStatus())
}

// bookField accepts a book name or an integer book id.
type bookField string

func (b *bookField) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*b = bookField(name)
		return nil
	}
	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	if name := corpus.BookName(id); name != "" {
		*b = bookField(name)
	} else {
		// Out-of-range ids fall through to an unmatched reference,
		// which is an empty result rather than a client error.
		*b = bookField(strconv.Itoa(id))
	}
	return nil
}

// intField accepts a JSON number or a numeric string.
type intField int

func (n *intField) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = intField(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*n = intField(i)
	return nil
}

// SimilarVersesRequest is the body of POST /api/similar_verses.
// Pointer fields distinguish absent or null values from zero values.
type SimilarVersesRequest struct {
	Book    *bookField `json:"book"`
	Chapter *intField  `json:"chapter"`
	Verse   *intField  `json:"verse"`
	K       int        `json:"k,omitempty"`
}

// SimilarVerses handles similarity queries. A reference outside the
// corpus is a valid query with an empty-array response, not an error.
func (h *Handler) SimilarVerses(c echo.Context) error {
	var req SimilarVersesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	if req.Book == nil || *req.Book == "" || req.Chapter == nil || req.Verse == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Missing book, chapter, or verse",
		})
	}

	matches, err := h.search.FindSimilar(string(*req.Book), int(*req.Chapter), int(*req.Verse), req.K)
	if err != nil {
		log.Error().Err(err).Msg("Similarity search failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Search failed",
		})
	}

	return c.JSON(http.StatusOK, matches)
}
