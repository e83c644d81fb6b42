package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/model"
	"github.com/fakhrymubarak/forecast-api/internal/service"
)

type GeoHandler struct {
	responder
	GeoService service.GeoServiceInterface
}

func NewGeoHandler(svc service.GeoServiceInterface, logger *zap.SugaredLogger) *GeoHandler {
	return &GeoHandler{
		responder:  responder{logger: logger},
		GeoService: svc,
	}
}

type searchQuery struct {
	Name  string `validate:"required"`
	Limit int    `validate:"gte=1,lte=50"`
}

// HandleSearch serves GET /api/v1/geo/search?name=&limit=.
func (h *GeoHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := searchQuery{
		Name:  strings.TrimSpace(q.Get("name")),
		Limit: service.DefaultSearchLimit,
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid 'limit' query parameter")
			return
		}
		query.Limit = limit
	}
	if err := validate.Struct(query); err != nil {
		h.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	results, err := h.GeoService.Search(r.Context(), query.Name, query.Limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSearch) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Geocoding service unavailable")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, model.Response{
		Data: results,
		Metadata: map[string]any{
			"limit": query.Limit,
			"count": len(results),
		},
		Message: "Success",
	})
}
