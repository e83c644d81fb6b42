package handler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/model"
	"github.com/fakhrymubarak/forecast-api/internal/service"
	"github.com/fakhrymubarak/forecast-api/internal/timezone"
)

// TimezoneHandler exposes the resolver for diagnostics.
type TimezoneHandler struct {
	responder
	Resolver service.TimezoneResolver
	now      func() time.Time
}

func NewTimezoneHandler(resolver service.TimezoneResolver, logger *zap.SugaredLogger) *TimezoneHandler {
	return &TimezoneHandler{
		responder: responder{logger: logger},
		Resolver:  resolver,
		now:       time.Now,
	}
}

// HandleTimezone serves GET /api/v1/timezone?lat=&lon=.
func (h *TimezoneHandler) HandleTimezone(w http.ResponseWriter, r *http.Request) {
	lat, lon, errMsg := parseCoordinates(r)
	if errMsg != "" {
		h.writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	zoneID, err := h.Resolver.Resolve(lat, lon)
	if err != nil {
		if errors.Is(err, timezone.ErrTimezoneUnresolved) {
			h.writeError(w, http.StatusUnprocessableEntity, "Timezone could not be determined for the given coordinates")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to resolve timezone")
		return
	}

	offset, err := timezone.OffsetLabel(zoneID, h.now())
	if err != nil {
		if h.logger != nil {
			h.logger.Errorw("Failed to format offset", "zone", zoneID, "error", err)
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to resolve timezone")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, model.Response{
		Data:    model.TimezoneInfo{TimezoneID: zoneID, UTCOffset: offset},
		Message: "Success",
	})
}
