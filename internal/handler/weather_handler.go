package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/model"
	"github.com/fakhrymubarak/forecast-api/internal/service"
)

type WeatherHandler struct {
	responder
	WeatherService service.WeatherServiceInterface
}

func NewWeatherHandler(svc service.WeatherServiceInterface, logger *zap.SugaredLogger) *WeatherHandler {
	return &WeatherHandler{
		responder:      responder{logger: logger},
		WeatherService: svc,
	}
}

// HandleWeather serves GET /api/v1/weather?lat=&lon=.
func (h *WeatherHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, errMsg := parseCoordinates(r)
	if errMsg != "" {
		h.writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	weather, err := h.WeatherService.GetWeather(r.Context(), lat, lon)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch weather data")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, model.Response{
		Data:     weather.Entries,
		Metadata: weather.Metadata.AsMap(),
		Message:  "Success",
	})
}
