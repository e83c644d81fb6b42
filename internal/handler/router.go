package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/middleware"
)

// RouterDeps are the collaborators mounted by NewRouter. RateLimiter may be nil.
type RouterDeps struct {
	Weather     *WeatherHandler
	Geo         *GeoHandler
	Timezone    *TimezoneHandler
	RateLimiter *middleware.RateLimiter
	Logger      *zap.SugaredLogger
}

// NewRouter wires all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	res := responder{logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		res.writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", http.MethodGet)
		res.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", HandleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Handler)
		}
		r.Get("/weather", deps.Weather.HandleWeather)
		r.Get("/geo/search", deps.Geo.HandleSearch)
		r.Get("/timezone", deps.Timezone.HandleTimezone)
	})

	return r
}

// HandleHealth reports liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	responder{}.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
