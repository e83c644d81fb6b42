package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/model"
)

var validate = validator.New()

type responder struct {
	logger *zap.SugaredLogger
}

func (h responder) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil && h.logger != nil {
		h.logger.Errorw("could not encode json", "error", err)
	}
}

func (h responder) writeError(w http.ResponseWriter, statusCode int, errMsg string) {
	h.writeJSONResponse(w, statusCode, model.Response{
		Error:   &errMsg,
		Message: "Error",
	})
}

// coordinatesQuery is shared by every endpoint taking lat/lon.
type coordinatesQuery struct {
	Lat *float64 `validate:"required,gte=-90,lte=90"`
	Lon *float64 `validate:"required,gte=-180,lte=180"`
}

func parseCoordinates(r *http.Request) (lat, lon float64, errMsg string) {
	q := r.URL.Query()
	var query coordinatesQuery
	var err error
	if query.Lat, err = parseOptionalFloat(q.Get("lat")); err != nil {
		return 0, 0, "Invalid 'lat' query parameter"
	}
	if query.Lon, err = parseOptionalFloat(q.Get("lon")); err != nil {
		return 0, 0, "Invalid 'lon' query parameter"
	}
	if err := validate.Struct(query); err != nil {
		return 0, 0, validationMessage(err)
	}
	return *query.Lat, *query.Lon, ""
}

func parseOptionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// validationMessage turns validator output into a single client-facing line.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "Invalid query parameters"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("Missing '%s' query parameter", name))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("'%s' must be greater than or equal to %s", name, fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("'%s' must be less than or equal to %s", name, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("Invalid '%s' query parameter", name))
		}
	}
	return strings.Join(msgs, "; ")
}
