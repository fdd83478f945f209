package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/weather"
)

// InfoHandler serves the sidebar widgets: today's date and the weather.
type InfoHandler struct {
	weather *weather.Client
	now     func() time.Time
	logger  *slog.Logger
}

func NewInfoHandler(w *weather.Client, logger *slog.Logger) *InfoHandler {
	return &InfoHandler{weather: w, now: time.Now, logger: logger}
}

// HandleWeather proxies current conditions for the given coordinates.
//
// HTTP: GET /api/weather?latitude=51.5&longitude=-0.12
// RESPONSE: the Open-Meteo document, including "current_weather"
func (h *InfoHandler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := weather.ParseCoordinates(q.Get("latitude"), q.Get("longitude"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data, err := h.weather.Current(r.Context(), lat, lon)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type dateResponse struct {
	CurrentDate string `json:"currentDate"`
}

// HandleDate returns the server's calendar day.
//
// HTTP: GET /api/date
func (h *InfoHandler) HandleDate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dateResponse{CurrentDate: h.now().Format(model.DateLayout)})
}
