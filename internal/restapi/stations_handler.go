package restapi

import (
	"math"
	"net/http"
	"strings"

	"tubeboard.app/internal/board"
	"tubeboard.app/internal/models"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/transit"
)

const (
	defaultNearRadius = 500.0
	maxNearRadius     = 5000.0
	defaultNearLimit  = 20
	maxNearLimit      = 100
)

func (api *RestAPI) stationHandler(w http.ResponseWriter, r *http.Request) {
	stationID, err := pathID(r, "stationID")
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	st, err := api.Board.Station(r.Context(), stationID)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	favorites := api.favoriteSet(r, api.Profile(w, r))
	tile := board.NewStationTile(st, favorites[st.ID], api.Board.HasRail(st.ID))
	api.sendResponse(w, r, models.NewEntryResponse(tile, api.Clock))
}

// arrivalsHandler serves the platform-grouped board. ?line= keeps only one
// line, matched by id or name.
func (api *RestAPI) arrivalsHandler(w http.ResponseWriter, r *http.Request) {
	stationID, err := pathID(r, "stationID")
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	arrivals, err := api.Board.Arrivals(r.Context(), stationID)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}

	line := strings.TrimSpace(r.URL.Query().Get("line"))
	if line != "" {
		arrivals = filterArrivalsByLine(arrivals, line)
	}

	data := models.ArrivalsData{
		StationID: stationID,
		Line:      line,
		Board:     transit.BuildBoard(arrivals, nil, api.Clock.Now(), api.Location),
	}
	api.sendResponse(w, r, models.NewEntryResponse(data, api.Clock))
}

func filterArrivalsByLine(arrivals []tfl.Arrival, line string) []tfl.Arrival {
	out := make([]tfl.Arrival, 0, len(arrivals))
	for _, a := range arrivals {
		if strings.EqualFold(a.LineID, line) || strings.EqualFold(a.LineName, line) {
			out = append(out, a)
		}
	}
	return out
}

func (api *RestAPI) railArrivalsHandler(w http.ResponseWriter, r *http.Request) {
	stationID, err := pathID(r, "stationID")
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	rows, err := api.Board.RailBoard(r.Context(), stationID)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewListResponse(rows, false, api.Clock))
}

// stationsNearHandler answers from the station index, which only knows
// stations that were preloaded or browsed.
func (api *RestAPI) stationsNearHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		api.validationErrorResponse(w, r, invalidf("lat and lon are required"))
		return
	}

	lat, err := floatParam(r, "lat", 0)
	if err == nil {
		if math.IsNaN(lat) || lat < -90 || lat > 90 {
			err = invalidf("lat must be between -90 and 90")
		}
	}
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	lon, err := floatParam(r, "lon", 0)
	if err == nil {
		if math.IsNaN(lon) || lon < -180 || lon > 180 {
			err = invalidf("lon must be between -180 and 180")
		}
	}
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	radius, err := floatParam(r, "radius", defaultNearRadius)
	if err == nil {
		if math.IsNaN(radius) || radius <= 0 || radius > maxNearRadius {
			err = invalidf("radius must be between 0 and %.0f meters", maxNearRadius)
		}
	}
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	limit, err := intParam(r, "limit", defaultNearLimit)
	if err == nil && (limit <= 0 || limit > maxNearLimit) {
		err = invalidf("limit must be between 1 and %d", maxNearLimit)
	}
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	near := api.Board.Nearby(lat, lon, radius, limit+1)
	limitExceeded := len(near) > limit
	if limitExceeded {
		near = near[:limit]
	}
	api.sendResponse(w, r, models.NewListResponse(near, limitExceeded, api.Clock))
}
