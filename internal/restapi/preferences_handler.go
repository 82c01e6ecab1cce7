package restapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"

	"tubeboard.app/internal/board"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/models"
	"tubeboard.app/internal/transit"
)

const maxFiltersBody = 4 << 10

// availableFilters are the toggles a profile may save.
func availableFilters() []string {
	return append(slices.Clone(transit.ModeFilters), transit.FilterFavorites)
}

func (api *RestAPI) favoritesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := api.Board.Session(api.Profile(w, r)).Favorites(ctx)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}

	stations := api.Board.FavoriteStations(ctx, ids)
	tiles := make([]board.StationTile, 0, len(stations))
	for _, st := range stations {
		tiles = append(tiles, board.NewStationTile(st, true, api.Board.HasRail(st.ID)))
	}
	api.sendResponse(w, r, models.NewListResponse(tiles, false, api.Clock))
}

func (api *RestAPI) toggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	stationID, err := pathID(r, "stationID")
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	session := api.Board.Session(api.Profile(w, r))
	on, err := session.ToggleFavorite(r.Context(), stationID)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	ids, err := session.Favorites(r.Context())
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	entry := models.FavoriteToggle{StationID: stationID, Favorite: on, Favorites: ids}
	api.sendResponse(w, r, models.NewEntryResponse(entry, api.Clock))
}

func (api *RestAPI) filtersHandler(w http.ResponseWriter, r *http.Request) {
	active, err := api.Board.Session(api.Profile(w, r)).Filters(r.Context())
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendFilters(w, r, active)
}

// saveFiltersHandler replaces the profile's filters. Unknown names are
// rejected and duplicates collapsed; an empty list is kept as empty.
func (api *RestAPI) saveFiltersHandler(w http.ResponseWriter, r *http.Request) {
	var req models.FiltersRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFiltersBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = invalidf("request body is required")
		} else {
			err = invalidf("malformed filters: %v", err)
		}
		api.validationErrorResponse(w, r, err)
		return
	}

	available := availableFilters()
	filters := make([]string, 0, len(req.Filters))
	for _, f := range req.Filters {
		if !slices.Contains(available, f) {
			api.validationErrorResponse(w, r, invalidf("unknown filter %q", f))
			return
		}
		if !slices.Contains(filters, f) {
			filters = append(filters, f)
		}
	}

	snap, err := api.Board.Session(api.Profile(w, r)).SetFilters(r.Context(), filters)
	if err != nil {
		if snap.SessionID == "" {
			api.errorResponse(w, r, err)
			return
		}
		// Saved; only the line list reload failed and the session carries the banner.
		logging.LogError(api.logger(r), "filters saved but line reload failed", err)
	}
	api.sendFilters(w, r, filters)
}

func (api *RestAPI) sendFilters(w http.ResponseWriter, r *http.Request, active []string) {
	if active == nil {
		active = []string{}
	}
	entry := models.FiltersData{Active: active, Available: availableFilters()}
	api.sendResponse(w, r, models.NewEntryResponse(entry, api.Clock))
}
