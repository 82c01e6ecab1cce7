package restapi

import (
	"net/http"
	"slices"

	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/models"
	"tubeboard.app/internal/tfl"
)

// linesHandler lists lines. An explicit ?modes= list bypasses the
// profile's saved filters.
func (api *RestAPI) linesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		lines []tfl.Line
		err   error
	)
	if raw := r.URL.Query().Get("modes"); raw != "" {
		modes := slices.DeleteFunc(appconf.ParseList(raw), func(m string) bool { return m == "" })
		if len(modes) == 0 {
			api.validationErrorResponse(w, r, invalidf("modes must not be empty"))
			return
		}
		lines, err = api.Board.LinesForModes(ctx, modes)
	} else {
		var filters []string
		filters, err = api.Board.Session(api.Profile(w, r)).Filters(ctx)
		if err == nil {
			lines, err = api.Board.Lines(ctx, filters)
		}
	}
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}

	tiles := make([]board.LineTile, 0, len(lines))
	for _, l := range lines {
		tiles = append(tiles, board.NewLineTile(l))
	}
	api.sendResponse(w, r, models.NewListResponse(tiles, false, api.Clock))
}

func (api *RestAPI) lineStationsHandler(w http.ResponseWriter, r *http.Request) {
	lineID, err := pathID(r, "lineID")
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}

	stations, err := api.Board.StationsForLine(r.Context(), lineID)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}

	favorites := api.favoriteSet(r, api.Profile(w, r))
	tiles := make([]board.StationTile, 0, len(stations))
	for _, st := range stations {
		tiles = append(tiles, board.NewStationTile(st, favorites[st.ID], api.Board.HasRail(st.ID)))
	}
	api.sendResponse(w, r, models.NewListResponse(tiles, false, api.Clock))
}

// favoriteSet is best effort: stations render without stars if the
// preferences store is unavailable.
func (api *RestAPI) favoriteSet(r *http.Request, profile string) map[string]bool {
	ids, err := api.Board.Session(profile).Favorites(r.Context())
	if err != nil {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
