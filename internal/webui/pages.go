package webui

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"tubeboard.app/internal/board"
	"tubeboard.app/internal/transit"
)

const maxLineName = 64

func (ui *WebUI) indexHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := ui.session(w, r).ShowLines(r.Context())
	ui.render(w, r, "index.html", pageData{
		Title:    "Tube Board",
		Path:     "/",
		Snapshot: snap,
		Filters:  filterOptions(snap.Filters),
	}, err)
}

func (ui *WebUI) lineHandler(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(r, "lineID")
	if !ok {
		http.Error(w, "Invalid line", http.StatusBadRequest)
		return
	}
	snap, err := ui.session(w, r).ShowLine(r.Context(), lineID)

	title := lineID
	if snap.Line != nil && snap.Line.Name != "" {
		title = snap.Line.Name
	}
	ui.render(w, r, "line.html", pageData{
		Title:    title,
		Path:     r.URL.Path,
		Back:     "/",
		Snapshot: snap,
	}, err)
}

// stationHandler shows the platform board. When the session already shows
// this station its polled board is reused, so a reload does not refetch.
func (ui *WebUI) stationHandler(w http.ResponseWriter, r *http.Request) {
	stationID, ok := pathID(r, "stationID")
	if !ok {
		http.Error(w, "Invalid station", http.StatusBadRequest)
		return
	}

	session := ui.session(w, r)
	snap := session.Snapshot()
	var err error
	if snap.View != board.ViewArrivals || snap.Station == nil || snap.Station.ID != stationID {
		snap, err = session.ShowStation(r.Context(), stationID)
	}
	ui.render(w, r, "station.html", stationPage(snap, stationID, int(ui.Config.ArrivalsRefresh.Seconds())), err)
}

func stationPage(snap board.Snapshot, stationID string, refresh int) pageData {
	data := pageData{
		Title:    stationID,
		Path:     "/stations/" + stationID,
		Back:     "/",
		Refresh:  refresh,
		Snapshot: snap,
	}
	if snap.Station != nil {
		data.Title = snap.Station.ShortName
	}
	if snap.Line != nil && snap.Line.ID != "" {
		data.Back = "/lines/" + snap.Line.ID
	}
	return data
}

// detailHandler shows the countdown. An arrival that is no longer listed
// sends the browser back to the station board, where the session's banner
// says why.
func (ui *WebUI) detailHandler(w http.ResponseWriter, r *http.Request) {
	stationID, ok := pathID(r, "stationID")
	if !ok {
		http.Error(w, "Invalid station", http.StatusBadRequest)
		return
	}
	arrivalID, ok := pathID(r, "arrivalID")
	if !ok {
		http.Error(w, "Invalid arrival", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	session := ui.session(w, r)
	snap := session.Snapshot()
	showing := snap.View == board.ViewDetail && snap.Detail != nil && snap.Detail.ArrivalID == arrivalID &&
		snap.Station != nil && snap.Station.ID == stationID

	var err error
	if !showing {
		if snap.Station == nil || snap.Station.ID != stationID {
			if snap, err = session.ShowStation(ctx, stationID); err != nil {
				ui.render(w, r, "station.html", stationPage(snap, stationID, 0), err)
				return
			}
		}
		snap, err = session.ShowArrival(ctx, arrivalID)
		if errors.Is(err, board.ErrArrivalNotFound) {
			http.Redirect(w, r, "/stations/"+stationID, http.StatusSeeOther)
			return
		}
	}

	data := pageData{
		Title:         "Arrival",
		Path:          r.URL.Path,
		Back:          "/stations/" + stationID,
		Refresh:       int(ui.Config.DetailRefresh.Seconds()),
		Snapshot:      snap,
		Circumference: transit.RingCircumference,
		RingMax:       transit.RingMaxSeconds,
	}
	if snap.Detail != nil {
		data.Title = snap.Detail.Destination
	}
	ui.render(w, r, "detail.html", data, err)
}

func (ui *WebUI) saveFiltersHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	filters := make([]string, 0, len(r.PostForm["filter"]))
	for _, f := range r.PostForm["filter"] {
		if _, known := filterLabels[f]; !known {
			http.Error(w, "Unknown filter", http.StatusBadRequest)
			return
		}
		if !slices.Contains(filters, f) {
			filters = append(filters, f)
		}
	}

	if snap, err := ui.session(w, r).SetFilters(r.Context(), filters); err != nil && snap.SessionID == "" {
		ui.errorPage(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ui *WebUI) toggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	stationID, ok := pathID(r, "stationID")
	if !ok {
		http.Error(w, "Invalid station", http.StatusBadRequest)
		return
	}
	if _, err := ui.session(w, r).ToggleFavorite(r.Context(), stationID); err != nil {
		ui.errorPage(w, r, err)
		return
	}
	http.Redirect(w, r, localRedirect(r.FormValue("next"), "/stations/"+stationID), http.StatusSeeOther)
}

func (ui *WebUI) lineFilterHandler(w http.ResponseWriter, r *http.Request) {
	stationID, ok := pathID(r, "stationID")
	if !ok {
		http.Error(w, "Invalid station", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.FormValue("line"))
	if name == "" || len(name) > maxLineName {
		http.Error(w, "Invalid line", http.StatusBadRequest)
		return
	}

	session := ui.session(w, r)
	if snap := session.Snapshot(); snap.Station == nil || snap.Station.ID != stationID {
		if _, err := session.ShowStation(r.Context(), stationID); err != nil {
			ui.errorPage(w, r, err)
			return
		}
	}
	if _, err := session.ToggleLineFilter(name); err != nil {
		ui.errorPage(w, r, err)
		return
	}
	http.Redirect(w, r, "/stations/"+stationID, http.StatusSeeOther)
}

// localRedirect accepts only same-site absolute paths.
func localRedirect(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	return next
}
