package restapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tubeboard.app/internal/board"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/models"
)

// sessionEntry is a snapshot plus how fresh its live data is.
type sessionEntry struct {
	board.Snapshot
	Stale      bool `json:"stale"`
	AgeSeconds int  `json:"ageSeconds"`
}

var staleDetector = NewStaleDetector()

func (api *RestAPI) session(w http.ResponseWriter, r *http.Request) *board.Session {
	return api.Board.Session(api.Profile(w, r))
}

func (api *RestAPI) sessionHandler(w http.ResponseWriter, r *http.Request) {
	api.sendSnapshot(w, r, api.session(w, r).Snapshot(), nil)
}

func (api *RestAPI) sessionLinesHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := api.session(w, r).ShowLines(r.Context())
	api.sendSnapshot(w, r, snap, err)
}

func (api *RestAPI) sessionLineHandler(w http.ResponseWriter, r *http.Request) {
	api.navigate(w, r, "lineID", (*board.Session).ShowLine)
}

func (api *RestAPI) sessionStationHandler(w http.ResponseWriter, r *http.Request) {
	api.navigate(w, r, "stationID", (*board.Session).ShowStation)
}

func (api *RestAPI) sessionArrivalHandler(w http.ResponseWriter, r *http.Request) {
	api.navigate(w, r, "arrivalID", (*board.Session).ShowArrival)
}

func (api *RestAPI) sessionBackHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := api.session(w, r).Back(r.Context())
	api.sendSnapshot(w, r, snap, err)
}

// sessionLineFilterHandler toggles a line on the open station board. Line
// names contain spaces so they are not validated as ids.
func (api *RestAPI) sessionLineFilterHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("lineName"))
	if name == "" || len(name) > 64 {
		api.validationErrorResponse(w, r, invalidf("invalid lineName"))
		return
	}
	snap, err := api.session(w, r).ToggleLineFilter(name)
	api.sendSnapshot(w, r, snap, err)
}

func (api *RestAPI) dismissNoticeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "noticeID")
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}
	session := api.session(w, r)
	if !session.DismissNotice(id) {
		api.sendNotFound(w, r)
		return
	}
	api.sendSnapshot(w, r, session.Snapshot(), nil)
}

func (api *RestAPI) navigate(w http.ResponseWriter, r *http.Request, param string,
	show func(*board.Session, context.Context, string) (board.Snapshot, error)) {
	id, err := pathID(r, param)
	if err != nil {
		api.validationErrorResponse(w, r, err)
		return
	}
	snap, err := show(api.session(w, r), r.Context(), id)
	api.sendSnapshot(w, r, snap, err)
}

// sendSnapshot answers with the session state even when navigation failed,
// so a client can show the banner the session raised. The status still
// reflects the failure.
func (api *RestAPI) sendSnapshot(w http.ResponseWriter, r *http.Request, snap board.Snapshot, err error) {
	if err != nil && snap.SessionID == "" {
		api.errorResponse(w, r, err)
		return
	}

	now := api.Clock.Now()
	entry := sessionEntry{Snapshot: snap}
	if snap.View == board.ViewArrivals || snap.View == board.ViewDetail {
		entry.Stale = staleDetector.Check(snap.UpdatedAt, now)
		entry.AgeSeconds = int(staleDetector.Age(snap.UpdatedAt, now).Seconds())
	}

	response := models.NewEntryResponse(entry, api.Clock)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			return
		}
		response.Code, response.Text = statusFor(err)
		if response.Code >= http.StatusInternalServerError {
			logging.LogError(api.logger(r), "session navigation failed", err,
				slog.String("path", r.URL.Path), slog.Int("status", response.Code))
		}
	}
	api.sendResponse(w, r, response)
}
