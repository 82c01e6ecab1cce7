// Package webui renders the departure board as HTML. Each page drives the
// caller's board session, so the server keeps polling while a page is open
// and a reload shows the latest state.
package webui

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"regexp"

	"tubeboard.app/internal/app"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/transit"
	"tubeboard.app/internal/upstream"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index.html", "line.html", "station.html", "detail.html"}

var validIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

type WebUI struct {
	*app.Application
	pages map[string]*template.Template
	debug *template.Template
}

// NewWebUI parses the embedded templates.
func NewWebUI(a *app.Application) (*WebUI, error) {
	ui := &WebUI{Application: a, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		ui.pages[name] = tmpl
	}
	debug, err := template.ParseFS(templateFS, "templates/debug_index.html")
	if err != nil {
		return nil, fmt.Errorf("parse debug template: %w", err)
	}
	ui.debug = debug
	return ui, nil
}

func (ui *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", ui.indexHandler)
	mux.HandleFunc("POST /filters", ui.saveFiltersHandler)
	mux.HandleFunc("GET /lines/{lineID}", ui.lineHandler)
	mux.HandleFunc("GET /stations/{stationID}", ui.stationHandler)
	mux.HandleFunc("POST /stations/{stationID}/line-filter", ui.lineFilterHandler)
	mux.HandleFunc("GET /stations/{stationID}/arrivals/{arrivalID}", ui.detailHandler)
	mux.HandleFunc("POST /favorites/{stationID}", ui.toggleFavoriteHandler)
	mux.HandleFunc("GET /assets/{file}", ui.assetsHandler)
	mux.HandleFunc("GET /debug", ui.debugIndexHandler)
}

type filterOption struct {
	Name   string
	Label  string
	Active bool
}

type pageData struct {
	Title    string
	Path     string
	Back     string
	Refresh  int
	Snapshot board.Snapshot
	Filters  []filterOption

	Circumference float64
	RingMax       int
}

func (ui *WebUI) session(w http.ResponseWriter, r *http.Request) *board.Session {
	return ui.Board.Session(ui.Profile(w, r))
}

func (ui *WebUI) logger(r *http.Request) *slog.Logger {
	if logger := logging.FromContext(r.Context()); logger != slog.Default() {
		return logger
	}
	if ui.Logger != nil {
		return ui.Logger
	}
	return slog.Default()
}

// render executes page into a buffer so a template error still produces a
// clean 500. A navigation error keeps the page, whose banner explains it,
// and only changes the status.
func (ui *WebUI) render(w http.ResponseWriter, r *http.Request, page string, data pageData, navErr error) {
	status := http.StatusOK
	if navErr != nil {
		if data.Snapshot.SessionID == "" {
			ui.errorPage(w, r, navErr)
			return
		}
		status = statusFor(navErr)
	}

	tmpl, ok := ui.pages[page]
	if !ok {
		logging.LogError(ui.logger(r), "unknown page template", errors.New(page))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.LogError(ui.logger(r), "failed to execute page template", err, slog.String("page", page))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (ui *WebUI) errorPage(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.LogError(ui.logger(r), "page failed", err, slog.String("path", r.URL.Path))
	}
	http.Error(w, http.StatusText(status), status)
}

func statusFor(err error) int {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, board.ErrNoStation):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, board.ErrNoPreferences):
		return http.StatusServiceUnavailable
	}
	if kind, _ := board.ClassifyError(err); kind == board.NoticeNotFound {
		return http.StatusNotFound
	}
	if upstream.IsNetwork(err) || errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func filterOptions(active []string) []filterOption {
	on := make(map[string]bool, len(active))
	for _, f := range active {
		on[f] = true
	}
	names := append(append([]string{}, transit.ModeFilters...), transit.FilterFavorites)
	out := make([]filterOption, 0, len(names))
	for _, name := range names {
		out = append(out, filterOption{Name: name, Label: filterLabels[name], Active: on[name]})
	}
	return out
}

var filterLabels = map[string]string{
	transit.FilterTube:       "Tube",
	transit.FilterOverground: "Overground",
	transit.FilterTrain:      "Train",
	transit.FilterBus:        "Bus",
	transit.FilterFavorites:  "Favourites",
}

// pathID reads and validates a path wildcard.
func pathID(r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	return id, validIDRegex.MatchString(id)
}
