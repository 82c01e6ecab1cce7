package webui

import (
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"
	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/buildinfo"
	"tubeboard.app/internal/logging"
	"tubeboard.app/internal/transit"
)

var debugDataTypes = []string{"build", "config", "session", "favorites", "lines"}

type debugData struct {
	Title string
	Types []string
	Pre   string
}

func (ui *WebUI) writeDebugData(w http.ResponseWriter, r *http.Request, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := ui.debug.Execute(w, debugData{Title: title, Types: debugDataTypes, Pre: spew.Sdump(data)})
	if err != nil {
		logging.LogError(ui.logger(r), "failed to execute debug template", err)
	}
}

func (ui *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if ui.Application == nil || ui.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}
	dataType := r.URL.Query().Get("dataType")
	ctx := r.Context()

	var data interface{}
	var title string

	switch dataType {
	case "build":
		data = map[string]string{
			"version":    buildinfo.Version,
			"commit":     buildinfo.ShortHash(),
			"branch":     buildinfo.Branch,
			"buildTime":  buildinfo.BuildTime,
			"commitTime": buildinfo.CommitTime,
			"dirty":      buildinfo.Dirty,
		}
		title = "Build"
	case "config":
		data = redactedConfig(ui.Config)
		title = "Configuration"
	case "session":
		data = ui.session(w, r).Snapshot()
		title = "Board Session"
	case "favorites":
		ids, err := ui.session(w, r).Favorites(ctx)
		if err != nil {
			data = map[string]string{"error": err.Error()}
		} else {
			data = ui.Board.FavoriteStations(ctx, ids)
		}
		title = "Favourite Stations"
	case "lines":
		lines, err := ui.Board.Lines(ctx, transit.DefaultFilters)
		if err != nil {
			logging.LogError(ui.logger(r), "debug lines failed", err, slog.String("data_type", dataType))
			data = map[string]string{"error": err.Error()}
		} else {
			data = lines
		}
		title = "TfL Lines"
	default:
		data = map[string]string{
			"error": "Please use one of the following: build, config, session, favorites, lines.",
		}
		title = "Choose a data type"
	}

	ui.writeDebugData(w, r, title, data)
}

func redactedConfig(cfg appconf.Config) appconf.Config {
	if cfg.TfLAppKey != "" {
		cfg.TfLAppKey = "[redacted]"
	}
	if cfg.RTTPassword != "" {
		cfg.RTTPassword = "[redacted]"
	}
	return cfg
}
