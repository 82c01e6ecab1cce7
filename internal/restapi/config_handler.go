package restapi

import (
	"net/http"

	"tubeboard.app/internal/buildinfo"
	"tubeboard.app/internal/models"
)

func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	gitProps := models.GitProperties{
		GitBranch:         buildinfo.Branch,
		GitBuildTime:      buildinfo.BuildTime,
		GitBuildVersion:   buildinfo.Version,
		GitCommitId:       buildinfo.CommitHash,
		GitCommitIdAbbrev: buildinfo.ShortHash(),
		GitCommitTime:     buildinfo.CommitTime,
		GitDirty:          buildinfo.Dirty,
	}

	entry := models.ConfigModel{
		GitProperties:   gitProps,
		Id:              "tubeboard",
		Name:            "Tube Board",
		Environment:     api.Config.Env.String(),
		Modes:           api.Config.Modes,
		RailEnabled:     api.RailEnabled(),
		ArrivalsRefresh: int(api.Config.ArrivalsRefresh.Seconds()),
		DetailRefresh:   int(api.Config.DetailRefresh.Seconds()),
	}
	api.sendResponse(w, r, models.NewEntryResponse(entry, api.Clock))
}
