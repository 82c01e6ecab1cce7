package models

// GitProperties carries the build metadata stamped into the binary.
type GitProperties struct {
	GitBranch         string `json:"git.branch"`
	GitBuildTime      string `json:"git.build.time"`
	GitBuildVersion   string `json:"git.build.version"`
	GitCommitId       string `json:"git.commit.id"`
	GitCommitIdAbbrev string `json:"git.commit.id.abbrev"`
	GitCommitTime     string `json:"git.commit.time"`
	GitDirty          string `json:"git.dirty"`
}

// ConfigModel describes the running server.
type ConfigModel struct {
	GitProperties   GitProperties `json:"gitProperties"`
	Id              string        `json:"id"`
	Name            string        `json:"name"`
	Environment     string        `json:"environment"`
	Modes           []string      `json:"modes"`
	RailEnabled     bool          `json:"railEnabled"`
	ArrivalsRefresh int           `json:"arrivalsRefreshSeconds"`
	DetailRefresh   int           `json:"detailRefreshSeconds"`
}
