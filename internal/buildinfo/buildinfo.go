// Package buildinfo holds version metadata stamped at link time, e.g.
//
//	go build -ldflags "-X tubeboard.app/internal/buildinfo.Version=v1.2.0"
package buildinfo

var (
	Version    = "dev"
	CommitHash = "unknown"
	Branch     = "unknown"
	BuildTime  = "unknown"
	CommitTime = "unknown"
	Dirty      = "false"
)

// ShortHash is the abbreviated commit hash, or "unknown".
func ShortHash() string {
	if len(CommitHash) >= 7 && CommitHash != "unknown" {
		return CommitHash[:7]
	}
	return "unknown"
}
