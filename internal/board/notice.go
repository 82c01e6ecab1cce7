package board

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"tubeboard.app/internal/rtt"
	"tubeboard.app/internal/upstream"
)

// NoticeTTL is how long a banner stays on a session.
const NoticeTTL = 8 * time.Second

type NoticeKind string

const (
	NoticeNotFound NoticeKind = "not_found"
	NoticeNetwork  NoticeKind = "network"
	NoticeError    NoticeKind = "error"
	NoticeInfo     NoticeKind = "info"
)

const (
	msgNotFound   = "The requested information could not be found."
	msgNetwork    = "Network connection issue. Please check your connection and try again."
	msgGeneric    = "An error occurred. Please try again later."
	msgUnreliable = "Live times for this train changed too much to keep counting down. Showing the latest departures."
	msgLost       = "This train is no longer listed. Showing the latest departures."
	msgDeparted   = "This train has arrived. Showing the latest departures."
)

// Notice is a transient banner attached to a session.
type Notice struct {
	ID        string     `json:"id"`
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Expired reports whether the notice should no longer be shown at now.
func (n Notice) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// ClassifyError picks the banner for a failed fetch.
func ClassifyError(err error) (NoticeKind, string) {
	switch {
	case upstream.IsNotFound(err), errors.Is(err, ErrArrivalNotFound), errors.Is(err, rtt.ErrNoCode):
		return NoticeNotFound, msgNotFound
	case upstream.IsNetwork(err):
		return NoticeNetwork, msgNetwork
	default:
		return NoticeError, msgGeneric
	}
}

func newNotice(kind NoticeKind, message string, now time.Time) Notice {
	return Notice{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(NoticeTTL),
	}
}

// pruneNotices drops expired notices in place.
func pruneNotices(notices []Notice, now time.Time) []Notice {
	kept := notices[:0]
	for _, n := range notices {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	return kept
}
