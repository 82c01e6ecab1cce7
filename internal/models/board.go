package models

import (
	"time"

	"tubeboard.app/internal/transit"
)

// CurrentTimeData is the payload of /api/current-time.json.
type CurrentTimeData struct {
	Time           int64  `json:"time"`
	ReadableTime   string `json:"readableTime"`
	LondonTime     string `json:"londonTime"`
	TimezoneOffset int    `json:"timezoneOffset"`
}

// NewCurrentTimeData reports now in UTC and in the board's zone.
func NewCurrentTimeData(now time.Time, loc *time.Location) CurrentTimeData {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	_, offset := local.Zone()
	return CurrentTimeData{
		Time:           now.UnixMilli(),
		ReadableTime:   now.UTC().Format(time.RFC3339),
		LondonTime:     local.Format("15:04:05"),
		TimezoneOffset: offset,
	}
}

// FavoriteToggle is the result of toggling a favourite station.
type FavoriteToggle struct {
	StationID string   `json:"stationId"`
	Favorite  bool     `json:"favorite"`
	Favorites []string `json:"favorites"`
}

// FiltersData lists the active mode filters and the ones on offer.
type FiltersData struct {
	Active    []string `json:"active"`
	Available []string `json:"available"`
}

// FiltersRequest is the body of PUT /api/filters.json.
type FiltersRequest struct {
	Filters []string `json:"filters"`
}

// ArrivalsData is a station's live board.
type ArrivalsData struct {
	StationID string        `json:"stationId"`
	Line      string        `json:"line,omitempty"`
	Board     transit.Board `json:"board"`
}
