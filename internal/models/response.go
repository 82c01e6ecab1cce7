// Package models holds the JSON envelope and payload types served by the
// board's HTTP API.
package models

import (
	"net/http"

	"tubeboard.app/internal/clock"
)

// APIVersion is the envelope version of every response.
const APIVersion = 2

// ResponseModel is the envelope around every JSON response.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Data        any    `json:"data,omitempty"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

// ListData wraps a list payload.
type ListData struct {
	List          any  `json:"list"`
	LimitExceeded bool `json:"limitExceeded"`
}

// EntryData wraps a single-object payload.
type EntryData struct {
	Entry any `json:"entry"`
}

// ResponseCurrentTime is the envelope timestamp in Unix milliseconds.
func ResponseCurrentTime(clk clock.Clock) int64 {
	return clk.NowUnixMilli()
}

func NewResponse(code int, data any, text string, clk clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(clk),
		Data:        data,
		Text:        text,
		Version:     APIVersion,
	}
}

func NewOKResponse(data any, clk clock.Clock) ResponseModel {
	return NewResponse(http.StatusOK, data, "OK", clk)
}

func NewEntryResponse(entry any, clk clock.Clock) ResponseModel {
	return NewOKResponse(EntryData{Entry: entry}, clk)
}

// NewListResponse never serialises a nil list as null.
func NewListResponse[T any](list []T, limitExceeded bool, clk clock.Clock) ResponseModel {
	if list == nil {
		list = []T{}
	}
	return NewOKResponse(ListData{List: list, LimitExceeded: limitExceeded}, clk)
}
