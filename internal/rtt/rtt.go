// Package rtt reads station arrivals from the Realtime Trains API, used for
// national rail stations that TfL predicts poorly.
package rtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/upstream"
)

const provider = "rtt"

// ErrNoCode is returned when a TfL station has no Realtime Trains code.
var ErrNoCode = errors.New("station has no realtime trains code")

type Location struct {
	Name   string `json:"name"`
	CRS    string `json:"crs"`
	Tiploc string `json:"tiploc"`
}

type Endpoint struct {
	Description string `json:"description"`
	PublicTime  string `json:"publicTime"`
}

type LocationDetail struct {
	GbttBookedArrival string     `json:"gbttBookedArrival"`
	RealtimeArrival   string     `json:"realtimeArrival"`
	Platform          string     `json:"platform"`
	PlatformConfirmed bool       `json:"platformConfirmed"`
	Origin            []Endpoint `json:"origin"`
	Destination       []Endpoint `json:"destination"`
	DisplayAs         string     `json:"displayAs"`
}

type Service struct {
	ServiceUID     string         `json:"serviceUid"`
	RunDate        string         `json:"runDate"`
	AtocCode       string         `json:"atocCode"`
	AtocName       string         `json:"atocName"`
	LocationDetail LocationDetail `json:"locationDetail"`
	// Destination is read when a response carries it at service level.
	Destination []Endpoint `json:"destination"`
}

type SearchResult struct {
	Location Location  `json:"location"`
	Services []Service `json:"services"`
}

type Options struct {
	BaseURL  string
	Username string
	Password string
	// Codes maps TfL station ids to CRS codes.
	Codes map[string]string

	HTTPClient *http.Client
	MaxRetries uint64
	RetryBase  time.Duration
	Logger     *slog.Logger
	Observer   upstream.Observer
	Clock      clock.Clock
}

type Client struct {
	baseURL  string
	username string
	password string
	codes    map[string]string
	req      *upstream.Requester
}

func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.rtt.io/api/v1/json"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewHTTPClient(10 * time.Second)
	}
	codes := make(map[string]string, len(opts.Codes))
	for id, code := range opts.Codes {
		codes[id] = strings.ToUpper(code)
	}
	return &Client{
		baseURL:  baseURL,
		username: opts.Username,
		password: opts.Password,
		codes:    codes,
		req: &upstream.Requester{
			Provider:   provider,
			Client:     httpClient,
			Logger:     logger.With(slog.String("component", "rtt_client")),
			Observer:   opts.Observer,
			Clock:      opts.Clock,
			MaxRetries: opts.MaxRetries,
			RetryBase:  opts.RetryBase,
		},
	}
}

var crsPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// CodeFor resolves a TfL station id to a CRS code: configured mappings win,
// and a bare three letter code is accepted as is.
func (c *Client) CodeFor(stationID string) (string, bool) {
	stationID = strings.TrimSpace(stationID)
	if code, ok := c.codes[stationID]; ok {
		return code, true
	}
	if crsPattern.MatchString(stationID) {
		return strings.ToUpper(stationID), true
	}
	return "", false
}

// Search returns the arrivals search for a CRS code.
func (c *Client) Search(ctx context.Context, code string) (SearchResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !crsPattern.MatchString(code) {
		return SearchResult{}, fmt.Errorf("invalid station code %q", code)
	}
	target := c.baseURL + "/search/" + url.PathEscape(code) + "/arrivals"

	var result SearchResult
	err := c.req.GetJSON(ctx, "arrivals", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.username, c.password)
		return req, nil
	}, &result)
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to fetch rail arrivals for %s: %w", code, err)
	}
	return result, nil
}

// Board resolves stationID and returns its arrivals as display rows.
func (c *Client) Board(ctx context.Context, stationID string) ([]Arrival, error) {
	code, ok := c.CodeFor(stationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, stationID)
	}
	result, err := c.Search(ctx, code)
	if err != nil {
		return nil, err
	}
	return ToArrivals(result.Services), nil
}

// Arrival is one Realtime Trains service formatted for the board.
type Arrival struct {
	ServiceUID  string `json:"serviceUid"`
	Time        string `json:"time"`
	Platform    string `json:"platform"`
	Destination string `json:"destination"`
	Operator    string `json:"operator"`
	Realtime    bool   `json:"realtime"`
}

// ToArrivals formats services in the order Realtime Trains returned them.
func ToArrivals(services []Service) []Arrival {
	out := make([]Arrival, 0, len(services))
	for _, s := range services {
		d := s.LocationDetail
		a := Arrival{
			ServiceUID:  s.ServiceUID,
			Time:        "Due",
			Platform:    "Unknown platform",
			Destination: "Unknown destination",
			Operator:    "Unknown operator",
		}
		if t, ok := formatHHMM(d.RealtimeArrival); ok {
			a.Time = t
			a.Realtime = true
		} else if t, ok := formatHHMM(d.GbttBookedArrival); ok {
			a.Time = t
		}
		if d.Platform != "" {
			a.Platform = "Platform " + d.Platform
		}
		dest := d.Destination
		if len(dest) == 0 {
			dest = s.Destination
		}
		if len(dest) > 0 && dest[0].Description != "" {
			a.Destination = dest[0].Description
		}
		if s.AtocName != "" {
			a.Operator = s.AtocName
		}
		out = append(out, a)
	}
	return out
}

func formatHHMM(v string) (string, bool) {
	if len(v) < 4 {
		return "", false
	}
	for _, r := range v[:4] {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return v[:2] + ":" + v[2:4], true
}
