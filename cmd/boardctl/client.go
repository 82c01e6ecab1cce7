package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	resty "gopkg.in/resty.v1"
)

// profileHeader names the anonymous profile on every request. It matches the
// header the server reads in internal/app.
const profileHeader = "X-Profile-ID"

// apiError is a non-200 envelope or HTTP status.
type apiError struct {
	Status int
	Text   string
}

func (e *apiError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Text)
}

type envelope struct {
	Code        int             `json:"code"`
	CurrentTime int64           `json:"currentTime"`
	Text        string          `json:"text"`
	Data        json.RawMessage `json:"data"`
}

type listData[T any] struct {
	List          []T  `json:"list"`
	LimitExceeded bool `json:"limitExceeded"`
}

type entryData[T any] struct {
	Entry T `json:"entry"`
}

type boardClient struct {
	rc *resty.Client
}

func newBoardClient(server, profile string, timeout time.Duration) *boardClient {
	rc := resty.New().
		SetHostURL(strings.TrimRight(server, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if profile != "" {
		rc.SetHeader(profileHeader, profile)
	}
	return &boardClient{rc: rc}
}

// do sends one request and unwraps the envelope. Session endpoints answer
// with a snapshot even when navigation failed, so the envelope is returned
// alongside an *apiError.
func (c *boardClient) do(ctx context.Context, method, path string, query map[string]string, body any) (envelope, error) {
	req := c.rc.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return envelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return envelope{}, fmt.Errorf("%s %s: unexpected %d response: %w", method, path, resp.StatusCode(), err)
	}
	if resp.StatusCode() >= http.StatusBadRequest || env.Code >= http.StatusBadRequest {
		status := env.Code
		if status == 0 {
			status = resp.StatusCode()
		}
		return env, &apiError{Status: status, Text: env.Text}
	}
	return env, nil
}

func getList[T any](ctx context.Context, c *boardClient, path string, query map[string]string) (listData[T], error) {
	var out listData[T]
	env, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func sendEntry[T any](ctx context.Context, c *boardClient, method, path string, query map[string]string, body any) (T, error) {
	var out entryData[T]
	env, err := c.do(ctx, method, path, query, body)
	if len(env.Data) > 0 {
		if decodeErr := json.Unmarshal(env.Data, &out); decodeErr != nil && err == nil {
			err = fmt.Errorf("decode %s: %w", path, decodeErr)
		}
	}
	return out.Entry, err
}
