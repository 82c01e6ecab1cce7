package restapi

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var validIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

// pathID reads a path wildcard and checks it looks like a TfL id.
func pathID(r *http.Request, name string) (string, error) {
	id := strings.TrimSuffix(r.PathValue(name), ".json")
	if !validIDRegex.MatchString(id) {
		return "", invalidf("invalid %s", name)
	}
	return id, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalidf("%s must be a number", name)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidf("%s must be an integer", name)
	}
	return v, nil
}
