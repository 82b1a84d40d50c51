package protocol

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/eventlog"
)

// ResourceKind names what a get request reads.
type ResourceKind int

const (
	ResourceSession ResourceKind = iota + 1
	ResourceGame
	ResourceGameEvents
	ResourceContents
	ResourceContentSet
)

// Resource is a parsed get target such as "games/abc/events?since=4".
type Resource struct {
	Kind  ResourceKind
	ID    string
	Range eventlog.Range
}

// ParseResource parses a get target. Unknown shapes are invalid.
func ParseResource(s string) (Resource, error) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return Resource{}, apperr.Invalidf("malformed resource %q", s)
	}
	parts := strings.Split(u.Path, "/")

	switch {
	case len(parts) == 1 && parts[0] == "session":
		return Resource{Kind: ResourceSession}, nil
	case len(parts) == 1 && parts[0] == "contents":
		return Resource{Kind: ResourceContents}, nil
	case len(parts) == 2 && parts[0] == "contents" && parts[1] != "":
		return Resource{Kind: ResourceContentSet, ID: parts[1]}, nil
	case len(parts) == 2 && parts[0] == "games" && parts[1] != "":
		return Resource{Kind: ResourceGame, ID: parts[1]}, nil
	case len(parts) == 3 && parts[0] == "games" && parts[1] != "" && parts[2] == "events":
		rng, err := parseRange(u.Query())
		if err != nil {
			return Resource{}, err
		}
		return Resource{Kind: ResourceGameEvents, ID: parts[1], Range: rng}, nil
	}
	return Resource{}, apperr.Invalidf("unknown resource %q", s)
}

func parseRange(q url.Values) (eventlog.Range, error) {
	since, err := parseClock(q, "since")
	if err != nil {
		return eventlog.Range{}, err
	}
	until, err := parseClock(q, "until")
	if err != nil {
		return eventlog.Range{}, err
	}
	return eventlog.Range{Since: since, Until: until}, nil
}

func parseClock(q url.Values, key string) (*int64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, apperr.Invalidf("%s must be a non-negative clock, got %q", key, v)
	}
	return &n, nil
}
