// Package lookup builds outbound order-check and parcel-tracking URLs from
// a selected identifier.
package lookup

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/hpungsan/casetrack/internal/errors"
)

// Target names a lookup destination.
type Target string

const (
	TargetOrder Target = "order"
	TargetUSPS  Target = "usps"
	TargetUPS   Target = "ups"
)

var separators = regexp.MustCompile(`[\s\-.]`)

type destination struct {
	build func(id string) string
	// background lookups open without taking focus.
	background bool
}

var destinations = map[Target]destination{
	TargetOrder: {
		build: func(id string) string {
			return "https://checkorderid.com/" + url.PathEscape(id) + "/india"
		},
		background: true,
	},
	TargetUSPS: {
		build: func(id string) string {
			return "https://tools.usps.com/go/TrackConfirmAction?tRef=fullpage&tLc=2&text28777=&tLabels=" +
				url.QueryEscape(id) + "%2C&tABt=false"
		},
	},
	TargetUPS: {
		build: func(id string) string {
			return "https://www.ups.com/track?tracknum=" + url.QueryEscape(id)
		},
	},
}

// Result is a resolved lookup.
type Result struct {
	Target     Target `json:"target"`
	ID         string `json:"id"`
	URL        string `json:"url"`
	Background bool   `json:"background"`
}

// Clean trims text, strips whitespace, hyphens and dots, and uppercases it.
func Clean(text string) string {
	return strings.ToUpper(separators.ReplaceAllString(strings.TrimSpace(text), ""))
}

// Build resolves text against target.
func Build(target Target, text string) (*Result, error) {
	dest, ok := destinations[Target(strings.ToLower(string(target)))]
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown lookup target %q (want %s)", target, strings.Join(targetNames(), ", ")))
	}
	id := Clean(text)
	if id == "" {
		return nil, errors.NewInvalidRequest("identifier is empty after cleaning")
	}
	return &Result{
		Target:     Target(strings.ToLower(string(target))),
		ID:         id,
		URL:        dest.build(id),
		Background: dest.background,
	}, nil
}

// Targets lists the supported targets in name order.
func Targets() []Target {
	names := targetNames()
	out := make([]Target, len(names))
	for i, n := range names {
		out[i] = Target(n)
	}
	return out
}

func targetNames() []string {
	names := make([]string, 0, len(destinations))
	for t := range destinations {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}
