package main

import (
	"regexp"
	"strconv"
)

// Settings is the flat option map negotiated in the lobby. Integer options
// travel as decimal strings, matching what the browser form submits.
type Settings map[string]string

const (
	modeWrite = "Write"
	modeDraw  = "Draw"

	orderNormal = "Normal"
	orderRandom = "Random"
)

type constraintKind int

const (
	enumConstraint constraintKind = iota
	intConstraint
)

type constraint struct {
	kind    constraintKind
	allowed []string
	min     int
	max     int
}

var settingsConstraints = map[string]constraint{
	"firstPage": {kind: enumConstraint, allowed: []string{modeWrite, modeDraw}},
	"pageCount": {kind: intConstraint, min: 2, max: 20},
	"pageOrder": {kind: enumConstraint, allowed: []string{orderNormal, orderRandom}},
	"palette":   {kind: enumConstraint, allowed: []string{"No palette", "Blues", "Rainbow", "PICO-8"}},
	"timeWrite": {kind: intConstraint, min: 0, max: 15},
	"timeDraw":  {kind: intConstraint, min: 0, max: 15},
}

func defaultSettings() Settings {
	return Settings{
		"firstPage": modeWrite,
		"pageCount": "8",
		"pageOrder": orderNormal,
		"palette":   "No palette",
		"timeWrite": "0",
		"timeDraw":  "0",
	}
}

var integerRegexp = regexp.MustCompile(`^[0-9]+$`)

// validateSettings checks a proposed settings object against the constraint
// table. Validation is all-or-nothing: an unknown field, a missing field, or
// any out-of-bound value rejects the whole object.
func validateSettings(settings Settings) bool {
	if len(settings) != len(settingsConstraints) {
		return false
	}

	for field, value := range settings {
		rule, ok := settingsConstraints[field]
		if !ok {
			return false
		}

		switch rule.kind {
		case enumConstraint:
			found := false
			for _, allowed := range rule.allowed {
				if value == allowed {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case intConstraint:
			if !integerRegexp.MatchString(value) {
				return false
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < rule.min || n > rule.max {
				return false
			}
		}
	}

	return true
}

func (s Settings) clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// intValue returns a bounded-integer setting, or 0 if it is absent or
// malformed. Settings are validated before being stored, so the fallback
// only matters for rooms that were never configured.
func (s Settings) intValue(field string) int {
	n, err := strconv.Atoi(s[field])
	if err != nil {
		return 0
	}
	return n
}

func (s Settings) pageCount() int {
	return s.intValue("pageCount")
}

func (s Settings) firstPage() string {
	return s["firstPage"]
}

// expectedMode returns the mode clients must submit for a given page index.
// Pages alternate between writing and drawing, starting from the room's
// configured first page, so the server never trusts a client's claim.
func (s Settings) expectedMode(page int) string {
	first := s.firstPage()
	if page%2 == 0 {
		return first
	}
	if first == modeWrite {
		return modeDraw
	}
	return modeWrite
}
