package region

import "strings"

// Code identifies a coarse geographic and linguistic region.
type Code string

const (
	North   Code = "north"
	South   Code = "south"
	West    Code = "west"
	East    Code = "east"
	Tamil   Code = "tamil"
	Default Code = "default"
)

// Fallback is returned by Classify when no keyword group matches.
const Fallback = North

// Codes lists every built-in region code. A profile table must define all of them.
var Codes = []Code{North, South, West, East, Tamil, Default}

type keywordGroup struct {
	code     Code
	keywords []string
}

// Groups are tested in order. Tamil Nadu cities must be checked before the
// broader south group, and south before east so "bengaluru" never hits "bengal".
var groups = []keywordGroup{
	{Tamil, []string{"tamil", "chennai", "madurai", "coimbatore", "trichy", "tiruchirappalli", "salem", "tirunelveli", "vellore", "pondicherry", "puducherry"}},
	{North, []string{"delhi", "noida", "gurgaon", "gurugram", "lucknow", "kanpur", "agra", "jaipur", "chandigarh", "punjab", "haryana", "uttar pradesh", "rajasthan", "dehradun", "varanasi", "amritsar"}},
	{South, []string{"bangalore", "bengaluru", "hyderabad", "kochi", "cochin", "kerala", "karnataka", "telangana", "andhra", "mysore", "mysuru", "vijayawada", "visakhapatnam", "mangalore", "trivandrum", "thiruvananthapuram"}},
	{West, []string{"mumbai", "bombay", "pune", "nagpur", "nashik", "ahmedabad", "surat", "vadodara", "maharashtra", "gujarat", "goa"}},
	{East, []string{"kolkata", "calcutta", "bengal", "patna", "bihar", "bhubaneswar", "odisha", "orissa", "jharkhand", "ranchi", "guwahati", "assam"}},
}

// Classify maps a free-text location to a region code. Matching is a
// case-insensitive substring test; the first matching group wins and
// anything unrecognized, including the empty string, is North. Keywords of
// shortWord letters or fewer must match a whole word, so "goa" is not found
// in "Goalpara".
func Classify(location string) Code {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return Fallback
	}
	for _, g := range groups {
		for _, kw := range g.keywords {
			if containsKeyword(loc, kw) {
				return g.code
			}
		}
	}
	return Fallback
}

const shortWord = 4

func containsKeyword(loc, kw string) bool {
	if len(kw) > shortWord {
		return strings.Contains(loc, kw)
	}
	for from := 0; ; {
		i := strings.Index(loc[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)
		if !isLetter(loc, start-1) && !isLetter(loc, end) {
			return true
		}
		from = start + 1
	}
}

// isLetter reports whether loc[i] is an ASCII letter. Out of range is false.
func isLetter(loc string, i int) bool {
	if i < 0 || i >= len(loc) {
		return false
	}
	c := loc[i]
	return c >= 'a' && c <= 'z'
}

// Valid reports whether c is one of the built-in codes.
func (c Code) Valid() bool {
	for _, known := range Codes {
		if c == known {
			return true
		}
	}
	return false
}

func (c Code) String() string { return string(c) }
