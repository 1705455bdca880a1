// Package cluster turns raw highlight phrase records into the deduplicated,
// frequency-ranked list behind the facilitator word cloud.
package cluster

import (
	"sort"
	"strings"
)

// Record is one raw phrase: the text of a highlighted span, its color, and
// the clients who voted for it.
type Record struct {
	Text    string   `json:"text"`
	Color   string   `json:"color"`
	Clients []string `json:"clients"`
}

// Phrase is one clustered output entry. Count is the number of distinct
// clients behind the phrase.
type Phrase struct {
	Text    string   `json:"text"`
	Color   string   `json:"color"`
	Clients []string `json:"clients"`
	Count   int      `json:"count"`
}

// ColorAll disables color filtering.
const ColorAll = "all"

// Options control clustering.
type Options struct {
	// Color keeps only records of one color; "" or ColorAll keeps all.
	Color string
	// PreferLongest folds a phrase into a longer same-color phrase that
	// contains it as a whole-word substring.
	PreferLongest bool
	// MinCount drops phrases with fewer distinct clients. Values < 1 mean 1.
	MinCount int
}

type group struct {
	text       string
	color      string
	clients    map[string]struct{}
	suppressed bool
}

// Cluster aggregates records deterministically: same input and options,
// same output, and clustering its own output changes nothing. A client
// voting for the same phrase many times still counts once.
func Cluster(records []Record, opts Options) []Phrase {
	minCount := opts.MinCount
	if minCount < 1 {
		minCount = 1
	}
	filter := opts.Color
	if filter == ColorAll {
		filter = ""
	}

	// Group by (normalized text, color), merging client sets.
	var groups []*group
	index := make(map[[2]string]*group)
	for _, rec := range records {
		if filter != "" && rec.Color != filter {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(rec.Text))
		if text == "" {
			continue
		}
		key := [2]string{text, rec.Color}
		g, ok := index[key]
		if !ok {
			g = &group{text: text, color: rec.Color, clients: make(map[string]struct{})}
			index[key] = g
			groups = append(groups, g)
		}
		for _, client := range rec.Clients {
			g.clients[client] = struct{}{}
		}
	}

	if opts.PreferLongest {
		collapseSubstrings(groups)
	}

	var phrases []Phrase
	for _, g := range groups {
		if g.suppressed || len(g.clients) < minCount {
			continue
		}
		clients := make([]string, 0, len(g.clients))
		for client := range g.clients {
			clients = append(clients, client)
		}
		sort.Strings(clients)
		phrases = append(phrases, Phrase{
			Text:    g.text,
			Color:   g.color,
			Clients: clients,
			Count:   len(clients),
		})
	}

	sort.SliceStable(phrases, func(i, j int) bool {
		return phrases[i].Count > phrases[j].Count
	})
	return phrases
}

// collapseSubstrings merges each phrase into the longest same-color phrase
// containing it as a whole-word substring, so "cat" votes reinforce
// "the cat" instead of appearing twice.
func collapseSubstrings(groups []*group) {
	byLength := make([]*group, len(groups))
	copy(byLength, groups)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].text) > len(byLength[j].text)
	})

	for i, a := range byLength {
		if a.suppressed {
			continue
		}
		padded := " " + a.text + " "
		for _, b := range byLength[i+1:] {
			if b.suppressed || b.color != a.color {
				continue
			}
			if strings.Contains(padded, " "+b.text+" ") {
				for client := range b.clients {
					a.clients[client] = struct{}{}
				}
				b.suppressed = true
			}
		}
	}
}
