package highlight

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/hilite-live/hilite/internal/cluster"
	"github.com/hilite-live/hilite/internal/tokenizer"
)

// hashClient shortens a client id for the facilitator view so raw ids
// never leave the server.
func hashClient(clientID string) string {
	sum := sha1.Sum([]byte(clientID))
	return hex.EncodeToString(sum[:])[:10]
}

// phraseRecords extracts every client's contiguous same-color runs as raw
// phrase records for clustering. Deterministic: clients are walked in
// sorted order and records appear in document order per client.
func phraseRecords(tokens []string, votes []map[string]string) []cluster.Record {
	limit := min(len(tokens), len(votes))

	clientSet := make(map[string]struct{})
	for i := 0; i < limit; i++ {
		for clientID := range votes[i] {
			clientSet[clientID] = struct{}{}
		}
	}
	clients := make([]string, 0, len(clientSet))
	for clientID := range clientSet {
		clients = append(clients, clientID)
	}
	sort.Strings(clients)

	var records []cluster.Record
	for _, clientID := range clients {
		hashed := hashClient(clientID)
		i := 0
		for i < limit {
			if tokenizer.IsBreak(tokens[i]) {
				i++
				continue
			}
			color := votes[i][clientID]
			if color == "" {
				i++
				continue
			}
			j := i + 1
			for j < limit && !tokenizer.IsBreak(tokens[j]) && votes[j][clientID] == color {
				j++
			}
			text := strings.TrimSpace(strings.Join(tokens[i:j], " "))
			if text != "" {
				records = append(records, cluster.Record{
					Text:    text,
					Color:   color,
					Clients: []string{hashed},
				})
			}
			i = j
		}
	}
	return records
}
