package highlight

// Range is a run of consecutive tokens sharing one color.
type Range struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Color string `json:"color"`
}

// Applied reports what a vote actually touched: the clamped range, the
// effective color (empty when the stroke toggled existing votes off), and
// whether any vote changed.
type Applied struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Color   string `json:"color"`
	Changed bool   `json:"changed"`
}

// Snapshot is a read-only view of a document session.
type Snapshot struct {
	DocID      string
	Tokens     []string
	Locked     bool
	SourceName string
	Updated    float64
}

// Export is the full dump of a document session.
type Export struct {
	DocID      string              `json:"docId"`
	Locked     bool                `json:"locked"`
	Tokens     []string            `json:"tokens"`
	Votes      []map[string]string `json:"votes"`
	Updated    float64             `json:"updated,omitempty"`
	SourceName string              `json:"sourceName"`
}

// stateDoc is the persisted form of a document session. Votes is parallel
// to Tokens: one clientID→color bucket per token index.
type stateDoc struct {
	Tokens     []string            `json:"tokens"`
	Votes      []map[string]string `json:"votes"`
	Updated    float64             `json:"updated,omitempty"`
	SourceName string              `json:"sourceName"`
}
