package panel

// Directions a button can be pressed in.
const (
	DirectionMinus = "minus"
	DirectionPlus  = "plus"
)

// Button defines one pressable button.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Event is one accepted button press.
type Event struct {
	Seq       int64   `json:"seq"`
	ButtonID  string  `json:"buttonId"`
	Label     string  `json:"label"`
	Direction string  `json:"direction"`
	ClientID  string  `json:"clientId"`
	Timestamp float64 `json:"timestamp"`
}

// EventSeq implements eventlog.Entry.
func (e Event) EventSeq() int64 { return e.Seq }

// Counts is the fold of one button's presses.
type Counts struct {
	Label string `json:"label"`
	Minus int    `json:"minus"`
	Plus  int    `json:"plus"`
}

// Config is the facilitator-visible panel configuration. Cooldown is in
// seconds to match the wire format.
type Config struct {
	PanelID  string   `json:"panelId"`
	Buttons  []Button `json:"buttons"`
	Cooldown float64  `json:"cooldown"`
	Locked   bool     `json:"locked"`
}

// ConfigUpdate carries optional config changes; nil fields stay untouched.
// Replacing Buttons never touches accumulated counts: they are keyed by
// button id and folded from the event log.
type ConfigUpdate struct {
	Buttons  []Button
	Cooldown *float64
	Locked   *bool
}

// State is an incremental view of the press log plus current counts.
// Counts always includes every configured button, zero-valued when it has
// never been pressed.
type State struct {
	PanelID  string            `json:"panelId"`
	Buttons  []Button          `json:"buttons"`
	Counts   map[string]Counts `json:"counts"`
	Events   []Event           `json:"events"`
	Total    int               `json:"total"`
	Cooldown float64           `json:"cooldown"`
	Locked   bool              `json:"locked"`
	Updated  float64           `json:"updated,omitempty"`
}

// buttonsDoc is the persisted form of a panel session.
type buttonsDoc struct {
	PanelID      string             `json:"panelId"`
	Buttons      []Button           `json:"buttons"`
	Cooldown     float64            `json:"cooldown"`
	Locked       bool               `json:"locked"`
	Events       []Event            `json:"events"`
	LastByClient map[string]float64 `json:"lastByClient,omitempty"`
	NextSeq      int64              `json:"nextSeq"`
	Updated      float64            `json:"updated,omitempty"`
}
