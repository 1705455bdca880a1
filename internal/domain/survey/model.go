package survey

// Response is one accepted submission.
type Response struct {
	Seq       int64   `json:"seq"`
	ClientID  string  `json:"clientId"`
	Answer    string  `json:"answer"`
	Question  string  `json:"question"`
	Submitted float64 `json:"submitted"`
}

// EventSeq implements eventlog.Entry.
func (r Response) EventSeq() int64 { return r.Seq }

// Config is the facilitator-visible form configuration. Cooldown is in
// seconds to match the wire format.
type Config struct {
	FormID      string  `json:"formId"`
	Question    string  `json:"question"`
	Cooldown    float64 `json:"cooldown"`
	AllowRepeat bool    `json:"allowRepeat"`
	Locked      bool    `json:"locked"`
}

// ConfigUpdate carries optional config changes; nil fields stay untouched.
type ConfigUpdate struct {
	Question    *string
	Cooldown    *float64
	AllowRepeat *bool
	Locked      *bool
}

// Results is an incremental view of the response log plus the config echo.
type Results struct {
	FormID      string     `json:"formId"`
	Question    string     `json:"question"`
	Cooldown    float64    `json:"cooldown"`
	AllowRepeat bool       `json:"allowRepeat"`
	Locked      bool       `json:"locked"`
	Responses   []Response `json:"responses"`
	Total       int        `json:"total"`
	Updated     float64    `json:"updated,omitempty"`
}

// formDoc is the persisted form of a form session. LastByClient mirrors the
// rate limiter so cooldowns survive restarts.
type formDoc struct {
	FormID       string             `json:"formId"`
	Question     string             `json:"question"`
	Cooldown     float64            `json:"cooldown"`
	AllowRepeat  bool               `json:"allowRepeat"`
	Locked       bool               `json:"locked"`
	Responses    []Response         `json:"responses"`
	LastByClient map[string]float64 `json:"lastByClient,omitempty"`
	NextSeq      int64              `json:"nextSeq"`
	Updated      float64            `json:"updated,omitempty"`
}
