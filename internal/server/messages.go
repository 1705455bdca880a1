package server

import "github.com/hilite-live/hilite/internal/domain/highlight"

// Viewer socket messages. Every message carries a type discriminator;
// everything else is type-specific.

type helloMessage struct {
	Type     string `json:"type"`
	DocID    string `json:"doc"`
	ClientID string `json:"clientId"`
	Locked   bool   `json:"locked"`
}

type initMessage struct {
	Type   string            `json:"type"`
	Ranges []highlight.Range `json:"ranges"`
}

type stateUpdatedMessage struct {
	Type string `json:"type"`
}

type controlMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

type wsErrorMessage struct {
	Type    string  `json:"type"`
	Error   string  `json:"error"`
	Detail  string  `json:"detail,omitempty"`
	RetryIn float64 `json:"retry_in,omitempty"`
}

// inboundMessage is what viewers send: highlight strokes and clears.
type inboundMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Start  *int   `json:"start"`
	End    *int   `json:"end"`
	Color  string `json:"color"`
}

// Navigation socket messages.

type controlHelloMessage struct {
	Type     string `json:"type"`
	Group    string `json:"group"`
	ClientID string `json:"clientId"`
}

type navigateMessage struct {
	Type           string `json:"type"`
	Target         string `json:"target"`
	PreserveClient bool   `json:"preserveClient"`
	PreserveParams bool   `json:"preserveParams"`
}

type reloadMessage struct {
	Type string `json:"type"`
}
