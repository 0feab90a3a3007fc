package types

// Event is the broadcastable form of a state change: a stable type tag plus
// flat string attributes suitable for indexers and RPC subscribers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
