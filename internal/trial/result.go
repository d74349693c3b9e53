package trial

import "encoding/json"

// InvalidResponse is one press of an invalid key.
type InvalidResponse struct {
	KeyPress string  `json:"key_press"`
	RT       float64 `json:"rt"`
}

// Result is the data record a trial emits exactly once. The JSON field names
// are consumed by data export and must not change; RT and KeyPress encode as
// null when no valid response was made.
type Result struct {
	RT               *float64          `json:"rt"`
	Stimulus         string            `json:"stimulus"`
	KeyPress         *string           `json:"key_press"`
	InvalidCount     int               `json:"invalid_count"`
	InvalidResponses []InvalidResponse `json:"responses_invalid"`
}

// Responded reports whether a valid key was pressed.
func (r Result) Responded() bool {
	return r.KeyPress != nil
}

// MarshalJSON keeps responses_invalid an array even when empty.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if r.InvalidResponses == nil {
		r.InvalidResponses = []InvalidResponse{}
	}
	return json.Marshal(plain(r))
}
