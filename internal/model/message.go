package model

import (
	"bytes"
	"encoding/json"
)

// GlobalJobID tags messages from the plain ingestion path.
const GlobalJobID = "GLOBAL"

// Realtime event names.
const (
	EventFullText     = "full_text"
	EventShowFullText = "show_full_text"
	EventJobEnded     = "job_ended"
)

// BroadcastMessage is a full transcript snapshot for one job.
type BroadcastMessage struct {
	JobID string `json:"job_id"`
	Text  string `json:"text"`
}

// Envelope is the realtime frame exchanged over WebSocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// FullTextPayload is the writer's inbound full_text payload. job_id and text
// stay raw so that non-string values are forwarded instead of rejected.
type FullTextPayload struct {
	JobID       json.RawMessage `json:"job_id"`
	Text        json.RawMessage `json:"text"`
	WriterToken string          `json:"writer_token,omitempty"`
}

// Values returns the job id and text as strings. ok is false when job_id is
// missing or empty-valued, or text is missing or null. JSON strings are
// unquoted; any other value is kept as its JSON literal.
func (p FullTextPayload) Values() (jobID, text string, ok bool) {
	if emptyValue(p.JobID) {
		return "", "", false
	}
	jobID, ok = rawText(p.JobID)
	if !ok {
		return "", "", false
	}
	text, ok = rawText(p.Text)
	if !ok {
		return "", "", false
	}
	return jobID, text, true
}

// emptyValue reports whether raw is an empty JSON value. A quoted "0" is a
// valid id; a bare 0 is not.
func emptyValue(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case `""`, "0", "false", "[]", "{}":
		return true
	}
	return false
}

func rawText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", false
	}
	return buf.String(), true
}

// JobEndedPayload notifies filtered viewers that their job ended.
type JobEndedPayload struct {
	JobID string `json:"job_id"`
}
