package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Record is what the status service reports for a single host. Only the
// liveness flag is interpreted; every other field is kept as reported.
//
// A Record is never modified after decoding, so the same pointer can be
// shared between snapshots.
type Record struct {
	Alive  bool
	Fields map[string]any

	raw json.RawMessage
}

// NewRecord builds a record from already decoded fields. Used by tests and
// by callers that construct reports without going through JSON.
func NewRecord(alive bool, fields map[string]any) *Record {
	fields = maps.Clone(fields)
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["Alive"] = alive

	raw, err := json.Marshal(fields)
	if err != nil {
		raw = nil
	}

	return &Record{Alive: alive, Fields: fields, raw: raw}
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	if fields == nil {
		return fmt.Errorf("host record is null")
	}

	var alive bool
	if v, ok := fields["Alive"]; ok {
		alive, _ = v.(bool)
	}

	r.Alive = alive
	r.Fields = fields
	r.raw = append(json.RawMessage(nil), b...)

	return nil
}

func (r *Record) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}

	return json.Marshal(r.Fields)
}

// Equal reports whether two records carry the same reported content.
func (r *Record) Equal(o *Record) bool {
	if r == o {
		return true
	}

	if r == nil || o == nil {
		return false
	}

	if r.Alive != o.Alive {
		return false
	}

	return bytes.Equal(r.raw, o.raw)
}

// Report is a decoded /status response keyed by host name.
type Report map[string]*Record

// Validate rejects reports containing null records.
func (rep Report) Validate() error {
	for host, rec := range rep {
		if rec == nil {
			return fmt.Errorf("host %s: record is null", host)
		}
	}

	return nil
}
