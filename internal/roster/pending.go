package roster

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

// PendingUpdate is a status write that has not yet been confirmed by the directory.
type PendingUpdate struct {
	Key    string                 `json:"key"`
	Status models.ApplicantStatus `json:"status"`
}

// PendingQueue holds at most one desired status per applicant key, in first-queued order.
// It is not safe for concurrent use; the engine loop owns it.
type PendingQueue struct {
	order  []string
	status map[string]models.ApplicantStatus
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{status: make(map[string]models.ApplicantStatus)}
}

// Set records status for key. A newer intent replaces the older one in place.
func (q *PendingQueue) Set(key string, status models.ApplicantStatus) {
	if _, ok := q.status[key]; !ok {
		q.order = append(q.order, key)
	}
	q.status[key] = status
}

func (q *PendingQueue) Get(key string) (models.ApplicantStatus, bool) {
	s, ok := q.status[key]
	return s, ok
}

// RemoveIf drops key only while its queued status is still status.
func (q *PendingQueue) RemoveIf(key string, status models.ApplicantStatus) bool {
	current, ok := q.status[key]
	if !ok || current != status {
		return false
	}
	delete(q.status, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

func (q *PendingQueue) Len() int {
	return len(q.order)
}

// Snapshot returns the queued updates in insertion order.
func (q *PendingQueue) Snapshot() []PendingUpdate {
	out := make([]PendingUpdate, 0, len(q.order))
	for _, key := range q.order {
		out = append(out, PendingUpdate{Key: key, Status: q.status[key]})
	}
	return out
}

// Apply overlays queued statuses on roster and returns a new slice.
func (q *PendingQueue) Apply(roster []models.Applicant) []models.Applicant {
	out := make([]models.Applicant, len(roster))
	copy(out, roster)
	if q.Len() == 0 {
		return out
	}
	for i := range out {
		if s, ok := q.status[out[i].Key()]; ok {
			out[i].Status = s
		}
	}
	return out
}

// MarshalJSON writes the queue as a JSON object of key to status, keeping order.
func (q *PendingQueue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range q.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(q.status[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the queue contents. Blank keys and unknown statuses are dropped.
func (q *PendingQueue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("pending queue: expected object, got %v", tok)
	}

	fresh := NewPendingQueue()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		rawKey, _ := tok.(string)
		var rawStatus string
		if err := dec.Decode(&rawStatus); err != nil {
			return fmt.Errorf("pending queue: status for %q: %w", rawKey, err)
		}
		key := models.NormalizeKey(rawKey)
		status := models.ApplicantStatus(rawStatus)
		if key == "" || !status.Valid() {
			continue
		}
		fresh.Set(key, status)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*q = *fresh
	return nil
}
