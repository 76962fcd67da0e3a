// Package queue runs units over a durable message queue with a pool of
// independently scaled consumers. Delivery is at-least-once; fragments are
// keyed by unit so a duplicate delivery overwrites instead of
// double-counting.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Unit kinds carried in task messages.
const (
	KindStation = "station"
	KindRegion  = "region"
)

// Task is one durable message: compute the metrics of one partition for
// one run.
type Task struct {
	RunID string `json:"run_id"`
	Kind  string `json:"kind"`
	Key   string `json:"key"`
}

// ErrBadTask indicates an undecodable or incomplete task message.
var ErrBadTask = errors.New("queue: bad task")

// UnitID is the fragment-store field for the task, unique per unit within
// a run.
func (t Task) UnitID() string { return t.Kind + ":" + t.Key }

// Encode marshals the task for publishing.
func (t Task) Encode() ([]byte, error) { return json.Marshal(t) }

// DecodeTask unmarshals and validates a task message.
func DecodeTask(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrBadTask, err)
	}
	if t.RunID == "" || t.Key == "" {
		return Task{}, fmt.Errorf("%w: missing run id or key", ErrBadTask)
	}
	if t.Kind != KindStation && t.Kind != KindRegion {
		return Task{}, fmt.Errorf("%w: kind %q", ErrBadTask, t.Kind)
	}
	return t, nil
}
