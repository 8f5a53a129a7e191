// Package tasks runs portfolio analyses asynchronously: requests are
// queued, executed one at a time and their results stored for polling.
package tasks

import (
	"time"

	"github.com/risklens/risklens/internal/modules/risk"
	"github.com/risklens/risklens/internal/modules/scenarios"
)

// Status is the lifecycle state of an async analysis task.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusRetry   Status = "RETRY"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Request is the queued analysis input. Scenario, when set, is the
// custom factor shock applied to the analysis; historical crisis
// projections never pass through the queue.
type Request struct {
	Portfolio risk.Portfolio            `json:"portfolio" msgpack:"portfolio"`
	Period    string                    `json:"period,omitempty" msgpack:"period"`
	Scenario  *scenarios.FactorScenario `json:"scenario,omitempty" msgpack:"scenario"`
}

// Task tracks one queued analysis from submission to completion.
type Task struct {
	ID      string  `json:"id" msgpack:"id"`
	Status  Status  `json:"status" msgpack:"status"`
	Request Request `json:"request" msgpack:"request"`

	Result *risk.Result `json:"result,omitempty" msgpack:"result"`
	Error  string       `json:"error,omitempty" msgpack:"error"`

	Retries   int       `json:"retries" msgpack:"retries"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}
