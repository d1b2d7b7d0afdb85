// internal/agent/operator/operator.go

// Package operator translates normalized agent actions into real side
// effects on the target surface (browser input, API calls).
package operator

import (
	"context"

	"github.com/varga-labs/sherpa-cli/internal/agent/action"
)

// Outcome is the execution result class for one action.
type Outcome int

const (
	// OutcomeFailure means the action did not take effect; the attempt loop
	// retries with fresh perception.
	OutcomeFailure Outcome = iota
	// OutcomeSuccess means the action was dispatched; verification decides
	// whether the step goal was met.
	OutcomeSuccess
	// OutcomeFinished is the terminal signal that the step goal is met.
	OutcomeFinished
	// OutcomeCallUser is the terminal signal that the agent needs a human.
	OutcomeCallUser
)

// Result reports one action execution. Detail carries the terminal reason
// or the failure cause for logging.
type Result struct {
	Outcome Outcome
	Detail  string
}

func failure(detail string) Result             { return Result{Outcome: OutcomeFailure, Detail: detail} }
func success() Result                          { return Result{Outcome: OutcomeSuccess} }
func terminal(o Outcome, reason string) Result { return Result{Outcome: o, Detail: reason} }

// Operator executes one parsed action. Implementations never return an
// error for an action that merely failed; failures feed the retry loop.
type Operator interface {
	Execute(ctx context.Context, act *action.Action) Result
}
