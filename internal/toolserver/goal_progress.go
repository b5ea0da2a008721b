// In file: internal/toolserver/goal_progress.go
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

// GoalProgressTool reports how far a savings goal is from completion.
// It is pure arithmetic; goal records themselves live elsewhere.
type GoalProgressTool struct{}

var _ Executor = (*GoalProgressTool)(nil)

func NewGoalProgressTool() *GoalProgressTool {
	return &GoalProgressTool{}
}

type goalProgress struct {
	UserID          string  `json:"user_id,omitempty"`
	Goal            string  `json:"goal,omitempty"`
	PercentComplete float64 `json:"percent_complete"`
	Remaining       float64 `json:"remaining"`
	// MonthsToGoal is omitted when no monthly contribution was given.
	MonthsToGoal *int   `json:"months_to_goal,omitempty"`
	Message      string `json:"message"`
}

func (gt *GoalProgressTool) Descriptor() tools.Descriptor {
	zero := 0.0
	return tools.Descriptor{
		Name:        "goal_progress",
		Description: "Computes progress towards a savings goal: percent complete, amount remaining, and months left at a given monthly contribution.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"goal":                 {Type: "string", Description: "Name of the goal, e.g. 'Emergency fund'."},
				"target_amount":        {Type: "number", Description: "The amount the goal is aiming for.", ExclusiveMinimum: &zero},
				"current_amount":       {Type: "number", Description: "The amount saved so far.", Minimum: &zero},
				"monthly_contribution": {Type: "number", Description: "Optional amount added every month.", Minimum: &zero},
			},
			Required: []string{"target_amount", "current_amount"},
		},
	}
}

func (gt *GoalProgressTool) Execute(_ context.Context, userID string, arguments json.RawMessage) (any, error) {
	var args struct {
		Goal                string  `json:"goal"`
		TargetAmount        float64 `json:"target_amount"`
		CurrentAmount       float64 `json:"current_amount"`
		MonthlyContribution float64 `json:"monthly_contribution"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, fmt.Errorf("%w: invalid arguments for goal_progress: %v", ErrBadArguments, err)
	}
	if args.TargetAmount <= 0 {
		return nil, fmt.Errorf("%w: target_amount must be positive", ErrBadArguments)
	}

	remaining := math.Max(args.TargetAmount-args.CurrentAmount, 0)
	percent := math.Min(args.CurrentAmount/args.TargetAmount*100, 100)
	out := goalProgress{
		UserID:          userID,
		Goal:            args.Goal,
		PercentComplete: math.Round(percent*100) / 100,
		Remaining:       math.Round(remaining*100) / 100,
	}

	switch {
	case remaining == 0:
		months := 0
		out.MonthsToGoal = &months
		out.Message = "The goal has been reached."
	case args.MonthlyContribution > 0:
		months := int(math.Ceil(remaining / args.MonthlyContribution))
		out.MonthsToGoal = &months
		out.Message = fmt.Sprintf("%.2f%% complete; %d more month(s) at %g per month.", out.PercentComplete, months, args.MonthlyContribution)
	default:
		out.Message = fmt.Sprintf("%.2f%% complete; %g remaining.", out.PercentComplete, out.Remaining)
	}
	return out, nil
}
