// In file: internal/toolserver/calculator.go
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

// CalculatorTool performs one arithmetic operation on two operands.
type CalculatorTool struct{}

var _ Executor = (*CalculatorTool)(nil)

func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

// calculationResult is returned to the model. Message is always set so the
// model can relay it, including for a division by zero.
type calculationResult struct {
	Result  *float64 `json:"result,omitempty"`
	Message string   `json:"message"`
}

// Descriptor asks for structured operands instead of a free-form expression
// so nothing has to be parsed out of a string.
func (ct *CalculatorTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{
		Name:        "calculate",
		Description: "Performs a basic arithmetic calculation (add, subtract, multiply, divide) on two numbers, e.g. to total expenses or split a budget.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"operand1": {Type: "number", Description: "The first number in the calculation."},
				"operator": {Type: "string", Description: "The operator to use.", Enum: []any{"+", "-", "*", "/"}},
				"operand2": {Type: "number", Description: "The second number in the calculation."},
			},
			Required: []string{"operand1", "operator", "operand2"},
		},
	}
}

func (ct *CalculatorTool) Execute(_ context.Context, _ string, arguments json.RawMessage) (any, error) {
	var args struct {
		Operand1 float64 `json:"operand1"`
		Operand2 float64 `json:"operand2"`
		Operator string  `json:"operator"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, fmt.Errorf("%w: invalid arguments for calculator: %v", ErrBadArguments, err)
	}

	var result float64
	switch args.Operator {
	case "+":
		result = args.Operand1 + args.Operand2
	case "-":
		result = args.Operand1 - args.Operand2
	case "*":
		result = args.Operand1 * args.Operand2
	case "/":
		if args.Operand2 == 0 {
			return calculationResult{Message: "Error: Division by zero is not allowed."}, nil
		}
		result = args.Operand1 / args.Operand2
	default:
		return calculationResult{Message: fmt.Sprintf("Error: Unsupported operator '%s'. Please use +, -, *, or /.", args.Operator)}, nil
	}

	// %g avoids trailing zeros such as "10.000000".
	return calculationResult{Result: &result, Message: fmt.Sprintf("The result is %g.", result)}, nil
}
