package tools

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/firebase/genkit/go/ai"
)

// Tool name constants for numeric operations.
const (
	// CalculatorName is the tool name for scientific calculation.
	CalculatorName = "scientific_calculator"
	// StatisticsName is the tool name for descriptive statistics.
	StatisticsName = "calculate_statistics"
)

// CalculatorInput defines input for the scientific_calculator tool.
type CalculatorInput struct {
	Operation string    `json:"operation" jsonschema_description:"One of: add, subtract, multiply, divide, power, sqrt, log, sin, cos, tan."`
	Operands  []float64 `json:"operands" jsonschema_description:"Numeric operands for the operation."`
}

// StatisticsInput defines input for the calculate_statistics tool.
type StatisticsInput struct {
	Numbers []float64 `json:"numbers" jsonschema_description:"The list of numeric values to summarize."`
}

// Calculator holds dependencies for the numeric tool handlers.
// All operations are pure; the only dependency is the logger.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator creates a Calculator tool group.
func NewCalculator(logger *slog.Logger) (*Calculator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Calculator{logger: logger}, nil
}

// Tools returns the numeric tool descriptors.
func (c *Calculator) Tools() []*Tool {
	return []*Tool{
		New(CalculatorName,
			"Perform a scientific or arithmetic calculation using explicit operations. "+
				"Use when the user asks for precise numeric evaluation: square roots, "+
				"powers, trigonometric functions, logarithms, or arithmetic.",
			c.Calculate),
		New(StatisticsName,
			"Compute descriptive statistics for a list of numeric values: mean, median, "+
				"mode, spread (std, variance, range, IQR), percentiles, and basic aggregations.",
			c.Statistics),
	}
}

// Calculate evaluates a single named operation over its operands.
// Operand-count and domain violations are business errors for the model.
func (c *Calculator) Calculate(_ *ai.ToolContext, input CalculatorInput) (Result, error) {
	ops := input.Operands
	if len(ops) == 0 {
		return Errf("Operands list cannot be empty."), nil
	}

	var result float64
	switch input.Operation {
	case "add":
		for _, v := range ops {
			result += v
		}
	case "subtract":
		if len(ops) != 2 {
			return Errf("Subtract requires exactly two operands."), nil
		}
		result = ops[0] - ops[1]
	case "multiply":
		result = 1
		for _, v := range ops {
			result *= v
		}
	case "divide":
		if len(ops) != 2 {
			return Errf("Divide requires exactly two operands."), nil
		}
		if ops[1] == 0 {
			return Errf("Division by zero is not allowed."), nil
		}
		result = ops[0] / ops[1]
	case "power":
		if len(ops) != 2 {
			return Errf("Power requires exactly two operands."), nil
		}
		result = math.Pow(ops[0], ops[1])
	case "sqrt":
		if len(ops) != 1 {
			return Errf("Sqrt requires exactly one operand."), nil
		}
		if ops[0] < 0 {
			return Errf("Cannot compute square root of negative number."), nil
		}
		result = math.Sqrt(ops[0])
	case "log":
		if len(ops) != 1 && len(ops) != 2 {
			return Errf("Log requires one value and optional base."), nil
		}
		value := ops[0]
		base := math.E
		if len(ops) == 2 {
			base = ops[1]
		}
		if value <= 0 || base <= 0 {
			return Errf("Logarithm arguments must be positive."), nil
		}
		result = math.Log(value) / math.Log(base)
	case "sin":
		if len(ops) != 1 {
			return Errf("Sin requires exactly one operand."), nil
		}
		result = math.Sin(ops[0])
	case "cos":
		if len(ops) != 1 {
			return Errf("Cos requires exactly one operand."), nil
		}
		result = math.Cos(ops[0])
	case "tan":
		if len(ops) != 1 {
			return Errf("Tan requires exactly one operand."), nil
		}
		result = math.Tan(ops[0])
	default:
		return Errf("Unsupported operation: %s", input.Operation), nil
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return Errf("Result is not a finite number."), nil
	}

	return OKResult(map[string]any{
		"operation": input.Operation,
		"operands":  ops,
		"result":    result,
	}), nil
}
