package tools

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/mirelabs/converse/internal/log"
)

func TestRegistryLookup(t *testing.T) {
	reg, err := DefaultRegistry(log.NewNop(), &fakeSearcher{})
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}

	want := []string{
		CurrentTimeName,
		RelativeDateName,
		ConvertTimeZonesName,
		WeatherName,
		CalculatorName,
		StatisticsName,
		KnowledgeName,
	}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if got := reg.Count(); got != len(want) {
		t.Errorf("Count() = %d, want %d", got, len(want))
	}

	tool, ok := reg.Lookup(CalculatorName)
	if !ok {
		t.Fatalf("Lookup(%q) not found", CalculatorName)
	}
	if tool.Name() != CalculatorName {
		t.Errorf("Name() = %q, want %q", tool.Name(), CalculatorName)
	}

	if _, ok := reg.Lookup("no_such_tool"); ok {
		t.Error("Lookup(no_such_tool) found, want miss")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	mk := func() *Tool {
		return New("dup", "duplicate", func(_ *ai.ToolContext, _ struct{}) (Result, error) {
			return OKResult(nil), nil
		})
	}
	if _, err := NewRegistry(mk(), mk()); err == nil {
		t.Fatal("NewRegistry(dup, dup) error = nil, want duplicate error")
	}
}

func TestToolInvokeDecodesArguments(t *testing.T) {
	tool := New("echo", "echoes input", func(_ *ai.ToolContext, in CalculatorInput) (Result, error) {
		return OKResult(map[string]any{"operation": in.Operation, "operands": in.Operands}), nil
	})

	res := tool.Invoke(context.Background(), map[string]any{
		"operation": "add",
		"operands":  []any{1.0, 2.5},
	})
	if !res.OK {
		t.Fatalf("Invoke() error = %q, want success", res.Error)
	}
	data := res.Data.(map[string]any)
	if got := data["operation"].(string); got != "add" {
		t.Errorf("operation = %q, want add", got)
	}
	if got := data["operands"].([]float64); !reflect.DeepEqual(got, []float64{1, 2.5}) {
		t.Errorf("operands = %v, want [1 2.5]", got)
	}
}

func TestToolInvokeRejectsMalformedArguments(t *testing.T) {
	tool := New("typed", "typed input", func(_ *ai.ToolContext, in CalculatorInput) (Result, error) {
		return OKResult(nil), nil
	})

	res := tool.Invoke(context.Background(), map[string]any{
		"operands": "not-a-list",
	})
	if res.OK {
		t.Fatal("Invoke(malformed) = success, want error")
	}
	if !strings.Contains(res.Error, "invalid arguments") {
		t.Errorf("error = %q, want invalid arguments", res.Error)
	}
}
