package tools

import (
	"fmt"
	"log/slog"
)

// DefaultRegistry assembles the assistant's built-in tool set: time
// operations, weather lookup, scientific calculation, descriptive
// statistics, and knowledge-base search.
//
// knowledgeStore is required; the knowledge tool is core functionality and
// cannot work without it.
func DefaultRegistry(logger *slog.Logger, knowledgeStore KnowledgeSearcher, weatherOpts ...WeatherOption) (*Registry, error) {
	tm, err := NewTime(logger)
	if err != nil {
		return nil, fmt.Errorf("time tools: %w", err)
	}
	weather, err := NewWeather(logger, weatherOpts...)
	if err != nil {
		return nil, fmt.Errorf("weather tools: %w", err)
	}
	calc, err := NewCalculator(logger)
	if err != nil {
		return nil, fmt.Errorf("calculator tools: %w", err)
	}
	kb, err := NewKnowledge(knowledgeStore, logger)
	if err != nil {
		return nil, fmt.Errorf("knowledge tools: %w", err)
	}

	var all []*Tool
	all = append(all, tm.Tools()...)
	all = append(all, weather.Tools()...)
	all = append(all, calc.Tools()...)
	all = append(all, kb.Tools()...)
	return NewRegistry(all...)
}
