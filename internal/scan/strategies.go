// Package scan drives the extraction-cache-injection pipeline over a host
// document: find product containers, resolve marketplace offers, and attach
// price badges, at most once per container.
package scan

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/vkarpovich/shopglance/internal/config"
)

// StrategySet is a compiled selector vocabulary: ordered fallback lists
// evaluated first-match-wins. Sets are immutable once compiled and safe for
// concurrent use; hot reload swaps the whole set.
type StrategySet struct {
	containers []string
	names      []string
	anchors    []anchorStrategy
}

type anchorStrategy struct {
	selector     string
	useParent    bool
	documentWide bool
	filter       cel.Program
}

// Compile validates the configured strategies and compiles their CEL text
// filters. Filters see a single string variable `text` and must yield a bool.
// The strings extension is enabled so filters can use trim, indexOf and the
// other string helpers alongside the base library.
func Compile(strategies config.Strategies) (*StrategySet, error) {
	if err := strategies.Validate(); err != nil {
		return nil, err
	}

	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("scan: build filter environment: %w", err)
	}

	anchors := make([]anchorStrategy, 0, len(strategies.Anchors))
	for i, anchor := range strategies.Anchors {
		compiled := anchorStrategy{
			selector:     anchor.Selector,
			useParent:    anchor.UseParent,
			documentWide: anchor.DocumentWide,
		}
		if anchor.TextFilter != "" {
			ast, issues := env.Compile(anchor.TextFilter)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("scan: anchor %d filter: %w", i, issues.Err())
			}
			if ast.OutputType() != cel.BoolType {
				return nil, fmt.Errorf("scan: anchor %d filter must yield a bool, got %s", i, ast.OutputType())
			}
			program, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("scan: anchor %d filter program: %w", i, err)
			}
			compiled.filter = program
		}
		anchors = append(anchors, compiled)
	}

	return &StrategySet{
		containers: append([]string(nil), strategies.Containers...),
		names:      append([]string(nil), strategies.Names...),
		anchors:    anchors,
	}, nil
}

// matchesFilter evaluates the strategy's text filter against a candidate's
// text content. Strategies without a filter accept every candidate;
// evaluation errors reject the candidate rather than failing the scan.
func (a anchorStrategy) matchesFilter(text string) bool {
	if a.filter == nil {
		return true
	}
	out, _, err := a.filter.Eval(map[string]any{"text": text})
	if err != nil {
		return false
	}
	accepted, ok := out.Value().(bool)
	return ok && accepted
}
