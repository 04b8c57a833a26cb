// Package fallback orders an adapter's retrieval strategies and escalates
// from plain HTTP to a rendered browser page when static content is unusable.
package fallback

import (
	"context"
	"errors"
	"log"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

// Step is one retrieval strategy.
type Step struct {
	Name string
	Run  func(ctx context.Context) ([]legal.Document, error)
}

// Outcome records how a chain resolved.
type Outcome struct {
	// Served names the step whose documents were returned, "" when none.
	Served string
	// Failed maps step names to the error they returned.
	Failed map[string]error
}

var chainLogger = log.New(log.Writer(), "[FALLBACK] ", log.LstdFlags)

// Run tries steps in order and returns the first non-empty result. Terminal
// errors (bad credentials, rate limits, unsupported input) stop the chain.
// When every step fails the errors are joined; when steps merely found
// nothing an empty slice is returned.
func Run(ctx context.Context, source string, steps ...Step) ([]legal.Document, Outcome, error) {
	out := Outcome{Failed: map[string]error{}}
	var errs []error
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, out, err
		}
		docs, err := step.Run(ctx)
		if err != nil {
			out.Failed[step.Name] = err
			if legal.IsTerminal(err) || errors.Is(err, context.Canceled) {
				return nil, out, err
			}
			errs = append(errs, err)
			if i < len(steps)-1 {
				chainLogger.Printf("%s: step %s failed, falling back: %v", source, step.Name, err)
				recordStep(ctx, source, step.Name, "error")
			}
			continue
		}
		if len(docs) > 0 {
			out.Served = step.Name
			recordStep(ctx, source, step.Name, "served")
			return docs, out, nil
		}
		recordStep(ctx, source, step.Name, "empty")
	}
	if len(errs) == len(steps) && len(errs) > 0 {
		return nil, out, errors.Join(errs...)
	}
	return []legal.Document{}, out, nil
}
