package sweep

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

// DefaultFanOutLimit bounds concurrent targets in FanOut.
const DefaultFanOutLimit = 4

// Target is one leg of a fan-out.
type Target struct {
	Name     string
	Searcher legal.Searcher
	Query    legal.Query
	// Kind, Jurisdiction and ManualURL describe the placeholder returned
	// when the leg fails.
	Kind         legal.SourceKind
	Jurisdiction string
	ManualURL    string
}

// Result is the outcome of one Target.
type Result struct {
	Target    string
	Documents []legal.Document
	Err       error
}

// FanOut runs targets concurrently, at most limit at a time. Each failing
// target yields a placeholder document instead of failing the whole call.
// Results keep target order.
func FanOut(ctx context.Context, limit int, targets []Target) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultFanOutLimit
	}
	results := make([]Result, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, t := range targets {
		g.Go(func() error {
			docs, err := t.Searcher.Search(ctx, t.Query)
			results[i] = Result{Target: t.Name, Documents: docs, Err: err}
			if err != nil {
				results[i].Documents = []legal.Document{targetPlaceholder(t, err)}
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Flatten concatenates the documents of results in order.
func Flatten(results []Result) []legal.Document {
	out := []legal.Document{}
	for _, r := range results {
		out = append(out, r.Documents...)
	}
	return out
}

func targetPlaceholder(t Target, err error) legal.Document {
	d := legal.Placeholder(t.Kind, t.Jurisdiction, fmt.Sprintf("%s search failed", t.Name), t.ManualURL,
		fmt.Sprintf("%s search failed: %v. Visit %s to search manually.", t.Name, err, t.ManualURL))
	d.Metadata["target"] = t.Name
	d.Metadata["error"] = err.Error()
	return d
}
