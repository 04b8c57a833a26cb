// Package sweep runs one query across many jurisdictions: a sequential,
// rate-limit aware sweep of all fifty states through Open States, and a
// bounded parallel fan-out over heterogeneous sources.
package sweep

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/legalmcp/internal/helpers"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

// AllStates lists the fifty US state codes in sweep order.
var AllStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultPause          = 1500 * time.Millisecond
)

// Sleeper waits d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options tune a Sweeper.
type Options struct {
	// MaxRetries bounds attempts per state, the first included.
	MaxRetries     int
	InitialBackoff time.Duration
	// Pause separates consecutive states.
	Pause time.Duration
	Sleep Sleeper
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	if o.Pause < 0 {
		o.Pause = 0
	}
	if o.Sleep == nil {
		o.Sleep = legal.Pause
	}
	return o
}

// DefaultOptions returns the production pacing.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries, InitialBackoff: DefaultInitialBackoff, Pause: DefaultPause}
}

// StateResult is the outcome for one state.
type StateResult struct {
	State    string `json:"state"`
	Found    int    `json:"found"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Report summarises a sweep.
type Report struct {
	Query     string           `json:"query"`
	States    []StateResult    `json:"states"`
	Succeeded int              `json:"succeeded"`
	Failed    []string         `json:"failed,omitempty"`
	Documents []legal.Document `json:"documents"`
}

// Sweeper queries a jurisdiction-filtered searcher state by state.
type Sweeper struct {
	search legal.Searcher
	opts   Options
	logger *log.Logger
}

// New returns a Sweeper over search, which receives filter "jurisdiction".
func New(search legal.Searcher, opts Options) *Sweeper {
	return &Sweeper{
		search: search,
		opts:   opts.withDefaults(),
		logger: log.New(log.Writer(), "[SWEEP] ", log.LstdFlags),
	}
}

// Run sweeps states (all fifty when empty) sequentially. Rate-limited calls
// are retried with doubling backoff; other failures are recorded and the sweep
// moves on. Failed states contribute a placeholder document. Documents are
// deduplicated across states.
func (s *Sweeper) Run(ctx context.Context, keyword string, states []string) (Report, error) {
	if len(states) == 0 {
		states = AllStates
	}
	rep := Report{Query: keyword, Documents: []legal.Document{}}
	var docs []legal.Document
	for i, st := range states {
		st = strings.ToUpper(strings.TrimSpace(st))
		if i > 0 {
			if err := s.opts.Sleep(ctx, s.opts.Pause); err != nil {
				return rep, err
			}
		}
		found, attempts, err := s.state(ctx, keyword, st)
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		res := StateResult{State: st, Attempts: attempts}
		if err != nil {
			s.logger.Printf("[%s] failed: %v", st, err)
			res.Error = err.Error()
			rep.Failed = append(rep.Failed, st)
			docs = append(docs, failurePlaceholder(st, keyword, err))
		} else {
			s.logger.Printf("[%s] found %d bills", st, len(found))
			res.Found = len(found)
			rep.Succeeded++
			docs = append(docs, found...)
		}
		rep.States = append(rep.States, res)
	}
	rep.Documents = helpers.Dedupe(docs)
	s.logger.Printf("completed: %d/%d states succeeded", rep.Succeeded, len(states))
	return rep, nil
}

func (s *Sweeper) state(ctx context.Context, keyword, st string) ([]legal.Document, int, error) {
	delay := s.opts.InitialBackoff
	q := legal.Query{Keyword: keyword, JurisdictionHint: legal.StateJurisdiction(st), Filter: map[string]string{"jurisdiction": st}}
	for attempt := 1; ; attempt++ {
		docs, err := s.search.Search(ctx, q)
		if err == nil {
			return docs, attempt, nil
		}
		if !legal.IsRateLimited(err) || attempt >= s.opts.MaxRetries {
			return nil, attempt, err
		}
		s.logger.Printf("[%s] rate limited, retrying in %s", st, delay)
		if err := s.opts.Sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
		delay *= 2
	}
}

func failurePlaceholder(st, keyword string, err error) legal.Document {
	d := legal.Placeholder(legal.KindBill, legal.StateJurisdiction(st),
		fmt.Sprintf("%s legislation search failed", st),
		"https://openstates.org/"+strings.ToLower(st)+"/bills/?query="+url.QueryEscape(keyword),
		fmt.Sprintf("Sweep could not retrieve %s bills: %v", st, err))
	d.Identifier = "placeholder-" + strings.ToLower(st)
	d.Metadata["error"] = err.Error()
	return d
}
