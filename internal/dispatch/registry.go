// Package dispatch is the tool surface: a catalogue of named operations with
// JSON-schema input declarations, each backed by one source adapter. Calls
// always produce an Envelope; adapter errors and panics become isError
// envelopes instead of propagating.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/legalmcp/internal/cache"
	"github.com/mohammad-safakhou/legalmcp/internal/capability"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds one tool call.
const DefaultTimeout = 60 * time.Second

// Error codes carried in error envelopes that are not adapter failures.
const (
	CodeMethodNotFound = "method_not_found"
	CodeInvalidParams  = "invalid_params"
	CodeInternal       = "internal_error"
)

// Handler runs one operation on raw JSON arguments that already passed schema
// validation.
type Handler func(ctx context.Context, args json.RawMessage) ([]legal.Document, error)

// Factory builds the handler of a registration. It runs once per registry.
type Factory func(d Deps) (Handler, error)

// Registration declares one operation. Credential names the environment
// variable the operation needs; empty means always available.
type Registration struct {
	Name        string
	Description string
	Schema      map[string]any
	Credential  string
	Factory     Factory
}

// Content is one block of an envelope.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Envelope is the result of every call.
type Envelope struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text returns the concatenated text blocks.
func (e Envelope) Text() string {
	var b strings.Builder
	for _, c := range e.Content {
		b.WriteString(c.Text)
	}
	return b.String()
}

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Source string `json:"source,omitempty"`
	Remedy string `json:"remedy,omitempty"`
}

func textEnvelope(text string) Envelope {
	return Envelope{Content: []Content{{Type: "text", Text: text}}}
}

func errorEnvelope(body errorBody) Envelope {
	data, _ := json.Marshal(body)
	env := textEnvelope(string(data))
	env.IsError = true
	return env
}

// ErrorEnvelope converts err into an isError envelope, keeping the kind,
// source and remedy of a *legal.Error.
func ErrorEnvelope(err error) Envelope {
	body := errorBody{Error: err.Error()}
	var le *legal.Error
	if errors.As(err, &le) {
		body.Code = string(le.Kind)
		body.Source = le.Source
		body.Remedy = le.Remedy
	}
	return errorEnvelope(body)
}

// UnknownTool is the envelope for a name that is not in the catalogue.
func UnknownTool(name string) Envelope {
	return errorEnvelope(errorBody{Error: "unknown tool: " + name, Code: CodeMethodNotFound})
}

// Available drops registrations whose credential is not present in creds and
// returns the names it skipped.
func Available(regs []Registration, creds map[string]string) ([]Registration, []string) {
	kept := make([]Registration, 0, len(regs))
	var skipped []string
	for _, reg := range regs {
		if reg.Credential != "" && strings.TrimSpace(creds[reg.Credential]) == "" {
			skipped = append(skipped, reg.Name)
			continue
		}
		kept = append(kept, reg)
	}
	return kept, skipped
}

type tool struct {
	handler Handler
	schema  *jsonschema.Schema
}

// Registry dispatches calls by name.
type Registry struct {
	catalogue *capability.Registry
	tools     map[string]tool
	cache     cache.Cache
	timeout   time.Duration
	tracer    trace.Tracer
	logger    *log.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache stores successful responses in c.
func WithCache(c cache.Cache) Option { return func(r *Registry) { r.cache = c } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option { return func(r *Registry) { r.tracer = t } }

// WithLogger replaces the default "[DISPATCH] " logger.
func WithLogger(l *log.Logger) Option { return func(r *Registry) { r.logger = l } }

// NewRegistry filters regs by the credentials in d, runs every surviving
// factory exactly once and compiles the input schemas.
func NewRegistry(regs []Registration, d Deps, opts ...Option) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]tool, len(regs)),
		cache:   cache.Nop{},
		timeout: DefaultTimeout,
		tracer:  otel.Tracer("legalmcp/dispatch"),
		logger:  log.New(log.Writer(), "[DISPATCH] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}

	kept, skipped := Available(regs, d.Credentials)
	for _, name := range skipped {
		r.logger.Printf("tool %s disabled: credential not configured", name)
	}

	cards := make([]capability.ToolCard, 0, len(kept))
	for _, reg := range kept {
		schema, err := compileSchema(reg.Name, reg.Schema)
		if err != nil {
			return nil, err
		}
		h, err := reg.Factory(d)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", reg.Name, err)
		}
		r.tools[reg.Name] = tool{handler: h, schema: schema}
		cards = append(cards, capability.ToolCard{Name: reg.Name, Description: reg.Description, InputSchema: reg.Schema})
	}
	cat, err := capability.NewRegistry(cards, nil)
	if err != nil {
		return nil, err
	}
	r.catalogue = cat
	r.logger.Printf("%d tools registered, %d disabled", len(kept), len(skipped))
	return r, nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: encode schema: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	res := name + ".json"
	if err := compiler.AddResource(res, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool %s: add schema resource: %w", name, err)
	}
	compiled, err := compiler.Compile(res)
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
	}
	return compiled, nil
}

// Catalogue returns the advertised tools.
func (r *Registry) Catalogue() *capability.Registry { return r.catalogue }

// Tools returns the advertised tool cards in registration order.
func (r *Registry) Tools() []capability.ToolCard { return r.catalogue.Cards() }

// Has reports whether name is in the catalogue.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Call validates args against the tool's schema, runs its handler under the
// per-call timeout and wraps the outcome in an Envelope.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) Envelope {
	t, ok := r.tools[name]
	if !ok {
		r.logger.Printf("unknown tool %q", name)
		recordCall(ctx, name, statusUnknown, 0)
		return UnknownTool(name)
	}

	callID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "tool "+name, trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.call_id", callID),
	))
	defer span.End()

	start := time.Now()
	env, status := r.call(ctx, name, t, args)
	elapsed := time.Since(start)
	recordCall(ctx, name, status, elapsed.Seconds())
	span.SetAttributes(attribute.String("tool.status", status))
	if env.IsError {
		span.SetStatus(codes.Error, env.Text())
		r.logger.Printf("%s [%s] failed in %s: %s", name, callID, elapsed.Round(time.Millisecond), env.Text())
	} else {
		r.logger.Printf("%s [%s] %s in %s", name, callID, status, elapsed.Round(time.Millisecond))
	}
	return env
}

func (r *Registry) call(ctx context.Context, name string, t tool, args map[string]any) (Envelope, string) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return errorEnvelope(errorBody{Error: "invalid arguments: " + err.Error(), Code: CodeInvalidParams}), statusInvalid
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errorEnvelope(errorBody{Error: "invalid arguments: " + err.Error(), Code: CodeInvalidParams}), statusInvalid
	}
	if err := t.schema.Validate(doc); err != nil {
		return errorEnvelope(errorBody{Error: "invalid arguments: " + validationMessage(err), Code: CodeInvalidParams}), statusInvalid
	}

	key := cache.Key(name, args)
	if cached, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Printf("cache get %s: %v", name, err)
	} else if ok {
		return textEnvelope(string(cached)), statusCached
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	docs, err := r.run(callCtx, t.handler, raw)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("%s timed out after %s: %w", name, r.timeout, err)
		}
		return ErrorEnvelope(err), statusError
	}
	if docs == nil {
		docs = []legal.Document{}
	}
	text, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return errorEnvelope(errorBody{Error: "encode result: " + err.Error(), Code: CodeInternal}), statusError
	}
	if cacheable(docs) {
		if err := r.cache.Set(ctx, key, text); err != nil {
			r.logger.Printf("cache set %s: %v", name, err)
		}
	}
	return textEnvelope(string(text)), statusOK
}

// cacheable is false when any document stands in for a failed fetch, so a
// recovered upstream is consulted again on the next call.
func cacheable(docs []legal.Document) bool {
	for _, d := range docs {
		if d.Degraded() {
			return false
		}
	}
	return true
}

func (r *Registry) run(ctx context.Context, h Handler, raw json.RawMessage) (docs []legal.Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Printf("panic in tool handler: %v\n%s", p, debug.Stack())
			err = fmt.Errorf("internal error: %v", p)
		}
	}()
	return h(ctx, raw)
}

// validationMessage flattens a schema error to its innermost causes.
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
