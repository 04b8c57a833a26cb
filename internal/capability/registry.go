package capability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ToolCard is the catalogue entry advertised for one operation.
type ToolCard struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Checksum    string         `json:"checksum,omitempty"`
}

// Registry holds validated ToolCards in registration order.
type Registry struct {
	tools    map[string]ToolCard
	order    []string
	checksum string
}

var (
	// ErrToolMissing indicates a required tool is not registered.
	ErrToolMissing = errors.New("required tool missing")
	// ErrDuplicateTool indicates two cards share a name.
	ErrDuplicateTool = errors.New("duplicate tool")

	toolNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// NewRegistry validates cards, stamps their checksums and ensures every
// required tool exists.
func NewRegistry(cards []ToolCard, required []string) (*Registry, error) {
	reg := &Registry{tools: make(map[string]ToolCard, len(cards))}
	for _, tc := range cards {
		if !toolNameRe.MatchString(tc.Name) {
			return nil, fmt.Errorf("invalid tool name %q", tc.Name)
		}
		if _, ok := reg.tools[tc.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, tc.Name)
		}
		if t, _ := tc.InputSchema["type"].(string); t != "object" {
			return nil, fmt.Errorf("tool %s: input schema must be an object schema", tc.Name)
		}
		sum, err := ComputeChecksum(tc)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tc.Name, err)
		}
		tc.Checksum = sum
		reg.tools[tc.Name] = tc
		reg.order = append(reg.order, tc.Name)
	}
	for _, r := range required {
		if _, ok := reg.tools[r]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, r)
		}
	}
	reg.checksum = catalogueChecksum(reg.tools)
	return reg, nil
}

// Tool returns the card for name.
func (r *Registry) Tool(name string) (ToolCard, bool) {
	if r == nil {
		return ToolCard{}, false
	}
	tc, ok := r.tools[name]
	return tc, ok
}

// Cards returns the catalogue in registration order.
func (r *Registry) Cards() []ToolCard {
	if r == nil {
		return nil
	}
	out := make([]ToolCard, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Checksum identifies the whole catalogue; it changes when any card does.
func (r *Registry) Checksum() string {
	if r == nil {
		return ""
	}
	return r.checksum
}

// ComputeChecksum returns a deterministic hash of the card payload (excluding
// the checksum field). json.Marshal sorts map keys, so schema key order does
// not matter.
func ComputeChecksum(tc ToolCard) (string, error) {
	payload := map[string]any{
		"name":         tc.Name,
		"description":  tc.Description,
		"input_schema": tc.InputSchema,
	}
	normalized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

func catalogueChecksum(tools map[string]ToolCard) string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(tools[name].Checksum)
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
