// Package browser provides scoped headless-browser sessions. A Page is owned
// by exactly one adapter invocation and must be closed on every exit path.
package browser

import (
	"context"
	"errors"
)

// Browser opens isolated sessions. Implementations never pool pages.
type Browser interface {
	Open(ctx context.Context) (Page, error)
}

// Page is a single rendered tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// SendKeys types text into the element. A trailing "\n" submits.
	SendKeys(ctx context.Context, selector, text string) error
	Title(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// Text returns document.body.innerText after removing nodes matching strip.
	Text(ctx context.Context, strip ...string) (string, error)
	Close() error
}

// ErrUnavailable is returned when no browser is configured.
var ErrUnavailable = errors.New("headless browser unavailable")

// DefaultStrip lists the non-content nodes removed before reading text.
var DefaultStrip = []string{"script", "style", "nav", "footer", "header"}
