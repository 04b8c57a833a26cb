// Package browsertest provides a scripted in-memory Browser for adapter tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mohammad-safakhou/legalmcp/internal/browser"
)

// Page is the scripted content served for one URL.
type Page struct {
	Title string
	HTML  string
	// Text overrides the innerText computed from HTML.
	Text string
	// NavigateErr fails navigation to this URL.
	NavigateErr error
}

// Browser serves Pages keyed by exact URL or, failing that, by URL prefix.
type Browser struct {
	mu        sync.Mutex
	Pages     map[string]Page
	OpenErr   error
	// OnClick and OnKeys let tests emulate form interaction; they return the
	// URL the page should move to, or "" to stay.
	OnClick func(current, selector string) string
	OnKeys  func(current, selector, text string) string
	// Hidden selectors fail WaitVisible.
	Hidden map[string]bool

	opens     int
	closes    int
	navigated []string
}

// New returns an empty fake browser.
func New() *Browser { return &Browser{Pages: map[string]Page{}, Hidden: map[string]bool{}} }

// Opens reports how many sessions were started.
func (b *Browser) Opens() int { b.mu.Lock(); defer b.mu.Unlock(); return b.opens }

// Closes reports how many sessions were closed.
func (b *Browser) Closes() int { b.mu.Lock(); defer b.mu.Unlock(); return b.closes }

// Navigated lists every URL visited, in order.
func (b *Browser) Navigated() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigated...)
}

func (b *Browser) Open(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.opens++
	return &page{b: b}, nil
}

func (b *Browser) lookup(url string) (Page, bool) {
	if p, ok := b.Pages[url]; ok {
		return p, true
	}
	best, bestLen := Page{}, -1
	for k, p := range b.Pages {
		if strings.HasPrefix(url, k) && len(k) > bestLen {
			best, bestLen = p, len(k)
		}
	}
	return best, bestLen >= 0
}

type page struct {
	b       *Browser
	current string
	closed  bool
	once    sync.Once
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.navigated = append(p.b.navigated, url)
	pg, ok := p.b.lookup(url)
	if !ok {
		return fmt.Errorf("navigate %s: no scripted page", url)
	}
	if pg.NavigateErr != nil {
		return pg.NavigateErr
	}
	p.current = url
	return nil
}

func (p *page) WaitVisible(ctx context.Context, selector string) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if p.b.Hidden[selector] {
		return fmt.Errorf("wait visible %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if p.b.Hidden[selector] {
		return fmt.Errorf("click %s: not visible", selector)
	}
	if p.b.OnClick != nil {
		if next := p.b.OnClick(p.current, selector); next != "" {
			p.current = next
		}
	}
	return nil
}

func (p *page) SendKeys(ctx context.Context, selector, text string) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if p.b.Hidden[selector] {
		return fmt.Errorf("send keys %s: not visible", selector)
	}
	if p.b.OnKeys != nil {
		if next := p.b.OnKeys(p.current, selector, text); next != "" {
			p.current = next
		}
	}
	return nil
}

func (p *page) Title(ctx context.Context) (string, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	pg, _ := p.b.lookup(p.current)
	return pg.Title, nil
}

func (p *page) Location(ctx context.Context) (string, error) {
	return p.current, nil
}

func (p *page) HTML(ctx context.Context) (string, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	pg, ok := p.b.lookup(p.current)
	if !ok {
		return "", fmt.Errorf("no page loaded")
	}
	return pg.HTML, nil
}

func (p *page) Text(ctx context.Context, strip ...string) (string, error) {
	p.b.mu.Lock()
	pg, ok := p.b.lookup(p.current)
	p.b.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no page loaded")
	}
	if pg.Text != "" {
		return pg.Text, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pg.HTML))
	if err != nil {
		return "", err
	}
	if len(strip) > 0 {
		doc.Find(strings.Join(strip, ", ")).Remove()
	}
	return strings.TrimSpace(doc.Find("body").Text()), nil
}

func (p *page) Close() error {
	p.once.Do(func() {
		p.b.mu.Lock()
		p.b.closes++
		p.closed = true
		p.b.mu.Unlock()
	})
	return nil
}
