package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Options configures the Chrome launcher.
type Options struct {
	ExecPath          string
	Headless          bool
	NoSandbox         bool
	UserAgent         string
	NavigationTimeout time.Duration
	Logger            *log.Logger
}

// Chrome launches one headless Chrome process per Open call.
type Chrome struct {
	opts Options
}

// NewChrome returns a launcher with defaults applied.
func NewChrome(opts Options) *Chrome {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[BROWSER] ", log.LstdFlags)
	}
	return &Chrome{opts: opts}
}

// Open starts a browser process and one tab. The session outlives ctx's
// cancellation; callers release it with Close.
func (c *Chrome) Open(ctx context.Context) (Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.UserAgent(c.opts.UserAgent),
		chromedp.WindowSize(1280, 720),
	)
	if c.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	}
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}

	actx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tctx, cancelTab := chromedp.NewContext(actx)
	p := &chromePage{
		ctx:     tctx,
		navWait: c.opts.NavigationTimeout,
		logger:  c.opts.Logger,
		release: func() {
			cancelTab()
			cancelAlloc()
		},
	}
	// The first Run starts Chrome bound to the context it is given, so it
	// must be the tab context itself; a derived context would kill the
	// process as soon as it is cancelled.
	launched := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		select {
		case <-launched:
		default:
			_ = p.Close()
		}
	})
	err := chromedp.Run(tctx)
	close(launched)
	aborted := !stop() && ctx.Err() != nil
	if err != nil || aborted {
		_ = p.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("launch browser: %w", ctx.Err())
		}
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return p, nil
}

type chromePage struct {
	ctx       context.Context
	navWait   time.Duration
	logger    *log.Logger
	release   func()
	closeOnce sync.Once
}

// run executes actions on an already allocated tab, bounded by the caller's
// ctx. Cancelling the derived context stops the actions, not the browser.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		defer cancelDL()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	nctx, cancel := context.WithTimeout(ctx, p.navWait)
	defer cancel()
	if err := p.run(nctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) SendKeys(ctx context.Context, selector, text string) error {
	if strings.HasSuffix(text, "\n") {
		text = strings.TrimSuffix(text, "\n") + kb.Enter
	}
	return p.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Text(ctx context.Context, strip ...string) (string, error) {
	sel, err := json.Marshal(strings.Join(strip, ", "))
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(`(() => {
	const sel = %s;
	if (sel) { document.querySelectorAll(sel).forEach(n => n.remove()); }
	return document.body ? document.body.innerText : "";
})()`, sel)
	var text string
	err = p.run(ctx, chromedp.Evaluate(script, &text))
	return text, err
}

// Close releases the tab and the browser process. Safe to call repeatedly.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.release()
		p.logger.Printf("session closed")
	})
	return nil
}
