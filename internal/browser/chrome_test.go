package browser

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestChromePageCloseReleasesOnce(t *testing.T) {
	released := 0
	p := &chromePage{
		logger:  log.New(io.Discard, "", 0),
		release: func() { released++ },
	}
	for i := 0; i < 3; i++ {
		if err := p.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
	if released != 1 {
		t.Fatalf("expected release once, got %d", released)
	}
}

func TestNewChromeDefaults(t *testing.T) {
	c := NewChrome(Options{Headless: true})
	if c.opts.NavigationTimeout != 30*time.Second {
		t.Fatalf("navigation timeout default = %s", c.opts.NavigationTimeout)
	}
	if c.opts.UserAgent == "" || c.opts.Logger == nil {
		t.Fatalf("expected defaults for user agent and logger")
	}
}

func chromePath(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary found; set CHROME_PATH to run")
	return ""
}

func TestChromeSessionIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	exe := chromePath(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/act":
			_, _ = w.Write([]byte(`<html><head><title>Privacy Act</title></head><body><nav>menu</nav><p>Section 1. Personal data shall be protected.</p></body></html>`))
		default:
			_, _ = w.Write([]byte(`<html><head><title>Index</title></head><body><a id="next" href="/act">Act</a></body></html>`))
		}
	}))
	defer srv.Close()

	c := NewChrome(Options{
		ExecPath:          exe,
		Headless:          true,
		NoSandbox:         true,
		NavigationTimeout: 20 * time.Second,
		Logger:            log.New(io.Discard, "", 0),
	})

	// The session must outlive the context it was opened with.
	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	page, err := c.Open(openCtx)
	cancelOpen()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer page.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := page.Navigate(ctx, srv.URL+"/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if err := page.Click(ctx, "#next"); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if err := page.WaitVisible(ctx, "p"); err != nil {
		t.Fatalf("WaitVisible() error = %v", err)
	}
	title, err := page.Title(ctx)
	if err != nil || title != "Privacy Act" {
		t.Fatalf("Title() = %q, %v", title, err)
	}
	loc, err := page.Location(ctx)
	if err != nil || loc != srv.URL+"/act" {
		t.Fatalf("Location() = %q, %v", loc, err)
	}
	text, err := page.Text(ctx, "nav")
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if !strings.Contains(text, "Personal data shall be protected.") || strings.Contains(text, "menu") {
		t.Fatalf("unexpected text %q", text)
	}
	html, err := page.HTML(ctx)
	if err != nil || !strings.Contains(html, "<p>Section 1.") {
		t.Fatalf("HTML() = %q, %v", html, err)
	}

	// A second navigation after an action timed out still works.
	short, cancelShort := context.WithTimeout(ctx, time.Millisecond)
	_ = page.WaitVisible(short, "#never")
	cancelShort()
	if err := page.Navigate(ctx, srv.URL+"/act"); err != nil {
		t.Fatalf("Navigate() after timed out action error = %v", err)
	}
}
