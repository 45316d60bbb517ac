// Package chromedp_tab drives a running Chrome over the DevTools protocol to
// act as the browser collaborator: it reports the active tab, follows its
// navigations, opens sources and captures page context.
package chromedp_tab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/adapter/webpage"
	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/pkg/utils"
)

const (
	pageTargetType   = "page"
	navigationBuffer = 16
)

// Tab is attached to a remote browser started with --remote-debugging-port.
type Tab struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	captureTimeout time.Duration
	logger         *zap.Logger

	// targets opened by Capture; never reported as the active tab
	mu    sync.Mutex
	owned map[target.ID]struct{}
}

// New connects to the DevTools endpoint at debuggerURL (a ws:// URL or the
// http:// address of the debugging port).
func New(ctx context.Context, debuggerURL string, captureTimeout time.Duration, logger *zap.Logger) (*Tab, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, debuggerURL)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Targets connects to the browser without opening a tab of our own.
	if _, err := chromedp.Targets(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("connect to browser at %s: %w", debuggerURL, err)
	}
	logger.Info("attached to browser", zap.String("debugger_url", debuggerURL))

	return &Tab{
		browserCtx:     browserCtx,
		cancelBrowser:  cancelBrowser,
		cancelAlloc:    cancelAlloc,
		captureTimeout: captureTimeout,
		logger:         logger,
		owned:          make(map[target.ID]struct{}),
	}, nil
}

var (
	_ repository.TabRepository  = (*Tab)(nil)
	_ repository.PageRepository = (*Tab)(nil)
)

// Close disconnects from the browser. The browser and its tabs keep running.
func (t *Tab) Close() {
	t.cancelBrowser()
	t.cancelAlloc()
}

// ActiveURL returns the URL of the user's current page tab.
func (t *Tab) ActiveURL(ctx context.Context) (string, error) {
	info, err := t.activeTarget(ctx)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (t *Tab) activeTarget(ctx context.Context) (*target.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := chromedp.Targets(t.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	info, ok := pickActive(infos, t.isOwned)
	if !ok {
		return nil, repository.ErrNoActiveTab
	}
	return info, nil
}

// Navigate opens url in a new foreground tab so the answer's page stays
// reachable through history.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	exec := t.browserExecutor()
	id, err := target.CreateTarget(url).Do(exec)
	if err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	if err := target.ActivateTarget(id).Do(exec); err != nil {
		return fmt.Errorf("activate tab for %s: %w", url, err)
	}
	t.logger.Debug("opened tab", zap.String("url", url), zap.String("target_id", string(id)))
	return nil
}

// Navigations reports the URL of every top-level page navigation until ctx is done.
// Events are dropped rather than queued when the consumer falls behind; only
// the latest URL matters to readiness.
func (t *Tab) Navigations(ctx context.Context) (<-chan string, error) {
	if err := target.SetDiscoverTargets(true).Do(t.browserExecutor()); err != nil {
		return nil, fmt.Errorf("discover targets: %w", err)
	}

	out := make(chan string, navigationBuffer)
	var (
		mu     sync.Mutex
		closed bool
		last   = make(map[target.ID]string)
	)

	lctx, cancel := context.WithCancel(t.browserCtx)
	chromedp.ListenBrowser(lctx, func(ev any) {
		info, ok := navigationTarget(ev)
		if !ok || t.isOwned(info.TargetID) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed || last[info.TargetID] == info.URL {
			return
		}
		last[info.TargetID] = info.URL
		select {
		case out <- info.URL:
		default:
			t.logger.Debug("navigation event dropped", zap.String("url", info.URL))
		}
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-lctx.Done():
		}
		cancel()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}

// Capture loads url in a throwaway tab and extracts its page context.
func (t *Tab) Capture(ctx context.Context, url string) (*entity.PageContext, error) {
	tabCtx, cancelTab := chromedp.NewContext(t.browserCtx)
	defer cancelTab()
	// Cancelling the caller's ctx also abandons the capture.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, t.captureTimeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(timeoutCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			t.own(chromedp.FromContext(ctx).Target.TargetID)
			return nil
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		defer t.disown(c.Target.TargetID)
	}
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", url, err)
	}
	return webpage.ExtractPageContext(url, html)
}

func (t *Tab) browserExecutor() context.Context {
	c := chromedp.FromContext(t.browserCtx)
	return cdp.WithExecutor(t.browserCtx, c.Browser)
}

func (t *Tab) own(id target.ID) {
	t.mu.Lock()
	t.owned[id] = struct{}{}
	t.mu.Unlock()
}

func (t *Tab) disown(id target.ID) {
	t.mu.Lock()
	delete(t.owned, id)
	t.mu.Unlock()
}

func (t *Tab) isOwned(id target.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.owned[id]
	return ok
}

// pickActive returns the first page target the user could be looking at.
// DevTools lists the most recently focused page first.
func pickActive(infos []*target.Info, skip func(target.ID) bool) (*target.Info, bool) {
	var fallback *target.Info
	for _, info := range infos {
		if info == nil || info.Type != pageTargetType || info.Subtype != "" || skip(info.TargetID) {
			continue
		}
		if utils.IsWebURL(info.URL) {
			return info, true
		}
		if fallback == nil {
			fallback = info
		}
	}
	return fallback, fallback != nil
}

// navigationTarget extracts the page target whose URL an event reports.
func navigationTarget(ev any) (*target.Info, bool) {
	var info *target.Info
	switch ev := ev.(type) {
	case *target.EventTargetCreated:
		info = ev.TargetInfo
	case *target.EventTargetInfoChanged:
		info = ev.TargetInfo
	default:
		return nil, false
	}
	if info == nil || info.Type != pageTargetType || info.URL == "" {
		return nil, false
	}
	return info, true
}
