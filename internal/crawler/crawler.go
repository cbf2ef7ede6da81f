package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrTabOutOfRange is returned when a tab index does not name an open tab.
var ErrTabOutOfRange = errors.New("tab index out of range")

// Options configures the browser
type Options struct {
	Width             int
	Height            int
	Headless          bool
	ProfileDir        string // Chrome/Chromium profile directory for authenticated sessions
	NavigationTimeout time.Duration
}

// Browser wraps the Rod browser and the page the agent currently drives
type Browser struct {
	browser *rod.Browser
	page    *rod.Page
	opts    Options

	// opened ranks targets by when they were first seen; it fixes tab indices.
	opened map[proto.TargetTargetID]int
}

// Launch starts a browser, opens url in a fresh page and waits for it to settle.
func Launch(ctx context.Context, url string, opts Options) (*Browser, error) {
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1280, 720
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	rb := rod.New().ControlURL(u).Context(ctx)
	if err := rb.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	b := &Browser{browser: rb, opts: opts, opened: make(map[proto.TargetTargetID]int)}
	page, err := b.openPage(ctx, url)
	if err != nil {
		_ = rb.Close()
		return nil, err
	}
	b.page = page
	return b, nil
}

// Close cleans up browser resources
func (b *Browser) Close() {
	if b.browser != nil {
		_ = b.browser.Close()
	}
}

// Page returns the page the agent currently drives
func (b *Browser) Page() *rod.Page {
	return b.page
}

// ActionTimeout bounds a single element operation
func (b *Browser) ActionTimeout() time.Duration {
	return b.opts.NavigationTimeout
}

// Observe captures the page geometry, open tabs and visible interactive elements.
func (b *Browser) Observe(ctx context.Context) (*Observation, error) {
	page := b.page.Context(ctx)

	res, err := page.Eval(`() => ({
		url: window.location.href,
		title: document.title,
		viewport_width: window.innerWidth,
		viewport_height: window.innerHeight,
		page_width: document.body ? document.body.scrollWidth : 0,
		page_height: document.body ? document.body.scrollHeight : 0,
		scroll_x: Math.round(window.scrollX),
		scroll_y: Math.round(window.scrollY),
	})`)
	if err != nil {
		return nil, fmt.Errorf("read page state: %w", err)
	}
	v := res.Value

	tabs, err := b.tabInfo(ctx)
	if err != nil {
		return nil, err
	}

	elements, handles, err := Enumerate(ctx, b.page)
	if err != nil {
		return nil, err
	}

	return &Observation{
		Elements: elements,
		URL:      v.Get("url").Str(),
		Title:    v.Get("title").Str(),
		Tabs:     tabs,
		PageInfo: PageInfo{
			ViewportWidth:  v.Get("viewport_width").Int(),
			ViewportHeight: v.Get("viewport_height").Int(),
			PageWidth:      v.Get("page_width").Int(),
			PageHeight:     v.Get("page_height").Int(),
			ScrollX:        v.Get("scroll_x").Int(),
			ScrollY:        v.Get("scroll_y").Int(),
		},
		handles: handles,
	}, nil
}

// Screenshot captures the current viewport as a JPEG
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	quality := 95
	data, err := b.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return data, nil
}

// SwitchTab makes the tab at index current and brings it to the front.
func (b *Browser) SwitchTab(ctx context.Context, index int) error {
	pages, err := b.tabs(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(pages) {
		return fmt.Errorf("%w: %d (open tabs: %d)", ErrTabOutOfRange, index, len(pages))
	}
	page := pages[index]
	if _, err := page.Context(ctx).Activate(); err != nil {
		return fmt.Errorf("activate tab %d: %w", index, err)
	}
	b.page = page
	return nil
}

// NewTab opens a blank tab and makes it current.
func (b *Browser) NewTab(ctx context.Context) error {
	page, err := b.openPage(ctx, "about:blank")
	if err != nil {
		return err
	}
	b.page = page
	return nil
}

// CloseTab closes the current tab. The last remaining tab becomes current, or
// a blank one is opened when nothing is left.
func (b *Browser) CloseTab(ctx context.Context) error {
	closing := b.page
	if err := closing.Context(ctx).Close(); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}

	pages, err := b.tabs(ctx)
	if err != nil {
		return err
	}
	for i := len(pages) - 1; i >= 0; i-- {
		if pages[i].TargetID == closing.TargetID {
			continue
		}
		if _, err := pages[i].Context(ctx).Activate(); err != nil {
			return fmt.Errorf("activate tab: %w", err)
		}
		b.page = pages[i]
		return nil
	}
	return b.NewTab(ctx)
}

// Settle waits for the current page to finish loading and for SPAs to render
// their first interactive elements.
func (b *Browser) Settle(ctx context.Context) error {
	return settle(b.page.Context(ctx), b.opts.NavigationTimeout)
}

func (b *Browser) openPage(ctx context.Context, url string) (*rod.Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	b.track(page.TargetID)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := settle(page, b.opts.NavigationTimeout); err != nil {
		return nil, err
	}
	return page, nil
}

// tabs lists the open pages in the order they were opened. Chrome reports
// targets in no documented order, so indices come from b.opened instead.
func (b *Browser) tabs(ctx context.Context) (rod.Pages, error) {
	pages, err := b.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	for _, p := range pages {
		b.track(p.TargetID)
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return b.opened[pages[i].TargetID] < b.opened[pages[j].TargetID]
	})
	return pages, nil
}

func (b *Browser) track(id proto.TargetTargetID) {
	if _, ok := b.opened[id]; !ok {
		b.opened[id] = len(b.opened)
	}
}

func (b *Browser) tabInfo(ctx context.Context) ([]TabInfo, error) {
	pages, err := b.tabs(ctx)
	if err != nil {
		return nil, err
	}
	tabs := make([]TabInfo, 0, len(pages))
	for _, p := range pages {
		info, err := p.Context(ctx).Info()
		if err != nil {
			// The tab closed between listing and reading it; keep its slot so
			// later indices still match SwitchTab.
			tabs = append(tabs, TabInfo{})
			continue
		}
		tabs = append(tabs, TabInfo{URL: info.URL, Title: info.Title})
	}
	return tabs, nil
}

func settle(page *rod.Page, timeout time.Duration) error {
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}

	// Don't hang on persistent connections (WebSockets, polling, etc.)
	page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	if detectSPA(page) {
		waitForInteractiveElements(page, 5*time.Second)
	}
	return nil
}

// waitForInteractiveElements polls until interactive elements appear or timeout
func waitForInteractiveElements(page *rod.Page, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	checkInterval := 200 * time.Millisecond

	for time.Now().Before(deadline) {
		res, err := page.Eval(`() => {
			let visible = 0;
			document.querySelectorAll(` + "`" + InteractiveSelector + "`" + `).forEach(el => { if (el.offsetParent) visible++; });
			return visible;
		}`)
		if err != nil {
			return
		}
		if res.Value.Int() > 0 {
			time.Sleep(300 * time.Millisecond)
			return
		}
		time.Sleep(checkInterval)
	}
}

// detectSPA checks if the page is a Single Page Application
func detectSPA(page *rod.Page) bool {
	res, err := page.Eval(`() => {
		if (window.__REACT_DEVTOOLS_GLOBAL_HOOK__ || document.querySelector('[data-reactroot]') || document.querySelector('#__next')) return true;
		if (window.__VUE__ || document.querySelector('[data-v-app]')) return true;
		if (window.ng || document.querySelector('[ng-version]') || document.querySelector('app-root')) return true;
		if (document.querySelector('[class*="svelte-"]')) return true;
		return false;
	}`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}
