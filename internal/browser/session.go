package browser

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"ozonscout/internal/collector"
)

const baseURL = "https://www.ozon.ru"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// Hiding the automation runtime keeps the session alive long enough to be
// useful; the marketplace actively probes for driven browsers.
const antiDetectionScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['ru-RU', 'ru', 'en'] });
window.chrome = { runtime: {} };
`

var blockedMarkers = []string{
	"Доступ ограничен",
	"Подтвердите, что вы не робот",
	"Antibot Challenge",
}

// Session owns one driven browser tab. All collection passes for a task run
// sequentially through it.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	log         *zap.SugaredLogger
}

type SessionOptions struct {
	Headless    bool
	PageTimeout time.Duration
}

func NewSession(opts SessionOptions, log *zap.SugaredLogger) (*Session, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgents[rand.Intn(len(userAgents))]),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     opts.PageTimeout,
		log:         log,
	}
	if err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(antiDetectionScript, nil).Do(ctx)
		}),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser start: %w", err)
	}
	log.Infow("browser session started", "headless", opts.Headless)
	return s, nil
}

func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// Context exposes the tab context for network listeners.
func (s *Session) Context() context.Context { return s.ctx }

// run executes actions against the tab, bounded by the page timeout and
// cancellable through the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// NavigateSearch opens the search view for a keyword. importOnly narrows the
// search to cross-border listings.
func (s *Session) NavigateSearch(ctx context.Context, keyword string, importOnly bool) error {
	target := fmt.Sprintf("%s/search/?text=%s", baseURL, url.QueryEscape(keyword))
	if importOnly {
		target += "&from_global=true"
	}
	err := s.run(ctx,
		chromedp.Navigate(target),
		chromedp.Sleep(time.Duration(2000+rand.Intn(2000))*time.Millisecond),
	)
	if err != nil {
		return collector.Transient(err)
	}
	s.dismissPopups(ctx)
	return s.checkBlocked(ctx)
}

// NavigateProduct opens a product page.
func (s *Session) NavigateProduct(ctx context.Context, sku string) error {
	err := s.run(ctx,
		chromedp.Navigate(fmt.Sprintf("%s/product/%s/", baseURL, sku)),
		chromedp.Sleep(time.Duration(2000+rand.Intn(2000))*time.Millisecond),
	)
	if err != nil {
		return collector.Transient(err)
	}
	return s.checkBlocked(ctx)
}

// Scroll smoothly advances the list view and reports whether the page grew or
// a load-more control was available to click.
func (s *Session) Scroll(ctx context.Context) (bool, error) {
	var prevHeight, newHeight int
	var clickedLoadMore bool
	err := s.run(ctx,
		chromedp.Evaluate(`document.body.scrollHeight`, &prevHeight),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(`
				new Promise((resolve) => {
					const distance = window.innerHeight * 0.8;
					const step = distance / 10;
					let scrolled = 0;
					const timer = setInterval(() => {
						window.scrollBy(0, step);
						scrolled += step;
						if (scrolled >= distance) { clearInterval(timer); resolve(true); }
					}, 50);
				})
			`, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}).Do(ctx)
		}),
		chromedp.Sleep(time.Duration(1500+rand.Intn(1500))*time.Millisecond),
		chromedp.Evaluate(loadMoreScript, &clickedLoadMore),
		chromedp.Evaluate(`document.body.scrollHeight`, &newHeight),
	)
	if err != nil {
		return false, collector.Transient(err)
	}
	if clickedLoadMore {
		return true, nil
	}
	return newHeight > prevHeight, nil
}

// loadMoreScript clicks the explicit pagination control when present.
const loadMoreScript = `
(() => {
	const buttons = document.querySelectorAll('button, div[class*="paginator"] button');
	for (const b of buttons) {
		if ((b.textContent || '').includes('Показать ещё')) { b.click(); return true; }
	}
	return false;
})()
`

// TriggerDetailPhase scrolls a product page down so the lazily-loaded
// characteristics widgets issue their second-phase request.
func (s *Session) TriggerDetailPhase(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight * 0.7)`, nil),
		chromedp.Sleep(time.Duration(1500+rand.Intn(1000))*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(time.Duration(1000+rand.Intn(1000))*time.Millisecond),
	)
	if err != nil {
		return collector.Transient(err)
	}
	return nil
}

// BodyText returns the rendered page text.
func (s *Session) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text(`body`, &text, chromedp.ByQuery)); err != nil {
		return "", collector.Transient(err)
	}
	return text, nil
}

// HTML returns the rendered document markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML(`html`, &html, chromedp.ByQuery)); err != nil {
		return "", collector.Transient(err)
	}
	return html, nil
}

// URL returns the tab's current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", collector.Transient(err)
	}
	return loc, nil
}

func (s *Session) dismissPopups(ctx context.Context) {
	// Cookie banners and region modals sit on top of the list; failing to
	// close them is not fatal.
	_ = s.run(ctx, chromedp.Evaluate(`
		(() => {
			for (const b of document.querySelectorAll('[class*="modal"] button[class*="close"]')) {
				try { b.click(); } catch (e) {}
			}
			return true;
		})()
	`, nil))
}

func (s *Session) checkBlocked(ctx context.Context) error {
	text, err := s.BodyText(ctx)
	if err != nil {
		return nil
	}
	for _, marker := range blockedMarkers {
		if strings.Contains(text, marker) {
			s.log.Warnw("anti-bot interstitial detected", "marker", marker)
			return collector.ErrAntiBot
		}
	}
	return nil
}
