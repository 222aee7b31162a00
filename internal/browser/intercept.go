package browser

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"ozonscout/internal/extract"
)

// apiPathPatterns select the structured payload traffic worth decoding.
var apiPathPatterns = []string{
	"/api/composer-api.bx/page/json/v2",
	"/api/entrypoint-api.bx/page/json/v2",
	"searchResultsV2",
}

// Capture is one decoded API envelope.
type Capture struct {
	URL     string
	Widgets map[string]any
}

// Interceptor listens to the tab's network events and buffers decoded
// envelopes. The buffer is bounded: when the consumer lags, captures are
// dropped rather than ever blocking navigation.
type Interceptor struct {
	ch  chan Capture
	log *zap.SugaredLogger
}

func NewInterceptor(buffer int, log *zap.SugaredLogger) *Interceptor {
	if buffer <= 0 {
		buffer = 64
	}
	return &Interceptor{ch: make(chan Capture, buffer), log: log}
}

// Attach registers the listener on a session's tab context. Response bodies
// are fetched off the event goroutine; out-of-order and duplicate responses
// are handled downstream by the merge rule.
func (i *Interceptor) Attach(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		respURL := resp.Response.URL
		if resp.Response.Status != 200 || !matchesAPI(respURL) {
			return
		}
		requestID := resp.RequestID

		go func() {
			c := chromedp.FromContext(tabCtx)
			body, err := network.GetResponseBody(requestID).Do(cdp.WithExecutor(tabCtx, c.Target))
			if err != nil {
				return
			}
			widgets, err := extract.DecodeEnvelope(body)
			if err != nil || len(widgets) == 0 {
				// Missing widgetStates means no data this pass, not an error.
				return
			}
			select {
			case i.ch <- Capture{URL: respURL, Widgets: widgets}:
			default:
				i.log.Debugw("interceptor buffer full, dropping capture", "url", respURL)
			}
		}()
	})
}

// Drain empties the buffer and returns everything captured since the last
// call.
func (i *Interceptor) Drain() []Capture {
	var out []Capture
	for {
		select {
		case c := <-i.ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

func matchesAPI(url string) bool {
	for _, p := range apiPathPatterns {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}
