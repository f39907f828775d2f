package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// chromePage is a Page backed by one chromedp tab.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

// run executes actions on the tab bounded by timeout and the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.opts.NavTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Settle(ctx context.Context) error {
	d := p.opts.SettleDelay
	return p.run(ctx, p.opts.NavTimeout,
		chromedp.Sleep(d),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(d),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(d),
	)
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.opts.NavTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, p.opts.NavTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (p *chromePage) ClickFirst(ctx context.Context, selectors []string) (bool, error) {
	for _, sel := range selectors {
		var nodes []*cdp.Node
		if err := p.run(ctx, p.opts.NavTimeout,
			chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		); err != nil {
			return false, fmt.Errorf("query %s: %w", sel, err)
		}
		if len(nodes) == 0 {
			continue
		}
		if err := p.run(ctx, p.opts.NavTimeout, chromedp.MouseClickNode(nodes[0])); err != nil {
			return false, fmt.Errorf("click %s: %w", sel, err)
		}
		return true, nil
	}
	return false, nil
}

func (p *chromePage) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	quoted, err := json.Marshal(url)
	if err != nil {
		return nil, err
	}
	script := fmt.Sprintf(`(async () => {
		try {
			const res = await fetch(%s, { method: 'GET', headers: { 'Accept': 'application/json' } });
			if (!res.ok) return '';
			return await res.text();
		} catch (e) {
			return '';
		}
	})()`, quoted)

	var body string
	if err := p.run(ctx, p.opts.NavTimeout,
		chromedp.Evaluate(script, &body, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		}),
	); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if body == "" {
		return nil, nil
	}
	return []byte(body), nil
}

// Close closes the tab. It is safe to call more than once.
func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
