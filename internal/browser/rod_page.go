package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// rodPage adapts a rod page to the Page interface. Every operation runs
// under a bounded context and wraps rod's panicking calls in rod.Try.
type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
	actTimeout time.Duration
}

const elementInfoJS = `() => {
	const style = window.getComputedStyle(this);
	const rect = this.getBoundingClientRect();
	return {
		tag: this.tagName.toLowerCase(),
		type: this.type || '',
		name: this.name || '',
		id: this.id || '',
		placeholder: this.placeholder || '',
		text: (this.innerText || this.value || '').trim(),
		required: !!this.required,
		disabled: !!this.disabled,
		visible: style.display !== 'none' && style.visibility !== 'hidden' && rect.width > 0 && rect.height > 0,
	};
}`

func (p *rodPage) Navigate(ctx context.Context, url string) (*NavigationInfo, error) {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	page := p.page.Context(navCtx)

	var response proto.NetworkResponseReceived
	waitResponse := page.WaitEvent(&response)

	err := rod.Try(func() {
		page.MustNavigate(url).MustWaitLoad()
		waitResponse()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	info := &NavigationInfo{URL: p.URL()}
	if response.Response != nil {
		info.StatusCode = response.Response.Status
	}
	return info, nil
}

func (p *rodPage) Query(ctx context.Context, selector string) (*Element, error) {
	actCtx, cancel := context.WithTimeout(ctx, p.actTimeout)
	defer cancel()

	el, err := p.resolve(actCtx, selector)
	if err != nil || el == nil {
		return nil, err
	}
	return p.describe(el, selector)
}

func (p *rodPage) QueryAll(ctx context.Context, selector string) ([]*Element, error) {
	actCtx, cancel := context.WithTimeout(ctx, p.actTimeout)
	defer cancel()

	css, text := SplitSelector(selector)
	els, err := p.page.Context(actCtx).Elements(css)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", css, err)
	}

	var result []*Element
	for _, el := range els {
		info, err := p.describe(el, selector)
		if err != nil {
			continue
		}
		if MatchesText(info.Text, text) {
			result = append(result, info)
		}
	}
	return result, nil
}

func (p *rodPage) Fill(ctx context.Context, selector, value string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		return rod.Try(func() {
			el.MustSelectAllText().MustInput(value)
		})
	})
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		return rod.Try(func() {
			el.MustScrollIntoView().MustClick()
		})
	})
}

func (p *rodPage) SelectOption(ctx context.Context, selector, value string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		return rod.Try(func() {
			el.MustSelect(value)
		})
	})
}

func (p *rodPage) Check(ctx context.Context, selector string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		checked, err := el.Eval(`() => !!this.checked`)
		if err != nil {
			return err
		}
		if checked.Value.Bool() {
			return nil
		}
		return rod.Try(func() {
			el.MustClick()
		})
	})
}

func (p *rodPage) SetFiles(ctx context.Context, selector string, paths []string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		return rod.Try(func() {
			el.MustSetFiles(paths...)
		})
	})
}

func (p *rodPage) FileCount(ctx context.Context, selector string) (int, error) {
	count := 0
	err := p.withElement(ctx, selector, func(el *rod.Element) error {
		obj, err := el.Eval(`() => this.files ? this.files.length : 0`)
		if err != nil {
			return err
		}
		count = obj.Value.Int()
		return nil
	})
	return count, err
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	actCtx, cancel := context.WithTimeout(ctx, p.actTimeout)
	defer cancel()

	html, err := p.page.Context(actCtx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	actCtx, cancel := context.WithTimeout(ctx, p.actTimeout)
	defer cancel()

	info, err := p.page.Context(actCtx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page info: %w", err)
	}
	return info.Title, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) WaitStable(ctx context.Context, d time.Duration) error {
	actCtx, cancel := context.WithTimeout(ctx, p.actTimeout)
	defer cancel()

	return p.page.Context(actCtx).WaitStable(d)
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	actCtx, cancel := context.WithTimeout(ctx, p.actTimeout)
	defer cancel()

	data, err := p.page.Context(actCtx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return data, nil
}

// resolve finds the first element matching an extended selector, or nil
// when nothing matches.
func (p *rodPage) resolve(ctx context.Context, selector string) (*rod.Element, error) {
	css, text := SplitSelector(selector)
	page := p.page.Context(ctx)

	if text == "" {
		has, el, err := page.Has(css)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", css, err)
		}
		if !has {
			return nil, nil
		}
		return el, nil
	}

	els, err := page.Elements(css)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", css, err)
	}
	for _, el := range els {
		obj, err := el.Eval(`() => (this.innerText || this.value || '').trim()`)
		if err != nil {
			continue
		}
		if MatchesText(obj.Value.Str(), text) {
			return el, nil
		}
	}
	return nil, nil
}

func (p *rodPage) withElement(ctx context.Context, selector string, fn func(*rod.Element) error) error {
	actCtx, cancel := context.WithTimeout(ctx, p.actTimeout)
	defer cancel()

	el, err := p.resolve(actCtx, selector)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("element not found: %s", selector)
	}
	return fn(el.Context(actCtx))
}

func (p *rodPage) describe(el *rod.Element, selector string) (*Element, error) {
	obj, err := el.Eval(elementInfoJS)
	if err != nil {
		return nil, fmt.Errorf("failed to describe element: %w", err)
	}

	v := obj.Value
	return &Element{
		Selector:    selector,
		Tag:         v.Get("tag").Str(),
		Type:        v.Get("type").Str(),
		Name:        v.Get("name").Str(),
		ID:          v.Get("id").Str(),
		Placeholder: v.Get("placeholder").Str(),
		Text:        v.Get("text").Str(),
		Required:    v.Get("required").Bool(),
		Visible:     v.Get("visible").Bool(),
		Enabled:     !v.Get("disabled").Bool(),
	}, nil
}
