// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"sync"
	"time"

	"applymate/internal/browser"
)

// FakePage is a scriptable in-memory implementation of browser.Page. Tests
// register elements under the CSS part of the selectors the code under test
// will use; extended "css|text" selectors are honored the same way the rod
// adapter honors them.
type FakePage struct {
	mu sync.Mutex

	PageURL   string
	PageTitle string
	PageHTML  string

	// NavStatus is the HTTP status reported for navigations. Zero means 200.
	NavStatus int
	// NavErr fails Navigate outright when set.
	NavErr error

	elements map[string][]*browser.Element

	// FillErrs fails Fill for the given selector.
	FillErrs map[string]error
	// FileCounts overrides the count reported for a file input.
	FileCounts map[string]int

	Filled   map[string]string
	Clicked  []string
	Selected map[string]string
	Checked  []string
	Files    map[string][]string

	Navigations []string
	Shots       int
}

// NewFakePage returns an empty page at the given URL.
func NewFakePage(url string) *FakePage {
	return &FakePage{
		PageURL:    url,
		elements:   make(map[string][]*browser.Element),
		FillErrs:   make(map[string]error),
		FileCounts: make(map[string]int),
		Filled:     make(map[string]string),
		Selected:   make(map[string]string),
		Files:      make(map[string][]string),
	}
}

// AddElement registers an element so that queries for the given CSS selector
// find it. The element's Selector field is set to the CSS selector when empty.
func (p *FakePage) AddElement(css string, el *browser.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el.Selector == "" {
		el.Selector = css
	}
	p.elements[css] = append(p.elements[css], el)
}

// AddVisibleInput is shorthand for registering an enabled, visible input.
func (p *FakePage) AddVisibleInput(css, inputType, name string) {
	p.AddElement(css, &browser.Element{
		Tag:     "input",
		Type:    inputType,
		Name:    name,
		Visible: true,
		Enabled: true,
	})
}

func (p *FakePage) match(selector string) []*browser.Element {
	css, text := browser.SplitSelector(selector)
	var out []*browser.Element
	for _, el := range p.elements[css] {
		if browser.MatchesText(el.Text, text) {
			out = append(out, el)
		}
	}
	return out
}

func (p *FakePage) Navigate(ctx context.Context, url string) (*browser.NavigationInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if p.NavErr != nil {
		return nil, p.NavErr
	}
	p.PageURL = url
	status := p.NavStatus
	if status == 0 {
		status = 200
	}
	return &browser.NavigationInfo{URL: url, StatusCode: status}, nil
}

func (p *FakePage) Query(ctx context.Context, selector string) (*browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	matches := p.match(selector)
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (p *FakePage) QueryAll(ctx context.Context, selector string) ([]*browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.match(selector), nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FillErrs[selector]; err != nil {
		return err
	}
	p.Filled[selector] = value
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clicked = append(p.Clicked, selector)
	return nil
}

func (p *FakePage) SelectOption(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Selected[selector] = value
	return nil
}

func (p *FakePage) Check(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Checked = append(p.Checked, selector)
	return nil
}

func (p *FakePage) SetFiles(ctx context.Context, selector string, paths []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Files[selector] = paths
	return nil
}

func (p *FakePage) FileCount(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.FileCounts[selector]; ok {
		return n, nil
	}
	return len(p.Files[selector]), nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageHTML, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageURL
}

func (p *FakePage) WaitStable(ctx context.Context, d time.Duration) error {
	return nil
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Shots++
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

var _ browser.Page = (*FakePage)(nil)
