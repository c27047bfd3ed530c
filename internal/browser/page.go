package browser

import (
	"context"
	"time"
)

// Element holds the observable attributes of a DOM element that field
// detection and filling care about.
type Element struct {
	Selector    string
	Tag         string
	Type        string
	Name        string
	ID          string
	Placeholder string
	Text        string
	Required    bool
	Visible     bool
	Enabled     bool
}

// NavigationInfo describes the outcome of a page navigation.
type NavigationInfo struct {
	URL        string
	StatusCode int
}

// Page is the minimal browser page surface the automation pipeline works
// against. Production sessions back it with a rod page; tests use fakes.
type Page interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) (*NavigationInfo, error)

	// Query returns the first element matching the CSS selector, or nil
	// when nothing matches.
	Query(ctx context.Context, selector string) (*Element, error)

	// QueryAll returns every element matching the CSS selector.
	QueryAll(ctx context.Context, selector string) ([]*Element, error)

	// Fill types the value into the element behind the selector,
	// replacing any existing content.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the element behind the selector.
	Click(ctx context.Context, selector string) error

	// SelectOption selects the option whose value or visible text matches.
	SelectOption(ctx context.Context, selector, value string) error

	// Check sets a checkbox or radio input to checked.
	Check(ctx context.Context, selector string) error

	// SetFiles attaches local file paths to a file input.
	SetFiles(ctx context.Context, selector string, paths []string) error

	// FileCount reports how many files a file input currently holds.
	FileCount(ctx context.Context, selector string) (int, error)

	// HTML returns the full serialized document.
	HTML(ctx context.Context) (string, error)

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// URL returns the current page URL.
	URL() string

	// WaitStable waits until the page layout stops changing or the
	// duration elapses.
	WaitStable(ctx context.Context, d time.Duration) error

	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
}
