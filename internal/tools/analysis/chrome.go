package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"allycheck/internal/logging"
	"allycheck/internal/tools"
)

// Auditor runs axe-core against markup or a live URL.
type Auditor interface {
	AnalyzeHTML(ctx context.Context, html string, tags []string) (*AxeResults, error)
	AnalyzeURL(ctx context.Context, url, waitFor string, timeout time.Duration) (*AxeResults, error)
}

// Capturer renders a page and saves a PNG, returning the file path.
type Capturer interface {
	Capture(ctx context.Context, target CaptureTarget) (string, error)
}

// CaptureTarget selects what to screenshot. Exactly one of URL and HTML is set.
type CaptureTarget struct {
	URL      string
	HTML     string
	Selector string
	FullPage bool
}

// PageSource hands out isolated pages. *browser.Manager implements it.
type PageSource interface {
	WithPage(ctx context.Context, fn func(page *rod.Page) error) error
}

// Chrome implements Auditor and Capturer on a shared headless browser.
type Chrome struct {
	pages       PageSource
	scriptURL   string
	evidenceDir string
}

// NewChrome returns a Chrome that saves screenshots under evidenceDir.
func NewChrome(pages PageSource, evidenceDir string) *Chrome {
	if evidenceDir == "" {
		evidenceDir = filepath.Join(os.TempDir(), "allycheck-evidence")
	}
	return &Chrome{pages: pages, scriptURL: AxeScriptURL, evidenceDir: evidenceDir}
}

// AnalyzeHTML loads html into a blank page and runs axe.
func (c *Chrome) AnalyzeHTML(ctx context.Context, html string, tags []string) (*AxeResults, error) {
	var res *AxeResults
	err := c.pages.WithPage(ctx, func(page *rod.Page) error {
		if err := page.SetDocumentContent(html); err != nil {
			return fmt.Errorf("set content: %w", err)
		}
		var err error
		res, err = c.runAxe(page, tags)
		return err
	})
	return res, err
}

// AnalyzeURL navigates to url, optionally waits for a selector, and runs axe.
func (c *Chrome) AnalyzeURL(ctx context.Context, url, waitFor string, timeout time.Duration) (*AxeResults, error) {
	var res *AxeResults
	err := c.pages.WithPage(ctx, func(page *rod.Page) error {
		if err := navigate(page, url, timeout); err != nil {
			return err
		}
		if waitFor != "" {
			if _, err := page.Timeout(5 * time.Second).Element(waitFor); err != nil {
				return fmt.Errorf("wait for %q: %w", waitFor, err)
			}
		}
		var err error
		res, err = c.runAxe(page, DefaultAxeTags)
		return err
	})
	return res, err
}

// Capture screenshots a URL or markup, optionally clipped to one element.
func (c *Chrome) Capture(ctx context.Context, target CaptureTarget) (string, error) {
	if err := os.MkdirAll(c.evidenceDir, 0o755); err != nil {
		return "", fmt.Errorf("create evidence dir: %w", err)
	}
	var png []byte
	err := c.pages.WithPage(ctx, func(page *rod.Page) error {
		if target.URL != "" {
			if err := navigate(page, target.URL, 0); err != nil {
				return err
			}
		} else if err := page.SetDocumentContent(target.HTML); err != nil {
			return fmt.Errorf("set content: %w", err)
		}

		var err error
		if target.Selector != "" {
			el, findErr := page.Timeout(5 * time.Second).Element(target.Selector)
			if findErr != nil {
				return fmt.Errorf("find %q: %w", target.Selector, findErr)
			}
			png, err = el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		} else {
			png, err = page.Screenshot(target.FullPage, &proto.PageCaptureScreenshot{
				Format: proto.PageCaptureScreenshotFormatPng,
			})
		}
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	path := filepath.Join(c.evidenceDir, "screenshot-"+uuid.NewString()+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	logging.ToolsDebug("Saved screenshot %s (%d bytes)", path, len(png))
	return path, nil
}

func navigate(page *rod.Page, url string, timeout time.Duration) error {
	p := page
	if timeout > 0 {
		p = page.Timeout(timeout)
	}
	if err := p.Navigate(url); err != nil {
		return tools.Transient(fmt.Errorf("navigate to %s: %w", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return tools.Transient(fmt.Errorf("wait for %s to load: %w", url, err))
	}
	return nil
}

const axeRunJS = `(tags) => axe.run({ runOnly: { type: 'tag', values: tags } })`

func (c *Chrome) runAxe(page *rod.Page, tags []string) (*AxeResults, error) {
	if len(tags) == 0 {
		tags = DefaultAxeTags
	}
	if err := page.AddScriptTag(c.scriptURL, ""); err != nil {
		return nil, tools.Transient(fmt.Errorf("inject axe-core: %w", err))
	}
	obj, err := page.Eval(axeRunJS, tags)
	if err != nil {
		return nil, fmt.Errorf("run axe: %w", err)
	}
	var res AxeResults
	if err := obj.Value.Unmarshal(&res); err != nil {
		return nil, fmt.Errorf("decode axe results: %w", err)
	}
	return &res, nil
}
