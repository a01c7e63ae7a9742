package services

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// SelectOption is one entry in a native <select>.
type SelectOption struct {
	Text     string
	Value    string
	Disabled bool
}

// Control is a single interactive element on a page. It is the only view of
// the DOM the fill logic gets, so any automation library exposing these
// operations can drive it.
type Control interface {
	Tag() string
	InputType() string
	Attribute(name string) string
	Label() string
	Text() string
	Visible() bool
	Enabled() bool
	Selected() bool
	Click() error
	Clear() error
	TypeText(text string) error
	ScrollIntoView() error
	Options() []SelectOption
	SelectByText(text string) error
	SetFile(path string) error
}

// Page is the narrow browser capability the orchestrator needs.
type Page interface {
	Navigate(url string) error
	QueryAll(selector string) ([]Control, error)
	Content() (string, error)
	CurrentURL() string
	Evaluate(js string) (interface{}, error)
	Close() error
}

// Browser opens pages. One page is owned by exactly one attempt and is closed
// when the attempt ends.
type Browser interface {
	NewPage() (Page, error)
	Close() error
}

// PlaywrightBrowser drives a headless Chromium through playwright.
type PlaywrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywrightBrowser() (*PlaywrightBrowser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--disable-extensions",
			"--disable-blink-features=AutomationControlled",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &PlaywrightBrowser{pw: pw, browser: browser}, nil
}

func (b *PlaywrightBrowser) NewPage() (Page, error) {
	page, err := b.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page.SetExtraHTTPHeaders(map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	})
	return &playwrightPage{page: page}, nil
}

func (b *PlaywrightBrowser) Close() error {
	if b.browser != nil {
		b.browser.Close()
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Navigate(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) QueryAll(selector string) ([]Control, error) {
	locators, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, err
	}
	controls := make([]Control, 0, len(locators))
	for _, loc := range locators {
		controls = append(controls, &playwrightControl{loc: loc})
	}
	return controls, nil
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) CurrentURL() string {
	return p.page.URL()
}

func (p *playwrightPage) Evaluate(js string) (interface{}, error) {
	return p.page.Evaluate(js)
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

type playwrightControl struct {
	loc playwright.Locator
}

func (c *playwrightControl) Tag() string {
	tag, err := c.loc.Evaluate("el => el.tagName.toLowerCase()", nil)
	if err != nil {
		return ""
	}
	if s, ok := tag.(string); ok {
		return s
	}
	return ""
}

func (c *playwrightControl) InputType() string {
	return c.Attribute("type")
}

func (c *playwrightControl) Attribute(name string) string {
	val, err := c.loc.GetAttribute(name)
	if err != nil {
		return ""
	}
	return val
}

// Label resolves the label text for a control, first by for-attribute linkage,
// then by the closest ancestor <label>.
func (c *playwrightControl) Label() string {
	label, err := c.loc.Evaluate(`el => {
		if (el.id) {
			const linked = document.querySelector('label[for="' + el.id + '"]');
			if (linked) return linked.textContent.trim();
		}
		const ancestor = el.closest('label');
		return ancestor ? ancestor.textContent.trim() : '';
	}`, nil)
	if err != nil {
		return ""
	}
	if s, ok := label.(string); ok {
		return s
	}
	return ""
}

func (c *playwrightControl) Text() string {
	text, err := c.loc.TextContent()
	if err != nil {
		return ""
	}
	return text
}

func (c *playwrightControl) Visible() bool {
	visible, err := c.loc.IsVisible()
	return err == nil && visible
}

func (c *playwrightControl) Enabled() bool {
	enabled, err := c.loc.IsEnabled()
	return err == nil && enabled
}

func (c *playwrightControl) Selected() bool {
	checked, err := c.loc.IsChecked()
	return err == nil && checked
}

func (c *playwrightControl) Click() error {
	return c.loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)})
}

func (c *playwrightControl) Clear() error {
	return c.loc.Clear(playwright.LocatorClearOptions{Timeout: playwright.Float(5000)})
}

func (c *playwrightControl) TypeText(text string) error {
	return c.loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(5000)})
}

func (c *playwrightControl) ScrollIntoView() error {
	return c.loc.ScrollIntoViewIfNeeded()
}

func (c *playwrightControl) Options() []SelectOption {
	raw, err := c.loc.Evaluate(`el => Array.from(el.options || []).map(o => ({
		text: o.text, value: o.value, disabled: o.disabled
	}))`, nil)
	if err != nil {
		return nil
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	options := make([]SelectOption, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		opt := SelectOption{}
		if s, ok := fields["text"].(string); ok {
			opt.Text = s
		}
		if s, ok := fields["value"].(string); ok {
			opt.Value = s
		}
		if b, ok := fields["disabled"].(bool); ok {
			opt.Disabled = b
		}
		options = append(options, opt)
	}
	return options
}

func (c *playwrightControl) SelectByText(text string) error {
	_, err := c.loc.SelectOption(playwright.SelectOptionValues{Labels: &[]string{text}})
	return err
}

func (c *playwrightControl) SetFile(path string) error {
	return c.loc.SetInputFiles(path)
}
