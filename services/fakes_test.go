package services

import "fmt"

// fakeControl is an in-memory Control for orchestrator and ladder tests.
type fakeControl struct {
	tag      string
	typ      string
	label    string
	text     string
	attrs    map[string]string
	visible  bool
	enabled  bool
	selected bool

	options        []SelectOption
	selectedOption string

	typed    string
	cleared  bool
	clicks   int
	file     string
	clickErr error
	typeErr  error
	onClick  func()
}

func newFakeControl(tag, typ string) *fakeControl {
	return &fakeControl{tag: tag, typ: typ, attrs: map[string]string{}, visible: true, enabled: true}
}

func (c *fakeControl) Tag() string                  { return c.tag }
func (c *fakeControl) InputType() string            { return c.typ }
func (c *fakeControl) Attribute(name string) string { return c.attrs[name] }
func (c *fakeControl) Label() string                { return c.label }
func (c *fakeControl) Text() string                 { return c.text }
func (c *fakeControl) Visible() bool                { return c.visible }
func (c *fakeControl) Enabled() bool                { return c.enabled }
func (c *fakeControl) Selected() bool               { return c.selected }

func (c *fakeControl) Click() error {
	if c.clickErr != nil {
		return c.clickErr
	}
	c.clicks++
	if c.typ == "checkbox" || c.typ == "radio" {
		c.selected = true
	}
	if c.onClick != nil {
		c.onClick()
	}
	return nil
}

func (c *fakeControl) Clear() error {
	c.cleared = true
	c.typed = ""
	return nil
}

func (c *fakeControl) TypeText(text string) error {
	if c.typeErr != nil {
		return c.typeErr
	}
	c.typed = text
	return nil
}

func (c *fakeControl) ScrollIntoView() error { return nil }

func (c *fakeControl) Options() []SelectOption { return c.options }

func (c *fakeControl) SelectByText(text string) error {
	for _, opt := range c.options {
		if opt.Text == text {
			c.selectedOption = text
			return nil
		}
	}
	return fmt.Errorf("no option %q", text)
}

func (c *fakeControl) SetFile(path string) error {
	c.file = path
	return nil
}

// fakePage serves controls per selector and records script evaluations.
type fakePage struct {
	url       string
	content   string
	navErr    error
	selectors map[string][]Control
	evaluated []string
	evalErr   map[string]error
	closed    bool
}

func newFakePage() *fakePage {
	return &fakePage{selectors: map[string][]Control{}, evalErr: map[string]error{}}
}

func (p *fakePage) Navigate(url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	p.url = url
	return nil
}

func (p *fakePage) QueryAll(selector string) ([]Control, error) {
	return p.selectors[selector], nil
}

func (p *fakePage) Content() (string, error) { return p.content, nil }
func (p *fakePage) CurrentURL() string       { return p.url }

func (p *fakePage) Evaluate(js string) (interface{}, error) {
	p.evaluated = append(p.evaluated, js)
	if err, ok := p.evalErr[js]; ok {
		return nil, err
	}
	return nil, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

// fakeBrowser hands out a fixed page.
type fakeBrowser struct {
	page    *fakePage
	openErr error
}

func (b *fakeBrowser) NewPage() (Page, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error { return nil }
