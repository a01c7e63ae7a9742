package services

import (
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// successMarkers are the page-content substrings taken as proof of a
// successful submission. Conservative on purpose: a false positive would stop
// the retry cycle for a job that never went through.
var successMarkers = []string{"thank you", "success", "submitted", "received", "sent"}

// consentKeywords mark opt-in checkboxes and cookie/consent buttons.
var consentKeywords = []string{"accept", "agree", "terms", "consent", "i agree"}

const (
	maxFillRetries      = 10
	maxScrollIterations = 10
	responseSnippetLen  = 1000
)

// FormPayload holds the outreach values mapped onto classified controls.
type FormPayload struct {
	Name     string
	Email    string
	Phone    string
	Subject  string
	Message  string
	Company  string
	FilePath string
}

func (p FormPayload) valueFor(role FieldRole) string {
	switch role {
	case RoleName:
		return p.Name
	case RoleEmail:
		return p.Email
	case RolePhone:
		return p.Phone
	case RoleSubject:
		return p.Subject
	case RoleMessage:
		return p.Message
	case RoleCompany:
		return p.Company
	case RoleFile:
		return p.FilePath
	}
	return ""
}

// FormResult is the structured outcome of one fill-and-submit attempt. The
// worker only ever sees this; errors never escape the orchestrator.
type FormResult struct {
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	FormNotFound   bool              `json:"form_not_found,omitempty"`
	ResponsePage   string            `json:"response_page,omitempty"`
	FormURL        string            `json:"form_url"`
	SubmissionTime time.Time         `json:"submission_time"`
	FilledFields   map[string]string `json:"filled_fields,omitempty"`
	Notes          []string          `json:"notes,omitempty"`
}

// FormFillerService fills and submits a contact form on a target page.
type FormFillerService struct {
	Browser     Browser
	Captcha     CaptchaSolver // nil disables captcha solving
	SettleDelay time.Duration
}

func NewFormFillerService(browser Browser, captcha CaptchaSolver, settleDelay time.Duration) *FormFillerService {
	return &FormFillerService{
		Browser:     browser,
		Captcha:     captcha,
		SettleDelay: settleDelay,
	}
}

// SubmitContactForm runs one complete attempt against formURL. The browser
// page is acquired once and released on every exit path; panics and errors
// all land in the returned result.
func (s *FormFillerService) SubmitContactForm(formURL string, payload FormPayload) (result FormResult) {
	result = FormResult{
		FormURL:        formURL,
		SubmissionTime: time.Now(),
		FilledFields:   map[string]string{},
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("attempt panicked: %v", r)
		}
	}()

	page, err := s.Browser.NewPage()
	if err != nil {
		result.Error = fmt.Sprintf("browser session failed: %v", err)
		return result
	}
	defer page.Close()

	if err := page.Navigate(formURL); err != nil {
		result.Error = fmt.Sprintf("navigation failed: %v", err)
		return result
	}
	s.settle()

	s.dismissConsentOverlays(page)

	controls := s.collectControls(page)
	forms, _ := page.QueryAll("form")
	if len(controls) == 0 && len(forms) == 0 {
		result.Error = "form not found"
		result.FormNotFound = true
		result.ResponsePage = s.snapshot(page)
		log.Printf("No form or controls found on %s", formURL)
		return result
	}

	s.fillControls(page, controls, payload, &result)
	s.fillDateFields(page, &result)
	s.selectListDropdowns(page, &result)
	s.selectRadioGroups(page, &result)
	s.acceptConsentControls(page, &result)
	s.solveCaptcha(page, &result)

	_, err = TrySubmit(page, ResolveSubmitActions(), s.settle)
	if err != nil {
		result.Error = err.Error()
		result.ResponsePage = s.snapshot(page)
		return result
	}
	s.settle()

	content, _ := page.Content()
	result.Success = ContainsSuccessMarker(content)
	result.ResponsePage = truncate(content, responseSnippetLen)
	result.SubmissionTime = time.Now()
	log.Printf("Attempt finished for %s success=%v", formURL, result.Success)
	return result
}

// ContainsSuccessMarker reports whether a page snapshot carries any of the
// submission success markers. Case-insensitive and side-effect free.
func ContainsSuccessMarker(content string) bool {
	lowered := strings.ToLower(content)
	for _, marker := range successMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func (s *FormFillerService) settle() {
	if s.SettleDelay > 0 {
		time.Sleep(s.SettleDelay)
	}
}

func (s *FormFillerService) snapshot(page Page) string {
	content, _ := page.Content()
	return truncate(content, responseSnippetLen)
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}

// dismissConsentOverlays clicks known cookie banners. Best effort only.
func (s *FormFillerService) dismissConsentOverlays(page Page) {
	banners, err := page.QueryAll("button[aria-label='Accept All'], button[aria-label='Accept all']")
	if err != nil {
		return
	}
	for _, b := range banners {
		if b.Visible() {
			_ = b.Click()
			return
		}
	}
}

// collectControls enumerates interactive controls, scrolling to the bottom to
// trigger lazy-loaded content. The loop stops once controls appear, the page
// height stabilizes, or the iteration cap is hit, so infinite-scroll pages
// cannot trap it.
func (s *FormFillerService) collectControls(page Page) []Control {
	lastHeight := pageHeight(page)
	for i := 0; i < maxScrollIterations; i++ {
		_, _ = page.Evaluate("window.scrollTo(0, document.body.scrollHeight)")

		controls, err := page.QueryAll("input, textarea, select")
		if err == nil && len(controls) > 0 {
			return controls
		}

		newHeight := pageHeight(page)
		if newHeight == lastHeight {
			break
		}
		lastHeight = newHeight
	}
	controls, _ := page.QueryAll("input, textarea, select")
	return controls
}

func pageHeight(page Page) float64 {
	raw, err := page.Evaluate("document.body.scrollHeight")
	if err != nil {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// fillControls applies the role-specific fill policy to every visible control.
func (s *FormFillerService) fillControls(page Page, controls []Control, payload FormPayload, result *FormResult) {
	selectedRadioGroups := map[string]bool{}

	for _, c := range controls {
		if !c.Visible() {
			continue
		}

		tag := strings.ToLower(c.Tag())
		typ := strings.ToLower(c.InputType())

		// Submit candidates are the ladder's job, not the fill pass's.
		if typ == "hidden" || typ == "submit" || typ == "button" || typ == "image" {
			continue
		}

		role := ClassifyWithControl(c)

		if tag == "input" && typ == "file" {
			if payload.FilePath != "" {
				if err := c.SetFile(payload.FilePath); err != nil {
					result.Notes = append(result.Notes, fmt.Sprintf("file upload failed: %v", err))
				} else {
					result.FilledFields["file"] = payload.FilePath
				}
			}
			continue
		}

		if typ == "checkbox" {
			if !c.Selected() {
				if err := c.Click(); err != nil {
					result.Notes = append(result.Notes, fmt.Sprintf("checkbox click failed: %v", err))
				} else {
					result.FilledFields["checkbox"] = "on"
				}
			}
			continue
		}

		if typ == "radio" {
			group := c.Attribute("name")
			if group == "" {
				group = "__noname__"
			}
			if !selectedRadioGroups[group] && c.Enabled() {
				if err := c.Click(); err != nil {
					result.Notes = append(result.Notes, fmt.Sprintf("radio click failed: %v", err))
				} else {
					selectedRadioGroups[group] = true
					result.FilledFields["radio:"+group] = "first"
				}
			}
			continue
		}

		if tag == "select" {
			s.fillSelect(c, role, payload, result)
			continue
		}

		value := payload.valueFor(role)
		if value == "" {
			placeholder := strings.ToLower(c.Attribute("placeholder"))
			if len(placeholder) < 30 && strings.Contains(placeholder, "message") {
				role = RoleMessage
				value = payload.Message
			}
		}
		if value == "" {
			continue
		}

		if err := s.fillWithRetry(c, value); err != nil {
			result.Notes = append(result.Notes, fmt.Sprintf("couldn't fill %s: %v", role, err))
			continue
		}
		result.FilledFields[string(role)] = value
	}
}

func (s *FormFillerService) fillSelect(c Control, role FieldRole, payload FormPayload, result *FormResult) {
	options := c.Options()
	if len(options) == 0 {
		return
	}

	want := strings.ToLower(payload.valueFor(role))
	if want != "" {
		for _, opt := range options {
			if strings.Contains(strings.ToLower(opt.Text), want) {
				if err := c.SelectByText(opt.Text); err == nil {
					result.FilledFields["select:"+string(role)] = opt.Text
				}
				return
			}
		}
	}
	for _, opt := range options {
		if opt.Value != "" && !opt.Disabled {
			if err := c.SelectByText(opt.Text); err == nil {
				result.FilledFields["select"] = opt.Text
			}
			return
		}
	}
}

// fillWithRetry types a value into a text control, scrolling it into view and
// retrying on transient interaction failures.
func (s *FormFillerService) fillWithRetry(c Control, value string) error {
	var lastErr error
	for attempt := 0; attempt < maxFillRetries; attempt++ {
		_ = c.ScrollIntoView()
		_ = c.Clear()
		if err := c.TypeText(value); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("element not interactable after %d attempts: %v", maxFillRetries, lastErr)
}

// fillDateFields fills date-of-birth-looking inputs with a random plausible
// date. Many forms require these decoy fields to be non-empty.
func (s *FormFillerService) fillDateFields(page Page, result *FormResult) {
	dateInputs, err := page.QueryAll(
		"input[type='date'], input[name*='dob' i], input[id*='dob' i], " +
			"input[placeholder*='dob' i], input[name*='birth' i], input[placeholder*='birth' i]")
	if err != nil {
		return
	}

	patternInputs, _ := page.QueryAll("input[pattern]")
	for _, c := range patternInputs {
		pattern := c.Attribute("pattern")
		placeholder := strings.ToLower(c.Attribute("placeholder"))
		if strings.Contains(pattern, "[0-9]{4}-[0-9]{2}-[0-9]{2}") || strings.Contains(placeholder, "yyyy") {
			dateInputs = append(dateInputs, c)
		}
	}

	for _, c := range dateInputs {
		if !c.Visible() {
			continue
		}
		if c.Attribute("value") != "" {
			continue
		}
		date := randomDateSince1995()
		_ = c.Clear()
		if err := c.TypeText(date); err != nil {
			continue
		}
		result.FilledFields["date:"+firstNonEmpty(c.Attribute("name"), c.Attribute("id"), "date")] = date
	}
}

// randomDateSince1995 picks a date uniformly between 1995-01-01 and today.
func randomDateSince1995() string {
	start := time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC)
	days := int(time.Since(start).Hours() / 24)
	if days <= 0 {
		return time.Now().Format("2006-01-02")
	}
	return start.AddDate(0, 0, rand.Intn(days)).Format("2006-01-02")
}

// selectListDropdowns opens custom dropdown widgets built from list markup and
// picks their first visible option.
func (s *FormFillerService) selectListDropdowns(page Page, result *FormResult) {
	dropdowns, err := page.QueryAll("ul[class*='dropdown'], ul[class*='select'], ul[role='listbox'], ul[role='menu']")
	if err != nil || len(dropdowns) == 0 {
		return
	}
	for _, dd := range dropdowns {
		if !dd.Visible() {
			continue
		}
		_ = dd.ScrollIntoView()
		_ = dd.Click()
	}

	items, _ := page.QueryAll(
		"ul[class*='dropdown'] li, ul[class*='select'] li, ul[role='listbox'] li, ul[role='menu'] li")
	for _, li := range items {
		if li.Visible() {
			if err := li.Click(); err == nil {
				result.FilledFields["list-dropdown"] = strings.TrimSpace(li.Text())
			}
			return
		}
	}
}

// selectRadioGroups selects the first visible, enabled radio in any group that
// still has no selection.
func (s *FormFillerService) selectRadioGroups(page Page, result *FormResult) {
	radios, err := page.QueryAll("input[type='radio']")
	if err != nil {
		return
	}

	groups := map[string][]Control{}
	order := []string{}
	for _, r := range radios {
		name := r.Attribute("name")
		if name == "" {
			name = "__noname__"
		}
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], r)
	}

	for _, name := range order {
		group := groups[name]
		alreadySelected := false
		for _, r := range group {
			if r.Selected() {
				alreadySelected = true
				break
			}
		}
		if alreadySelected {
			continue
		}
		for _, r := range group {
			if r.Visible() && r.Enabled() {
				if err := r.Click(); err == nil {
					result.FilledFields["radio:"+name] = "first"
				}
				break
			}
		}
	}
}

// acceptConsentControls opts in consent checkboxes and clicks accept/agree
// buttons. Unconsented forms commonly refuse submission, so this runs
// independently of classification.
func (s *FormFillerService) acceptConsentControls(page Page, result *FormResult) {
	checkboxes, _ := page.QueryAll("input[type='checkbox']")
	for _, cb := range checkboxes {
		if !cb.Visible() || cb.Selected() {
			continue
		}
		label := strings.ToLower(cb.Label())
		if matchesAnyKeyword(label, consentKeywords) {
			if err := cb.Click(); err == nil {
				result.FilledFields["consent:"+firstNonEmpty(cb.Attribute("name"), cb.Attribute("id"), "checkbox")] = "on"
			}
		}
	}

	buttons, _ := page.QueryAll("button, a")
	for _, b := range buttons {
		if !b.Visible() {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(b.Text()))
		if matchesAnyKeyword(text, consentKeywords) {
			_ = b.Click()
		}
	}
}

// solveCaptcha detects an embedded reCAPTCHA, delegates solving, and injects
// the token. Any failure is a note, never a fatal error: submission proceeds
// and the server-side rejection shows up as an unsuccessful outcome.
func (s *FormFillerService) solveCaptcha(page Page, result *FormResult) {
	if s.Captcha == nil {
		return
	}

	frames, err := page.QueryAll("iframe")
	if err != nil {
		return
	}

	siteKey := ""
	for _, f := range frames {
		src := f.Attribute("src")
		if src == "" || !strings.Contains(src, "google.com/recaptcha") {
			continue
		}
		if parsed, err := url.Parse(src); err == nil {
			siteKey = parsed.Query().Get("k")
		}
		break
	}
	if siteKey == "" {
		return
	}

	token, err := s.Captcha.Solve(siteKey, page.CurrentURL())
	if err != nil {
		result.Notes = append(result.Notes, fmt.Sprintf("captcha unsolved: %v", err))
		return
	}

	_, _ = page.Evaluate(fmt.Sprintf(
		`document.getElementById("g-recaptcha-response").innerHTML=%q;`+
			`document.getElementById("g-recaptcha-response").dispatchEvent(new Event("change"));`, token))
	result.FilledFields["captcha"] = "solved"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
