package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCandidate means a submit strategy found nothing to act on; the next
// strategy in the ladder is tried.
var ErrNoCandidate = errors.New("no submit candidate matched")

// ErrSubmissionExhausted means every strategy in the ladder failed.
var ErrSubmissionExhausted = errors.New("all submit strategies failed")

// submitKeywords mark buttons whose visible text suggests form submission.
var submitKeywords = []string{"send", "submit", "contact", "enquire", "apply", "message"}

// SubmitAction is one rung of the submit ladder.
type SubmitAction struct {
	Name string
	Run  func(p Page) error
}

// ResolveSubmitActions returns the ordered submit ladder. A submit control
// inside a <form> always wins over a free-standing button, because forms with
// custom JS handlers are the common case; native submission is the last
// resort.
func ResolveSubmitActions() []SubmitAction {
	return []SubmitAction{
		{Name: "in-form submit control", Run: clickInFormSubmit},
		{Name: "submit-text button", Run: clickKeywordButton},
		{Name: "native form submit", Run: invokeNativeSubmit},
	}
}

// TrySubmit walks the ladder until one action runs without error. afterEach,
// when non-nil, runs after every attempt so the page can settle before the
// next rung or the success check. Returns the name of the action that ran, or
// ErrSubmissionExhausted.
func TrySubmit(p Page, actions []SubmitAction, afterEach func()) (string, error) {
	var lastErr error
	for _, action := range actions {
		err := action.Run(p)
		if afterEach != nil {
			afterEach()
		}
		if err != nil {
			lastErr = err
			continue
		}
		return action.Name, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionExhausted, lastErr)
	}
	return "", ErrSubmissionExhausted
}

func clickInFormSubmit(p Page) error {
	controls, err := p.QueryAll("form input[type='submit'], form button[type='submit']")
	if err != nil {
		return err
	}
	for _, c := range controls {
		if !c.Visible() {
			continue
		}
		_ = c.ScrollIntoView()
		return c.Click()
	}
	return ErrNoCandidate
}

func clickKeywordButton(p Page) error {
	controls, err := p.QueryAll("button, input[type='submit'], input[type='button']")
	if err != nil {
		return err
	}
	for _, c := range controls {
		if !c.Visible() {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(c.Text()))
		if text == "" {
			text = strings.ToLower(c.Attribute("value"))
		}
		if matchesAnyKeyword(text, submitKeywords) {
			_ = c.ScrollIntoView()
			return c.Click()
		}
	}
	return ErrNoCandidate
}

func invokeNativeSubmit(p Page) error {
	_, err := p.Evaluate("document.querySelector('form').submit()")
	return err
}

func matchesAnyKeyword(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
