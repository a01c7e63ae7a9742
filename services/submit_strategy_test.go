package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	inFormSubmitSelector  = "form input[type='submit'], form button[type='submit']"
	keywordButtonSelector = "button, input[type='submit'], input[type='button']"
)

func TestTrySubmit_InFormControlWins(t *testing.T) {
	page := newFakePage()

	inForm := newFakeControl("button", "submit")
	outside := newFakeControl("button", "")
	outside.text = "Send"

	page.selectors[inFormSubmitSelector] = []Control{inForm}
	page.selectors[keywordButtonSelector] = []Control{outside}

	name, err := TrySubmit(page, ResolveSubmitActions(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "in-form submit control", name)
	assert.Equal(t, 1, inForm.clicks)
	assert.Equal(t, 0, outside.clicks)
}

func TestTrySubmit_FallsBackToKeywordButton(t *testing.T) {
	page := newFakePage()

	hiddenInForm := newFakeControl("button", "submit")
	hiddenInForm.visible = false
	sendButton := newFakeControl("button", "")
	sendButton.text = "Send message"

	page.selectors[inFormSubmitSelector] = []Control{hiddenInForm}
	page.selectors[keywordButtonSelector] = []Control{sendButton}

	name, err := TrySubmit(page, ResolveSubmitActions(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "submit-text button", name)
	assert.Equal(t, 1, sendButton.clicks)
}

func TestTrySubmit_IgnoresUnrelatedButtonText(t *testing.T) {
	page := newFakePage()

	cancel := newFakeControl("button", "")
	cancel.text = "Cancel"
	page.selectors[keywordButtonSelector] = []Control{cancel}

	// No in-form control, no keyword button: ends at native submit.
	name, err := TrySubmit(page, ResolveSubmitActions(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "native form submit", name)
	assert.Equal(t, 0, cancel.clicks)
}

func TestTrySubmit_ValueAttributeMatches(t *testing.T) {
	page := newFakePage()

	input := newFakeControl("input", "submit")
	input.attrs["value"] = "Submit enquiry"
	page.selectors[keywordButtonSelector] = []Control{input}

	name, err := TrySubmit(page, ResolveSubmitActions(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "submit-text button", name)
	assert.Equal(t, 1, input.clicks)
}

func TestTrySubmit_Exhaustion(t *testing.T) {
	page := newFakePage()
	page.evalErr["document.querySelector('form').submit()"] = errors.New("no form")

	_, err := TrySubmit(page, ResolveSubmitActions(), nil)
	assert.ErrorIs(t, err, ErrSubmissionExhausted)
}

func TestTrySubmit_ClickFailureFallsThrough(t *testing.T) {
	page := newFakePage()

	broken := newFakeControl("button", "submit")
	broken.clickErr = errors.New("element detached")
	page.selectors[inFormSubmitSelector] = []Control{broken}

	name, err := TrySubmit(page, ResolveSubmitActions(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "native form submit", name)
}

func TestTrySubmit_SettleRunsAfterEachAttempt(t *testing.T) {
	page := newFakePage()
	page.evalErr["document.querySelector('form').submit()"] = errors.New("no form")

	settles := 0
	_, err := TrySubmit(page, ResolveSubmitActions(), func() { settles++ })
	assert.Error(t, err)
	assert.Equal(t, 3, settles)
}
