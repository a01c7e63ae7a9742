package services

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

const controlsSelector = "input, textarea, select"

func testPayload() FormPayload {
	return FormPayload{
		Name:    "Ada",
		Email:   "ada@x.com",
		Message: "hi",
		Subject: "Business Inquiry",
	}
}

func newFiller(page *fakePage) *FormFillerService {
	return NewFormFillerService(&fakeBrowser{page: page}, nil, 0)
}

func TestSubmitContactForm_FillsAndSubmits(t *testing.T) {
	page := newFakePage()

	nameInput := newFakeControl("input", "text")
	nameInput.attrs["name"] = "full_name"
	emailInput := newFakeControl("input", "email")
	emailInput.attrs["name"] = "email"
	messageArea := newFakeControl("textarea", "")
	messageArea.attrs["name"] = "message"

	submit := newFakeControl("button", "submit")
	submit.onClick = func() { page.content = "<html>Thank You for reaching out!</html>" }

	page.selectors[controlsSelector] = []Control{nameInput, emailInput, messageArea}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	result := newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, "Ada", nameInput.typed)
	assert.Equal(t, "ada@x.com", emailInput.typed)
	assert.Equal(t, "hi", messageArea.typed)
	assert.Equal(t, 1, submit.clicks)
	assert.True(t, page.closed)
}

func TestSubmitContactForm_NoSuccessMarkerMeansFailure(t *testing.T) {
	page := newFakePage()
	page.content = "<html>We could not process your request</html>"

	emailInput := newFakeControl("input", "email")
	emailInput.attrs["name"] = "email"
	submit := newFakeControl("button", "submit")

	page.selectors[controlsSelector] = []Control{emailInput}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	result := newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	assert.False(t, result.Success)
	assert.Equal(t, 1, submit.clicks)
}

func TestSubmitContactForm_FormNotFound(t *testing.T) {
	page := newFakePage()
	page.content = "<html><body>landing page</body></html>"

	result := newFiller(page).SubmitContactForm("http://example.com", testPayload())

	assert.False(t, result.Success)
	assert.True(t, result.FormNotFound)
	assert.Equal(t, "form not found", result.Error)
	assert.True(t, page.closed)
}

func TestSubmitContactForm_NavigationFailure(t *testing.T) {
	page := newFakePage()
	page.navErr = errors.New("dns lookup failed")

	result := newFiller(page).SubmitContactForm("http://unreachable.invalid", testPayload())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "navigation failed")
	assert.True(t, page.closed)
}

func TestSubmitContactForm_BrowserSessionFailure(t *testing.T) {
	filler := NewFormFillerService(&fakeBrowser{openErr: errors.New("browser crashed")}, nil, 0)

	result := filler.SubmitContactForm("http://example.com", testPayload())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "browser session failed")
}

func TestSubmitContactForm_FillFailureIsSoftNote(t *testing.T) {
	page := newFakePage()

	stubborn := newFakeControl("input", "text")
	stubborn.attrs["name"] = "email"
	stubborn.typeErr = errors.New("element not interactable")
	submit := newFakeControl("button", "submit")
	submit.onClick = func() { page.content = "submitted" }

	page.selectors[controlsSelector] = []Control{stubborn}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	result := newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	// The attempt still runs to submission; the fill failure is only a note.
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Notes)
	assert.Contains(t, result.Notes[0], "couldn't fill email")
}

func TestSubmitContactForm_SelectPrefersPayloadValue(t *testing.T) {
	page := newFakePage()

	subjectSelect := newFakeControl("select", "")
	subjectSelect.attrs["name"] = "subject"
	subjectSelect.options = []SelectOption{
		{Text: "-- choose --", Value: ""},
		{Text: "Support", Value: "support"},
		{Text: "Business Inquiry", Value: "business"},
	}
	submit := newFakeControl("button", "submit")

	page.selectors[controlsSelector] = []Control{subjectSelect}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	assert.Equal(t, "Business Inquiry", subjectSelect.selectedOption)
}

func TestSubmitContactForm_SelectSkipsPlaceholder(t *testing.T) {
	page := newFakePage()

	someSelect := newFakeControl("select", "")
	someSelect.attrs["name"] = "department"
	someSelect.options = []SelectOption{
		{Text: "Please select", Value: ""},
		{Text: "Sales", Value: "sales"},
	}
	submit := newFakeControl("button", "submit")

	page.selectors[controlsSelector] = []Control{someSelect}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	assert.Equal(t, "Sales", someSelect.selectedOption)
}

func TestSubmitContactForm_ConsentCheckboxAlwaysOptedIn(t *testing.T) {
	page := newFakePage()

	consent := newFakeControl("input", "checkbox")
	consent.label = "I agree to the terms and conditions"
	submit := newFakeControl("button", "submit")

	page.selectors[controlsSelector] = []Control{consent}
	page.selectors["input[type='checkbox']"] = []Control{consent}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	assert.True(t, consent.selected)
}

func TestSubmitContactForm_OneRadioPerGroup(t *testing.T) {
	page := newFakePage()

	radioA1 := newFakeControl("input", "radio")
	radioA1.attrs["name"] = "topic"
	radioA2 := newFakeControl("input", "radio")
	radioA2.attrs["name"] = "topic"
	radioB := newFakeControl("input", "radio")
	radioB.attrs["name"] = "priority"
	submit := newFakeControl("button", "submit")

	page.selectors[controlsSelector] = []Control{radioA1, radioA2, radioB}
	page.selectors["input[type='radio']"] = []Control{radioA1, radioA2, radioB}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	assert.True(t, radioA1.selected)
	assert.False(t, radioA2.selected)
	assert.True(t, radioB.selected)
}

func TestSubmitContactForm_DecoyDateFilled(t *testing.T) {
	page := newFakePage()

	dob := newFakeControl("input", "date")
	dob.attrs["name"] = "dob"
	submit := newFakeControl("button", "submit")

	page.selectors[controlsSelector] = []Control{}
	page.selectors["form"] = []Control{newFakeControl("form", "")}
	page.selectors["input[type='date'], input[name*='dob' i], input[id*='dob' i], "+
		"input[placeholder*='dob' i], input[name*='birth' i], input[placeholder*='birth' i]"] = []Control{dob}
	page.selectors[inFormSubmitSelector] = []Control{submit}

	newFiller(page).SubmitContactForm("http://example.com/contact", testPayload())

	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), dob.typed)
	assert.GreaterOrEqual(t, dob.typed, "1995-01-01")
}

func TestContainsSuccessMarker(t *testing.T) {
	assert.True(t, ContainsSuccessMarker("Thank you for your message"))
	assert.True(t, ContainsSuccessMarker("YOUR REQUEST WAS RECEIVED"))
	assert.True(t, ContainsSuccessMarker("message sent"))
	assert.False(t, ContainsSuccessMarker("please fix the errors below"))
	assert.False(t, ContainsSuccessMarker(""))
}

func TestContainsSuccessMarker_Idempotent(t *testing.T) {
	snapshot := "<html>Form Submitted. Thank you.</html>"
	first := ContainsSuccessMarker(snapshot)
	second := ContainsSuccessMarker(snapshot)
	assert.Equal(t, first, second)
	assert.True(t, first)
}

func TestRandomDateSince1995_Range(t *testing.T) {
	for i := 0; i < 50; i++ {
		date := randomDateSince1995()
		assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), date)
		assert.GreaterOrEqual(t, date, "1995-01-01")
	}
}
