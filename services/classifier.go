package services

import "strings"

// FieldRole is the inferred purpose of a form control.
type FieldRole string

const (
	RoleName    FieldRole = "name"
	RoleEmail   FieldRole = "email"
	RoleSubject FieldRole = "subject"
	RoleMessage FieldRole = "message"
	RolePhone   FieldRole = "phone"
	RoleCompany FieldRole = "company"
	RoleFile    FieldRole = "file"
	RoleNone    FieldRole = ""
)

// classifiedAttributes are the control attributes whose values feed the
// keyword match.
var classifiedAttributes = []string{"name", "id", "placeholder", "aria-label", "title", "class"}

// roleKeywords is ordered: when a control's text matches several roles, the
// first listed role wins, so classification is deterministic for fields like
// "email-subject".
var roleKeywords = []struct {
	role     FieldRole
	keywords []string
}{
	{RoleName, []string{"name", "full name", "fullname", "your-name", "contact-name", "first", "last", "first-name", "last-name"}},
	{RoleEmail, []string{"email", "e-mail", "mail"}},
	{RoleSubject, []string{"subject", "topic", "reason"}},
	{RoleMessage, []string{"message", "comment", "comments", "enquiry", "inquiry", "description", "body", "describe"}},
	{RolePhone, []string{"phone", "tel", "mobile", "contact-number"}},
	{RoleCompany, []string{"company", "organization", "organisation", "org"}},
}

// ClassifyControl infers the role of a form control from its attributes and
// label text. Keyword matching runs first in priority order; when nothing
// matches, the input type and tag decide. Always returns a value.
func ClassifyControl(attrs map[string]string, labelText, tag, inputType string) FieldRole {
	var parts []string
	for _, name := range classifiedAttributes {
		if v := attrs[name]; v != "" {
			parts = append(parts, v)
		}
	}
	parts = append(parts, labelText)
	haystack := strings.ToLower(strings.Join(parts, " "))

	for _, rk := range roleKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(haystack, kw) {
				return rk.role
			}
		}
	}

	switch strings.ToLower(inputType) {
	case "email":
		return RoleEmail
	case "tel", "tel-national", "tel-local":
		return RolePhone
	case "file":
		return RoleFile
	}
	if strings.ToLower(tag) == "textarea" {
		return RoleMessage
	}
	return RoleNone
}

// ClassifyWithControl classifies a live control by reading its inspected
// attributes through the driver.
func ClassifyWithControl(c Control) FieldRole {
	attrs := make(map[string]string, len(classifiedAttributes))
	for _, name := range classifiedAttributes {
		attrs[name] = c.Attribute(name)
	}
	return ClassifyControl(attrs, c.Label(), c.Tag(), c.InputType())
}
