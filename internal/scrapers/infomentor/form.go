package infomentor

import (
	"fmt"
	"regexp"
)

// FormScraper extracts the pieces of the login pages the session handshake needs.
type FormScraper interface {
	// Token returns the single oauth_token value on the page.
	Token(page string) (string, error)
	// HiddenFields returns every hidden input that has exactly one name and one value,
	// malformed inputs are returned in `skipped`. Values are posted back as written in the
	// markup, entities included.
	HiddenFields(page string) (fields map[string]string, skipped []string)
}

var (
	oauthTokenRegex  = regexp.MustCompile(`name="oauth_token" value="([^"]*)"`)
	hiddenInputRegex = regexp.MustCompile(`<input type="hidden"(.*?) />`)
	nameAttrRegex    = regexp.MustCompile(`name="([^"]*)"`)
	valueAttrRegex   = regexp.MustCompile(`value="([^"]*)"`)
)

// RegexFormScraper matches the exact markup the portal renders, it is not a general
// html form parser.
type RegexFormScraper struct{}

func (RegexFormScraper) Token(page string) (string, error) {
	matches := oauthTokenRegex.FindAllStringSubmatch(page, -1)
	if len(matches) != 1 {
		return "", &TokenParseError{Count: len(matches)}
	}
	return matches[0][1], nil
}

func (RegexFormScraper) HiddenFields(page string) (map[string]string, []string) {
	fields := map[string]string{}
	var skipped []string
	for _, match := range hiddenInputRegex.FindAllStringSubmatch(page, -1) {
		attrs := match[1]
		names := nameAttrRegex.FindAllStringSubmatch(attrs, -1)
		if len(names) != 1 {
			skipped = append(skipped, fmt.Sprintf("fieldname: %s", attrs))
			continue
		}
		values := valueAttrRegex.FindAllStringSubmatch(attrs, -1)
		if len(values) != 1 {
			skipped = append(skipped, fmt.Sprintf("value: %s", attrs))
			continue
		}
		fields[names[0][1]] = values[0][1]
	}
	return fields, skipped
}
