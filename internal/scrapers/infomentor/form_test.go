package infomentor

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	testcases := []struct {
		name  string
		page  string
		token string
		count int
	}{
		{
			name:  "single",
			page:  `<input type="hidden" name="oauth_token" value="abc" />`,
			token: "abc",
		},
		{
			name:  "empty value",
			page:  `<input type="hidden" name="oauth_token" value="" />`,
			token: "",
		},
		{
			name:  "missing",
			page:  `<html>maintenance</html>`,
			count: 0,
		},
		{
			name: "ambiguous",
			page: `<input type="hidden" name="oauth_token" value="a" />
<input type="hidden" name="oauth_token" value="b" />`,
			count: 2,
		},
	}

	for _, test := range testcases {
		t.Run(test.name, func(t *testing.T) {
			token, err := RegexFormScraper{}.Token(test.page)
			if test.name == "single" || test.name == "empty value" {
				require.NoError(t, err)
				require.Equal(t, test.token, token)
				return
			}
			var parseErr *TokenParseError
			require.True(t, errors.As(err, &parseErr))
			require.Equal(t, test.count, parseErr.Count)
		})
	}
}

func TestHiddenFields(t *testing.T) {
	page := `<form>
<input type="hidden" name="__VIEWSTATE" value="dDwtMTA4NzM&#43;" />
<input type="hidden" name="__EVENTVALIDATION" value="" />
<input type="hidden" id="nameless" value="x" />
<input type="hidden" name="valueless" />
<input type="text" name="visible" value="ignored" />
</form>`

	fields, skipped := RegexFormScraper{}.HiddenFields(page)
	expected := map[string]string{
		"__VIEWSTATE":       "dDwtMTA4NzM&#43;",
		"__EVENTVALIDATION": "",
	}
	if diff := cmp.Diff(expected, fields); diff != "" {
		t.Fatal(diff)
	}
	require.Len(t, skipped, 2)
}
