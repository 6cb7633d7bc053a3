package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToText(t *testing.T) {
	testcases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "hello", expected: "hello"},
		{name: "br", input: "line one<br>line two", expected: "line one\nline two"},
		{name: "paragraphs", input: "<p>first</p><p>second</p>", expected: "first\nsecond"},
		{name: "entities", input: "Fish &amp; chips", expected: "Fish & chips"},
		{name: "script", input: "a<script>alert(1)</script>b", expected: "ab"},
		{name: "collapses", input: "<p>a</p><br><br><br><p>b</p>", expected: "a\n\nb"},
	}
	for _, test := range testcases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, ToText(test.input))
		})
	}
}

func TestLinkify(t *testing.T) {
	require.Equal(
		t,
		`see <a href="https://example.com/a?b=c">https://example.com/a?b=c</a> now`,
		Linkify("see https://example.com/a?b=c now"),
	)
	require.Equal(t, "no links here", Linkify("no links here"))
}
