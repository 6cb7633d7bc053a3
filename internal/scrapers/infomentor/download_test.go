package infomentor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilenameFromContentDisposition(t *testing.T) {
	testcases := []struct {
		header   string
		expected string
	}{
		{header: `attachment; filename="letter.pdf"`, expected: "letter.pdf"},
		{header: `attachment; filename=letter.pdf`, expected: "letter.pdf"},
		{header: `attachment; filename*=UTF-8''r%C3%A9sum%C3%A9.pdf`, expected: "résumé.pdf"},
		{header: `attachment; filename="fallback.pdf"; filename*=UTF-8''%C3%BCbung.pdf`, expected: "übung.pdf"},
		{header: `attachment; filename*=iso-8859-1''%FCbung.pdf`, expected: "übung.pdf"},
		{header: `attachment; filename=Elternbrief Mai.pdf`, expected: "Elternbrief Mai.pdf"},
		{header: `attachment; filename="../../etc/passwd"`, expected: "passwd"},
		{header: `attachment`, expected: ""},
		{header: ``, expected: ""},
	}
	for _, test := range testcases {
		t.Run(test.header, func(t *testing.T) {
			require.Equal(t, test.expected, FilenameFromContentDisposition(test.header))
		})
	}
}

func TestAttachmentId(t *testing.T) {
	id, err := AttachmentId("/Resources/Resource/Download/12345?api=IM2")
	require.NoError(t, err)
	require.Equal(t, int64(12345), id)

	_, err = AttachmentId("/Resources/Resource/View/12345")
	var parseErr *AttachmentParseError
	require.True(t, errors.As(err, &parseErr))
}
