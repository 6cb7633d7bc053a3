package infomentor

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const report_client_download = "client.download"

var attachmentIdRegex = regexp.MustCompile(`Download/([0-9]+)`)

// AttachmentId extracts the numeric download id from an attachment url.
func AttachmentId(link string) (int64, error) {
	match := attachmentIdRegex.FindStringSubmatch(link)
	if match == nil {
		return 0, &AttachmentParseError{Url: link}
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, &AttachmentParseError{Url: link}
	}
	return id, nil
}

var (
	extendedFilenameRegex = regexp.MustCompile(`(?i)filename\*=([^;]+)`)
	nativeFilenameRegex   = regexp.MustCompile(`(?i)filename=([^;]+)`)
)

func decodeExtendedValue(value string) (string, bool) {
	encoding, rest, ok := strings.Cut(strings.Trim(value, `"`), "'")
	if !ok {
		return "", false
	}
	// skip the language tag
	_, encoded, ok := strings.Cut(rest, "'")
	if !ok {
		return "", false
	}
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return "", false
	}
	if strings.EqualFold(encoding, "iso-8859-1") || strings.EqualFold(encoding, "latin1") {
		runes := make([]rune, len(decoded))
		for i := 0; i < len(decoded); i++ {
			runes[i] = rune(decoded[i])
		}
		decoded = string(runes)
	}
	return decoded, true
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// FilenameFromContentDisposition returns the filename a Content-Disposition header
// announces or "" if it has none.
func FilenameFromContentDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err == nil && params["filename"] != "" {
		return sanitizeFilename(params["filename"])
	}

	// lenient fallback for headers the mime package rejects
	if match := extendedFilenameRegex.FindStringSubmatch(header); match != nil {
		decoded, ok := decodeExtendedValue(strings.TrimSpace(match[1]))
		if ok && decoded != "" {
			return sanitizeFilename(decoded)
		}
	}
	if match := nativeFilenameRegex.FindStringSubmatch(header); match != nil {
		return sanitizeFilename(strings.Trim(strings.TrimSpace(match[1]), `"`))
	}
	return ""
}

// Download fetches a portal file into `<dir>/<random>/<name>` and returns the path relative
// to `dir`. When filename is empty the name comes from the Content-Disposition header, or
// is random if the header has none.
func (c *Client) Download(ctx context.Context, link, dir, filename string) (string, error) {
	endpoint := c.resolve(link)
	c.tel.ReportDebug(report_client_download, endpoint)

	res, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}

	if filename == "" {
		cd := res.Header().Get("Content-Disposition")
		filename = FilenameFromContentDisposition(cd)
		if filename == "" {
			filename = uuid.NewString()
			c.tel.ReportWarning(
				report_client_download,
				fmt.Errorf("no filename detected in %q: using random filename %s", cd, filename),
			)
		}
	}

	randomDir := uuid.NewString()
	target := filepath.Join(dir, randomDir)
	err = os.MkdirAll(target, 0755)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", endpoint, err)
	}
	err = os.WriteFile(filepath.Join(target, filename), res.Body(), 0644)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", endpoint, err)
	}
	return randomDir + "/" + filename, nil
}

type DownloadedAttachment struct {
	AttachmentId int64
	Url          string
	Title        string
	LocalPath    string
}

// DownloadAttachment downloads an attachment into the files directory. A url without a
// download id is an AttachmentParseError and nothing is fetched.
func (c *Client) DownloadAttachment(ctx context.Context, ref AttachmentRef) (DownloadedAttachment, error) {
	id, err := AttachmentId(ref.Url)
	if err != nil {
		return DownloadedAttachment{}, err
	}
	local, err := c.Download(ctx, ref.Url, c.config.FilesDir, "")
	if err != nil {
		return DownloadedAttachment{}, err
	}
	return DownloadedAttachment{
		AttachmentId: id,
		Url:          ref.Url,
		Title:        ref.Title,
		LocalPath:    local,
	}, nil
}
