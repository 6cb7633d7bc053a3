package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_output   = "resty.output"
)

const redacted = "<redacted>"

// secretHeaders never show up in a dump.
var secretHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

// secretFields are substrings of form field names whose value is dropped from dumps, the
// portal names its password field txtLykilord.
var secretFields = []string{"password", "passwd", "lykilord", "token"}

// MessageOutput receives full dumps of http exchanges, see FilesystemOutput.
type MessageOutput interface {
	Write(name string, contents string)
}

type exchangeKey struct{}

type restyHooks struct {
	tel    API
	output MessageOutput
	seq    *atomic.Uint64
}

// InstrumentResty reports every request and response of the client and, when `output` is
// not nil, dumps each exchange with credentials redacted.
func InstrumentResty(client *resty.Client, tel API, output MessageOutput) {
	h := restyHooks{tel: tel, output: output, seq: &atomic.Uint64{}}
	client.OnBeforeRequest(h.before)
	client.OnAfterResponse(h.after)
	client.OnError(h.failed)
}

func (h restyHooks) before(_ *resty.Client, req *resty.Request) error {
	seq := h.seq.Add(1)
	h.tel.ReportDebug(report_resty_request, seq, req.Method, req.URL)
	req.SetContext(context.WithValue(req.Context(), exchangeKey{}, seq))
	return nil
}

func (h restyHooks) after(_ *resty.Client, res *resty.Response) error {
	seq, ok := res.Request.Context().Value(exchangeKey{}).(uint64)
	if !ok {
		return nil
	}
	h.tel.ReportDebug(report_resty_response, seq, res.Time().String(), res.Status())
	if h.output != nil {
		h.output.Write(dumpName(seq, res.Request), dumpExchange(res))
	}
	return nil
}

func (h restyHooks) failed(req *resty.Request, err error) {
	h.tel.ReportWarning(report_resty_response, err, req.Method, req.URL)
}

// dumpName is "<seq>-<method>-<last path segment>", sortable in request order.
func dumpName(seq uint64, req *resty.Request) string {
	segment := "root"
	if u, err := url.Parse(req.URL); err == nil {
		if base := filepath.Base(u.Path); base != "/" && base != "." {
			segment = base
		}
	}
	segment = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, segment)
	return fmt.Sprintf("%04d-%s-%s", seq, strings.ToLower(req.Method), segment)
}

func isSecretField(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range secretFields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			if slices.Contains(secretHeaders, http.CanonicalHeaderKey(k)) {
				v = redacted
			}
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

// requestBody returns the sent body, url encoded forms get their secret fields redacted.
func requestBody(req *resty.Request) string {
	if len(req.FormData) > 0 {
		form := url.Values{}
		for k, vals := range req.FormData {
			for _, v := range vals {
				if isSecretField(k) {
					v = redacted
				}
				form.Add(k, v)
			}
		}
		return form.Encode()
	}
	raw := req.RawRequest
	if raw == nil || raw.GetBody == nil {
		return ""
	}
	body, err := raw.GetBody()
	if err != nil {
		return fmt.Sprintf("<unreadable body: %s>", err.Error())
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<unreadable body: %s>", err.Error())
	}
	return string(contents)
}

func dumpExchange(res *resty.Response) string {
	req := res.Request
	var out strings.Builder

	fmt.Fprintf(&out, "> %s %s\n", req.Method, req.URL)
	if req.RawRequest != nil {
		writeHeaders(&out, req.RawRequest.Header)
	}
	if body := requestBody(req); body != "" {
		out.WriteString("\n")
		out.WriteString(body)
		out.WriteString("\n")
	}

	fmt.Fprintf(&out, "\n< %s (%s)\n", res.Status(), res.Time())
	if res.RawResponse != nil {
		if location, err := res.RawResponse.Location(); err == nil {
			fmt.Fprintf(&out, "< redirected to %s\n", location)
		}
	}
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(res.String())
	return out.String()
}

// FilesystemOutput writes each http exchange into its own file in a directory.
type FilesystemOutput struct {
	directory string
	tel       API
}

// NewFilesystemOutput clears and recreates dir.
func NewFilesystemOutput(dir string, tel API) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, tel: tel}, nil
}

func (o FilesystemOutput) Write(name string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
	if err != nil {
		o.tel.ReportWarning(report_resty_output, fmt.Errorf("write exchange dump: %w", err), name)
	}
}
