// Package infomentor emulates a browser session against the infomentor portal and fetches
// news, homework, calendar and timetable data from its internal json endpoints.
package infomentor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"infomentor-notifier/internal/components/assert"
	"infomentor-notifier/internal/components/blob"
	"infomentor-notifier/internal/components/chrono"
	"infomentor-notifier/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	report_client_save_cookies = "client.save-cookies"
	report_client_request      = "client.request"
)

const (
	DefaultMimBaseUrl = "https://mein.infomentor.de"
	DefaultIm1BaseUrl = "https://im1.infomentor.de/Germany/Germany/Production"
)

type Config struct {
	MimBaseUrl string `json:"mim_base_url"`
	Im1BaseUrl string `json:"im1_base_url"`
	// FilesDir receives attachments, ImagesDir receives news images.
	FilesDir  string `json:"files_dir"`
	ImagesDir string `json:"images_dir"`
	// RequestsPerSecond paces requests against the portal, 0 disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

func (c Config) withDefaults() Config {
	if c.MimBaseUrl == "" {
		c.MimBaseUrl = DefaultMimBaseUrl
	}
	if c.Im1BaseUrl == "" {
		c.Im1BaseUrl = DefaultIm1BaseUrl
	}
	if c.FilesDir == "" {
		c.FilesDir = "files"
	}
	if c.ImagesDir == "" {
		c.ImagesDir = "images"
	}
	c.MimBaseUrl = strings.TrimSuffix(c.MimBaseUrl, "/")
	c.Im1BaseUrl = strings.TrimSuffix(c.Im1BaseUrl, "/")
	return c
}

// Client is one user's session with the portal. It is not safe for concurrent use, the
// poll cycle processes users sequentially.
type Client struct {
	Http     *resty.Client
	Username string

	config Config
	jar    *PersistentJar
	form   FormScraper
	time   chrono.TimeAPI
	tel    telemetry.API
}

type ClientOptions struct {
	Config  Config
	Cookies blob.Store
	Time    chrono.TimeAPI
	Tel     telemetry.API
	// Output optionally receives full dumps of every http exchange.
	Output telemetry.MessageOutput
	// Form defaults to RegexFormScraper.
	Form FormScraper
}

func NewClient(username string, opts ClientOptions) (*Client, error) {
	assert.NotEmptyStr(username)
	assert.NotNil(opts.Cookies)
	assert.NotNil(opts.Time)
	assert.NotNil(opts.Tel)

	config := opts.Config.withDefaults()
	tel := telemetry.NewScopedAPI(username, telemetry.NewScopedAPI("infomentor", opts.Tel))

	mimUrl, err := url.Parse(config.MimBaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse mim base url: %w", err)
	}
	im1Url, err := url.Parse(config.Im1BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse im1 base url: %w", err)
	}

	jar, err := LoadJar(opts.Cookies, username, opts.Time)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	if mimUrl.Scheme == "https" {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(10),
		sameSiteRedirectPolicy(mimUrl.Hostname(), im1Url.Hostname()),
	)
	httpClient.SetTimeout(time.Second * 30)

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	// burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(limit, 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.Output)

	form := opts.Form
	if form == nil {
		form = RegexFormScraper{}
	}

	return &Client{
		Http:     httpClient,
		Username: username,
		config:   config,
		jar:      jar,
		form:     form,
		time:     opts.Time,
		tel:      tel,
	}, nil
}

// sameSiteRedirectPolicy allows redirects between the portal hosts and any other host of
// the same registrable domain, the login handshake bounces between several of them.
func sameSiteRedirectPolicy(hosts ...string) resty.RedirectPolicy {
	allowed := map[string]bool{}
	for _, h := range hosts {
		allowed[h] = true
		site, err := publicsuffix.EffectiveTLDPlusOne(h)
		if err == nil {
			allowed[site] = true
		}
	}
	return resty.RedirectPolicyFunc(func(req *http.Request, _ []*http.Request) error {
		host := req.URL.Hostname()
		if allowed[host] {
			return nil
		}
		site, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err == nil && allowed[site] {
			return nil
		}
		return fmt.Errorf("redirect to %s is not allowed", host)
	})
}

func (c *Client) mimUrl(path string) string {
	return c.config.MimBaseUrl + "/" + path
}

func (c *Client) im1Url(path string) string {
	return c.config.Im1BaseUrl + "/" + path
}

// resolve turns a portal relative link (like an attachment url) into an absolute one.
func (c *Client) resolve(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return c.mimUrl(strings.TrimPrefix(link, "/"))
}

func (c *Client) saveCookies() {
	err := c.jar.Save()
	if err != nil {
		c.tel.ReportBroken(report_client_save_cookies, err)
	}
}

// get performs a GET, anything but a 200 is an HttpError.
func (c *Client) get(ctx context.Context, endpoint string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	c.saveCookies()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	if res.StatusCode() != http.StatusOK {
		return res, &HttpError{Status: res.StatusCode(), Url: endpoint}
	}
	return res, nil
}

// post performs a POST, the response is returned whatever its status.
func (c *Client) post(ctx context.Context, endpoint string, form map[string]string, headers map[string]string) (*resty.Response, error) {
	req := c.Http.R().SetContext(ctx)
	if form != nil {
		req.SetFormData(form)
	}
	if headers != nil {
		req.SetHeaders(headers)
	}
	res, err := req.Post(endpoint)
	c.saveCookies()
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	return res, nil
}
