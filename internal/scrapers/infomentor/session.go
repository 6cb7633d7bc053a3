package infomentor

import (
	"context"
	"fmt"
	"strings"
)

const (
	report_session_is_authenticated = "session.is-authenticated"
	report_session_login            = "session.login"
	report_session_hidden_field     = "session.hidden-field"
)

// IsAuthenticated asks the portal if the cookies in the jar belong to a live session.
func (c *Client) IsAuthenticated(ctx context.Context) (bool, error) {
	endpoint := c.mimUrl(fmt.Sprintf(
		"authentication/authentication/isauthenticated/?_=%d000",
		c.time.Now().Unix(),
	))
	res, err := c.post(ctx, endpoint, nil, nil)
	if err != nil {
		c.tel.ReportWarning(report_session_is_authenticated, err)
		return false, err
	}
	body := strings.ToLower(strings.TrimSpace(res.String()))
	c.tel.ReportDebug(report_session_is_authenticated, "body", body)
	return body == "true", nil
}

// EnsureSession reuses the persisted session if it is still authenticated and performs the
// full login handshake otherwise.
func (c *Client) EnsureSession(ctx context.Context, password string) error {
	ok, err := c.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if ok {
		c.tel.ReportDebug(report_session_login, "reusing persisted session")
		return nil
	}

	err = c.jar.Clear()
	if err != nil {
		return err
	}
	err = c.login(ctx, password)
	if err != nil {
		return err
	}

	ok, err = c.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		err := &AuthError{Username: c.Username}
		c.tel.ReportWarning(report_session_login, err)
		return err
	}
	c.tel.ReportInfo("logged in")
	return nil
}

func (c *Client) login(ctx context.Context, password string) error {
	loginError := func(err error) error {
		c.tel.ReportWarning(report_session_login, err)
		return &AuthError{Username: c.Username, Err: err}
	}

	// initial oauth token
	res, err := c.get(ctx, c.mimUrl(""))
	if err != nil {
		return loginError(fmt.Errorf("fetch portal home: %w", err))
	}
	token, err := c.form.Token(res.String())
	if err != nil {
		return loginError(fmt.Errorf("initial token: %w", err))
	}
	// the browser performs this request too, skipping it breaks the handshake
	_, err = c.get(ctx, c.mimUrl("Authentication/Authentication/Login?ReturnUrl=%2F"))
	if err != nil {
		return loginError(fmt.Errorf("fetch login page: %w", err))
	}

	// credentials
	mentorUrl := c.im1Url("mentor/")
	res, err = c.post(ctx, mentorUrl, map[string]string{"oauth_token": token}, nil)
	if err != nil {
		return loginError(fmt.Errorf("post initial token: %w", err))
	}
	payload, skipped := c.form.HiddenFields(res.String())
	for _, s := range skipped {
		c.tel.ReportWarning(report_session_hidden_field, fmt.Errorf("could not parse hidden field (%s)", s))
	}
	payload["login_ascx$txtNotandanafn"] = c.Username
	payload["login_ascx$txtLykilord"] = password
	payload["__EVENTTARGET"] = "login_ascx$btnLogin"
	payload["__EVENTARGUMENT"] = ""
	res, err = c.post(ctx, mentorUrl, payload, map[string]string{
		"Referer":      mentorUrl,
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return loginError(fmt.Errorf("post credentials: %w", err))
	}

	// final oauth token
	token, err = c.form.Token(res.String())
	if err != nil {
		return loginError(fmt.Errorf("final token: %w", err))
	}
	_, err = c.post(ctx, mentorUrl, map[string]string{"oauth_token": token}, nil)
	if err != nil {
		return loginError(fmt.Errorf("post final token: %w", err))
	}
	_, err = c.get(ctx, c.mimUrl(""))
	if err != nil {
		return loginError(fmt.Errorf("fetch portal home: %w", err))
	}
	return nil
}
