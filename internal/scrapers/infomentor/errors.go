package infomentor

import "fmt"

// AuthError means the login flow finished but the portal still does not consider the
// session authenticated.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login for %s failed: %s", e.Username, e.Err)
	}
	return fmt.Sprintf("login for %s failed", e.Username)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TokenParseError means a page did not contain exactly one oauth token.
type TokenParseError struct {
	Count int
}

func (e *TokenParseError) Error() string {
	return fmt.Sprintf("expected exactly one oauth_token, found %d", e.Count)
}

// HttpError is a non-200 response to a GET request.
type HttpError struct {
	Status int
	Url    string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("got response with code %d from %s", e.Status, e.Url)
}

// PortalError is a portal endpoint that answered with something that is not the expected
// json document.
type PortalError struct {
	Endpoint string
	Err      error
}

func (e *PortalError) Error() string {
	return fmt.Sprintf("portal %s: %s", e.Endpoint, e.Err)
}

func (e *PortalError) Unwrap() error {
	return e.Err
}

// AttachmentParseError is an attachment url without a download id.
type AttachmentParseError struct {
	Url string
}

func (e *AttachmentParseError) Error() string {
	return fmt.Sprintf("could not find attachment id in %q", e.Url)
}
