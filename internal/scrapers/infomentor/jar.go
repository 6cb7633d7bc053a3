package infomentor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"infomentor-notifier/internal/components/blob"
	"infomentor-notifier/internal/components/chrono"

	"golang.org/x/net/publicsuffix"
)

type storedCookie struct {
	// Url is the request url the cookie was received from, replaying the cookie against it
	// reproduces the domain and path defaults the jar applied originally.
	Url      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// PersistentJar is a cookie jar whose contents survive process restarts. The standard jar
// cannot enumerate its cookies, so every cookie it accepts is also recorded here and
// replayed into a fresh jar on load.
type PersistentJar struct {
	inner *cookiejar.Jar
	store blob.Store
	key   string
	// time decides which recorded cookies have expired.
	time chrono.TimeAPI

	mutex   sync.Mutex
	cookies map[string]storedCookie
}

func newInnerJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// LoadJar restores the jar stored under `key`, a missing blob yields an empty jar.
func LoadJar(store blob.Store, key string, clock chrono.TimeAPI) (*PersistentJar, error) {
	inner, err := newInnerJar()
	if err != nil {
		return nil, err
	}
	jar := &PersistentJar{
		inner:   inner,
		store:   store,
		key:     key,
		time:    clock,
		cookies: map[string]storedCookie{},
	}

	contents, err := store.Get(key)
	if errors.Is(err, blob.ErrNotFound) {
		return jar, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}

	var stored []storedCookie
	err = json.Unmarshal(contents, &stored)
	if err != nil {
		// a corrupt jar only costs a fresh login
		return jar, nil
	}
	now := clock.Now()
	for _, c := range stored {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		u, err := url.Parse(c.Url)
		if err != nil {
			continue
		}
		jar.SetCookies(u, []*http.Cookie{{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}})
	}
	return jar, nil
}

func cookieKey(u *url.URL, c *http.Cookie) string {
	domain := c.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	return domain + ";" + c.Path + ";" + c.Name
}

func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.inner.SetCookies(u, cookies)

	now := j.time.Now()
	origin := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	for _, c := range cookies {
		key := cookieKey(u, c)
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(j.cookies, key)
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[key] = storedCookie{
			Url:      origin.String(),
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
}

func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.inner.Cookies(u)
}

// Save writes every recorded cookie, session cookies included, to the blob store.
func (j *PersistentJar) Save() error {
	j.mutex.Lock()
	stored := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		stored = append(stored, c)
	}
	j.mutex.Unlock()

	contents, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	err = j.store.Put(j.key, contents)
	if err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	return nil
}

// Clear drops every cookie, used when a persisted session turns out to be dead.
func (j *PersistentJar) Clear() error {
	inner, err := newInnerJar()
	if err != nil {
		return err
	}
	j.mutex.Lock()
	j.inner = inner
	j.cookies = map[string]storedCookie{}
	j.mutex.Unlock()
	return nil
}
