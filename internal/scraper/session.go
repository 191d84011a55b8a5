// Package scraper implements discovery and detail fetching against the
// upstream card-search site, and the HTML parsers that turn detail pages
// into normalized card records.
package scraper

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"cardsync/internal/config"
	"cardsync/internal/ratelimit"
)

// Statuses worth retrying; anything else in the 4xx/5xx range fails the
// request immediately.
var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Session is a per-worker HTTP session: one connection pool, one cookie
// jar, default headers, and the shared rate limiter. Sessions are not
// safe for concurrent use; give each worker its own.
type Session struct {
	http    *http.Client
	src     *config.Source
	limiter *ratelimit.Limiter
}

// NewSession creates a Session with a fresh cookie jar.
func NewSession(src *config.Source, limiter *ratelimit.Limiter) *Session {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return NewSessionWithJar(src, limiter, jar)
}

// NewSessionWithJar creates a Session sharing an existing cookie jar.
// Parallel list-page workers use this so the server-side search binding
// established by the seed POST carries over.
func NewSessionWithJar(src *config.Source, limiter *ratelimit.Limiter, jar http.CookieJar) *Session {
	return &Session{
		http: &http.Client{
			Timeout: src.Timeout(),
			Jar:     jar,
		},
		src:     src,
		limiter: limiter,
	}
}

// Jar returns the session's cookie jar.
func (s *Session) Jar() http.CookieJar {
	return s.http.Jar
}

// Source returns the site configuration this session talks to.
func (s *Session) Source() *config.Source {
	return s.src
}

// get performs a rate-limited GET with retries and returns the final
// response body and URL (after redirects).
func (s *Session) get(rawurl string, query url.Values) (body string, finalURL *url.URL, err error) {
	if len(query) > 0 {
		rawurl = rawurl + "?" + query.Encode()
	}
	return s.request(http.MethodGet, rawurl, nil)
}

// postForm performs a rate-limited form POST with retries.
func (s *Session) postForm(rawurl string, form url.Values) (body string, finalURL *url.URL, err error) {
	return s.request(http.MethodPost, rawurl, form)
}

// request sends one HTTP request with the retry policy of the source:
// up to Retries attempts, retrying on network errors and transient
// statuses with backoff * 2^attempt sleeps. The global limiter is
// consulted before every attempt, so back-off and spacing compose.
func (s *Session) request(method, rawurl string, form url.Values) (string, *url.URL, error) {
	retries := s.src.Retries
	backoff := s.src.Backoff()

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		s.limiter.Wait()

		req, err := s.newRequest(method, rawurl, form)
		if err != nil {
			return "", nil, err
		}
		resp, err := s.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt >= retries-1 {
				return "", nil, fmt.Errorf("%s %s: %w", method, rawurl, err)
			}
			time.Sleep(backoff << attempt)
			continue
		}

		if retryStatus[resp.StatusCode] {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("%s %s: status %d", method, rawurl, resp.StatusCode)
			if attempt >= retries-1 {
				return "", nil, lastErr
			}
			time.Sleep(backoff << attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return "", nil, fmt.Errorf("%s %s: status %d", method, rawurl, resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt >= retries-1 {
				return "", nil, fmt.Errorf("%s %s: read body: %w", method, rawurl, err)
			}
			time.Sleep(backoff << attempt)
			continue
		}
		return string(data), resp.Request.URL, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s %s: request failed", method, rawurl)
	}
	return "", nil, lastErr
}

func (s *Session) newRequest(method, rawurl string, form url.Values) (*http.Request, error) {
	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequest(method, rawurl, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequest(method, rawurl, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.src.UserAgent)
	if s.src.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", s.src.AcceptLanguage)
	}
	return req, nil
}
