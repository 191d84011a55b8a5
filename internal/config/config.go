// Package config describes the upstream card-search site and the fetch
// defaults. Values can be overridden from a YAML file and from CLI flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source holds everything needed to talk to one upstream card-search
// site: the URL layout, the default request headers, and the retry and
// pacing defaults.
type Source struct {
	BaseURL          string `yaml:"base_url"`
	ListPath         string `yaml:"list_path"`
	DetailPathPrefix string `yaml:"detail_path_prefix"`
	DetailPathSuffix string `yaml:"detail_path_suffix"`

	UserAgent      string `yaml:"user_agent"`
	AcceptLanguage string `yaml:"accept_language"`

	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Retries        int     `yaml:"retries"`
	BackoffSeconds float64 `yaml:"backoff_seconds"`

	// Pipeline defaults; CLI flags take precedence.
	DelaySeconds float64 `yaml:"delay_seconds"`
	Workers      int     `yaml:"workers"`
	ListWorkers  int     `yaml:"list_workers"`
}

// Default returns the Traditional Chinese (TW) site configuration.
func Default() *Source {
	return &Source{
		BaseURL:          "https://asia.pokemon-card.com",
		ListPath:         "/tw/card-search/list/",
		DetailPathPrefix: "/tw/card-search/detail/",
		DetailPathSuffix: "/",
		UserAgent:        "cardsync/0.1 (+https://example.invalid)",
		AcceptLanguage:   "zh-TW,zh;q=0.9,en;q=0.3",
		TimeoutSeconds:   30,
		Retries:          3,
		BackoffSeconds:   1.0,
		DelaySeconds:     0.1,
		Workers:          4,
		ListWorkers:      8,
	}
}

// DefaultJP returns the Japanese site configuration. The JP site has no
// list search wired here; it is used for single-card detail fetches.
func DefaultJP() *Source {
	return &Source{
		BaseURL:          "https://www.pokemon-card.com",
		ListPath:         "/card-search/",
		DetailPathPrefix: "/card-search/details.php/card/",
		DetailPathSuffix: "/regu/ALL",
		UserAgent:        "cardsync/0.1 (+https://example.invalid)",
		AcceptLanguage:   "ja,en;q=0.3",
		TimeoutSeconds:   30,
		Retries:          3,
		BackoffSeconds:   1.0,
		DelaySeconds:     0.1,
		Workers:          4,
		ListWorkers:      1,
	}
}

// Load reads a Source from a YAML file, starting from base defaults so a
// partial file only overrides what it names.
func Load(path string, base *Source) (*Source, error) {
	src := *base
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &src, nil
}

// Validate checks that the Source is usable.
func (s *Source) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if s.DetailPathPrefix == "" {
		return fmt.Errorf("detail_path_prefix is required")
	}
	if s.Retries < 1 {
		return fmt.Errorf("retries must be >= 1")
	}
	return nil
}

// ListURL returns the absolute list endpoint URL.
func (s *Source) ListURL() string {
	return strings.TrimSuffix(s.BaseURL, "/") + s.ListPath
}

// DetailURL returns the absolute detail URL for a card ID.
func (s *Source) DetailURL(cardID int64) string {
	return strings.TrimSuffix(s.BaseURL, "/") + s.DetailPathPrefix + strconv.FormatInt(cardID, 10) + s.DetailPathSuffix
}

// Timeout returns the per-request timeout.
func (s *Source) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Backoff returns the base retry back-off.
func (s *Source) Backoff() time.Duration {
	if s.BackoffSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.BackoffSeconds * float64(time.Second))
}

// Delay returns the default global request spacing.
func (s *Source) Delay() time.Duration {
	if s.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(s.DelaySeconds * float64(time.Second))
}
