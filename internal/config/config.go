// Package config resolves the Jira and Confluence connection settings from
// the environment, an optional YAML file and built-in defaults, in that
// order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/golovatskygroup/mcp-atlas/internal/atlassian"
)

// Environment prefixes of the two services.
const (
	JiraPrefix       = "JIRA"
	ConfluencePrefix = "CONFLUENCE"
)

const defaultTimeoutSeconds = 30

// Service is one service section of the YAML file.
type Service struct {
	BaseURL   string `yaml:"base_url"`
	PAT       string `yaml:"pat"`
	AuthMode  string `yaml:"auth_mode"`
	Username  string `yaml:"username"`
	VerifyTLS *bool  `yaml:"verify_tls"`
	Timeout   any    `yaml:"timeout"` // seconds, number or string
}

// File is the optional YAML configuration file.
//
//	jira:
//	  base_url: https://jira.example.com
//	  pat: ${JIRA_TOKEN}
//	confluence:
//	  base_url: https://wiki.example.com
//	  auth_mode: basic
//	  username: svc-bot
//	  pat: ${WIKI_PASSWORD}
type File struct {
	Jira       Service `yaml:"jira"`
	Confluence Service `yaml:"confluence"`
}

// LoadFile reads a YAML config file. ${VAR} references are expanded from the
// process environment before parsing; unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML config content. Empty input yields an empty File.
func ParseFile(data []byte) (*File, error) {
	expanded := os.ExpandEnv(string(data))

	var f File
	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// LoadEnvFiles loads .env files into the process environment. Variables that
// are already set keep their values.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// Loader resolves service configurations on demand. It reads its sources on
// every call, so changes to the environment are picked up by the next call.
type Loader struct {
	File   *File
	Lookup func(key string) (string, bool) // defaults to os.LookupEnv
}

// Jira resolves the JIRA_* settings.
func (l *Loader) Jira() (atlassian.Config, error) {
	var sec Service
	if l.File != nil {
		sec = l.File.Jira
	}
	return l.resolve(JiraPrefix, sec)
}

// Confluence resolves the CONFLUENCE_* settings.
func (l *Loader) Confluence() (atlassian.Config, error) {
	var sec Service
	if l.File != nil {
		sec = l.File.Confluence
	}
	return l.resolve(ConfluencePrefix, sec)
}

func (l *Loader) resolve(prefix string, sec Service) (atlassian.Config, error) {
	baseURL := l.value(prefix+"_BASE_URL", sec.BaseURL)
	if baseURL == "" {
		return atlassian.Config{}, &atlassian.MissingConfigError{Name: prefix + "_BASE_URL"}
	}
	token := l.value(prefix+"_PAT", sec.PAT)
	if token == "" {
		return atlassian.Config{}, &atlassian.MissingConfigError{Name: prefix + "_PAT"}
	}

	mode := strings.ToLower(l.value(prefix+"_AUTH_MODE", sec.AuthMode))
	if mode == "" {
		mode = string(atlassian.AuthBearer)
	}

	cfg := atlassian.Config{
		BaseURL:   baseURL,
		AuthMode:  atlassian.AuthMode(mode),
		Token:     token,
		VerifyTLS: true,
		Timeout:   defaultTimeoutSeconds * time.Second,
	}
	if cfg.AuthMode == atlassian.AuthBasic {
		cfg.Username = l.value(prefix+"_USERNAME", sec.Username)
	}

	if v, ok := l.env(prefix + "_VERIFY_TLS"); ok {
		cfg.VerifyTLS = parseVerifyTLS(v)
	} else if sec.VerifyTLS != nil {
		cfg.VerifyTLS = *sec.VerifyTLS
	}

	var rawTimeout any = sec.Timeout
	key := prefix + "_TIMEOUT"
	if v, ok := l.env(key); ok {
		rawTimeout = v
	}
	if rawTimeout != nil {
		secs, err := cast.ToIntE(rawTimeout)
		if err != nil {
			return atlassian.Config{}, &atlassian.ValidationError{Field: key, Reason: fmt.Sprintf("not a number of seconds: %v", rawTimeout)}
		}
		if secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	return cfg, nil
}

// value returns the environment value for key, then fallback.
func (l *Loader) value(key, fallback string) string {
	if v, ok := l.env(key); ok {
		return v
	}
	return strings.TrimSpace(fallback)
}

// env reports a non-blank environment value.
func (l *Loader) env(key string) (string, bool) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func parseVerifyTLS(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no":
		return false
	default:
		return true
	}
}
