package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/log"
	"github.com/felixgeelhaar/apporte/internal/platform"
	"github.com/felixgeelhaar/apporte/internal/tokenstore"
)

type key struct {
	name  string
	def   func(home string) any
	parse func(string) (any, error)
}

func constant(v any) func(string) any {
	return func(string) any { return v }
}

var keys = []key{
	{name: "api_url", def: constant(platform.DefaultBaseURL), parse: parseURL},
	{name: "request_timeout", def: constant(time.Duration(0)), parse: parseDuration},
	{name: "storage.backend", def: constant(StorageFile), parse: oneOf(StorageFile, StorageMemory, StorageRedis)},
	{name: "storage.path", def: func(home string) any { return filepath.Join(home, "credentials.json") }, parse: parseString},
	{name: "storage.redis_addr", def: constant("localhost:6379"), parse: parseString},
	{name: "storage.redis_db", def: constant(0), parse: parseInt},
	{name: "storage.redis_prefix", def: constant(tokenstore.DefaultRedisPrefix), parse: parseString},
	{name: "storage.redis_ttl", def: constant(time.Duration(0)), parse: parseDuration},
	{name: "logging.level", def: constant("warn"), parse: parseLevel},
	{name: "logging.format", def: constant("text"), parse: oneOf("text", "json")},
}

func lookup(name string) (key, bool) {
	for _, k := range keys {
		if k.name == name {
			return k, true
		}
	}
	return key{}, false
}

// Set validates value and writes key into the YAML file at path, keeping
// every other entry. The file is created with mode 0600 if needed.
func Set(path, name, value string) error {
	k, ok := lookup(name)
	if !ok {
		return unknownKeyError(name)
	}
	typed, err := k.parse(value)
	if err != nil {
		return apperrors.NewConfigInvalidError(name, err.Error())
	}

	doc := make(map[string]any)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeConfigLoad, "failed to parse "+path, err)
		}
		if doc == nil {
			doc = make(map[string]any)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return apperrors.Wrap(apperrors.ErrCodeConfigLoad, "failed to read "+path, err)
	}

	setNested(doc, name, typed)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigWrite, "failed to marshal configuration", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigWrite, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigWrite, "failed to write "+path, err)
	}
	return nil
}

func setNested(m map[string]any, dotted string, val any) {
	parts := strings.Split(dotted, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = val
}

func parseString(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("must not be empty")
	}
	return s, nil
}

func parseURL(s string) (any, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute http(s) URL", s)
	}
	return strings.TrimRight(s, "/"), nil
}

// Durations are written as strings so the file stays readable.
func parseDuration(s string) (any, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	if d < 0 {
		return nil, errors.New("must not be negative")
	}
	return d.String(), nil
}

func parseInt(s string) (any, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	if n < 0 {
		return nil, errors.New("must not be negative")
	}
	return n, nil
}

func parseLevel(s string) (any, error) {
	if _, err := log.ParseLevel(s); err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func oneOf(allowed ...string) func(string) (any, error) {
	return func(s string) (any, error) {
		for _, a := range allowed {
			if strings.EqualFold(s, a) {
				return a, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(allowed, ", "))
	}
}
