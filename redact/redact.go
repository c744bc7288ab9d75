// Package redact hides credentials in values that end up in logs, banners and
// admin responses.
package redact

import (
	"net/url"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Mask keeps the first half of s and replaces the rest with asterisks.
func Mask(s string) string {
	l := len(s)
	if l == 0 {
		return s
	}
	if l == 1 {
		return "*"
	}
	h := l / 2
	return s[0:h] + strings.Repeat("*", l-h)
}

// URL masks the user info and query values of a URL. Host, port and path are kept
// so the result still identifies the server.
func URL(val string) (string, error) {
	u, err := url.Parse(val)
	if err != nil {
		return "", errors.Wrap(err, "parsing url")
	}
	var str strings.Builder
	str.WriteString(u.Scheme)
	str.WriteString("://")
	if u.User != nil {
		str.WriteString(Mask(u.User.Username()))
		if pass, ok := u.User.Password(); ok {
			str.WriteString(":")
			str.WriteString(strings.Repeat("*", max(len(pass), 3)))
		}
		str.WriteString("@")
	}
	str.WriteString(u.Host)
	if u.Path != "/" {
		str.WriteString(u.Path)
	}
	var qs []string
	for k, v := range u.Query() {
		qs = append(qs, k+"="+Mask(strings.Join(v, ",")))
	}
	sort.Strings(qs)
	if len(qs) > 0 {
		str.WriteString("?")
		str.WriteString(strings.Join(qs, "&"))
	}
	return str.String(), nil
}

// ConnectionString masks a redis connection string, which is either a URL or a
// plain host:port. Values that cannot be parsed are masked entirely.
func ConnectionString(val string) string {
	if !strings.Contains(val, "://") {
		return val
	}
	masked, err := URL(val)
	if err != nil {
		return Mask(val)
	}
	return masked
}

// Secret is a string that never prints its value.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "********"
}

func (s Secret) GoString() string { return s.String() }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Reveal returns the underlying value.
func (s Secret) Reveal() string { return string(s) }
