package service

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// redacted replaces targets that cannot be parsed safely
const redacted = "redacted"

var credentialKeys = map[string]struct{}{
	"user":        {},
	"user id":     {},
	"userid":      {},
	"username":    {},
	"uid":         {},
	"password":    {},
	"passwd":      {},
	"pwd":         {},
	"sslpassword": {},
}

var urlScheme = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*)://`)

func isCredentialKey(key string) bool {
	_, ok := credentialKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// ScrubCredentials returns target with user names and passwords removed.
// The result is only fit for logging. Scrubbing a scrubbed target returns
// it unchanged.
func ScrubCredentials(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}

	if m := urlScheme.FindStringSubmatch(target); m != nil {
		return scrubURL(target, m[1])
	}

	if strings.Contains(target, ")/") {
		return scrubMySQLDSN(target)
	}

	if hasUnquoted(target, ';') {
		return scrubSemicolonPairs(target)
	}
	return scrubLibpqPairs(target)
}

// scrubURL drops userinfo and credential query parameters. Unix socket
// URLs have no host and are scrubbed the same way.
func scrubURL(target, scheme string) string {
	u, err := url.Parse(target)
	if err != nil {
		return scheme + "://" + redacted
	}

	u.User = nil
	u.Fragment, u.RawFragment = "", ""
	if u.RawQuery != "" {
		query := u.Query()
		for key := range query {
			if isCredentialKey(key) {
				query.Del(key)
			}
		}
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func scrubMySQLDSN(target string) string {
	if cfg, err := mysql.ParseDSN(target); err == nil {
		cfg.User = ""
		cfg.Passwd = ""
		return cfg.FormatDSN()
	}

	// Unparseable: keep only what follows [user[:password]@]
	addrEnd := strings.Index(target, ")/")
	if at := strings.LastIndexByte(target[:addrEnd], '@'); at >= 0 {
		return target[at+1:]
	}
	return target
}

// hasUnquoted reports whether c occurs outside single quoted values
func hasUnquoted(s string, c byte) bool {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && quoted:
			i++
		case s[i] == '\'':
			quoted = !quoted
		case s[i] == c && !quoted:
			return true
		}
	}
	return false
}

// scrubLibpqPairs handles "k=v k = 'v v'" connection strings. Whitespace
// around "=" is allowed and single quoted values may contain spaces and
// \' escapes.
func scrubLibpqPairs(target string) string {
	var kept []string
	dropNext := false

	for i := 0; i < len(target); {
		for i < len(target) && isSpace(target[i]) {
			i++
		}
		if i >= len(target) {
			break
		}

		start := i
		for i < len(target) && !isSpace(target[i]) && target[i] != '=' {
			i++
		}
		key := target[start:i]

		j := i
		for j < len(target) && isSpace(target[j]) {
			j++
		}
		if j >= len(target) || target[j] != '=' {
			// Bare word. A value left behind by "password secret" goes too.
			if !isCredentialKey(key) && !dropNext {
				kept = append(kept, key)
			}
			dropNext = isCredentialKey(key)
			continue
		}
		dropNext = false

		i = j + 1
		for i < len(target) && isSpace(target[i]) {
			i++
		}
		value, end := readLibpqValue(target, i)
		i = end

		if key == "" || isCredentialKey(key) {
			continue
		}
		kept = append(kept, key+"="+value)
	}
	return strings.Join(kept, " ")
}

// readLibpqValue returns the raw value starting at i and the index after it
func readLibpqValue(s string, i int) (string, int) {
	start := i
	if i < len(s) && s[i] == '\'' {
		for i++; i < len(s); i++ {
			if s[i] == '\\' {
				i++
				continue
			}
			if s[i] == '\'' {
				return s[start : i+1], i + 1
			}
		}
		return s[start:], len(s)
	}

	for ; i < len(s) && !isSpace(s[i]); i++ {
		if s[i] == '\\' {
			i++
		}
	}
	if i > len(s) {
		i = len(s)
	}
	return s[start:i], i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// scrubSemicolonPairs handles "Key=Value;Key=Value" connection strings.
// Values may be quoted with ' or " and contain ';'.
func scrubSemicolonPairs(target string) string {
	var kept []string

	for i := 0; i < len(target); {
		start := i
		for i < len(target) && target[i] != '=' && target[i] != ';' {
			i++
		}
		key := strings.TrimSpace(target[start:i])

		if i >= len(target) || target[i] == ';' {
			if key != "" && !isCredentialKey(key) {
				kept = append(kept, key)
			}
			i++
			continue
		}

		i++
		for i < len(target) && isSpace(target[i]) {
			i++
		}
		valueStart := i
		if i < len(target) && (target[i] == '\'' || target[i] == '"') {
			quote := target[i]
			for i++; i < len(target); i++ {
				if target[i] == quote {
					if i+1 < len(target) && target[i+1] == quote {
						i++
						continue
					}
					i++
					break
				}
			}
		}
		for i < len(target) && target[i] != ';' {
			i++
		}
		value := strings.TrimSpace(target[valueStart:i])
		i++

		if key == "" || isCredentialKey(key) {
			continue
		}
		kept = append(kept, key+"="+value)
	}
	return strings.Join(kept, ";")
}
