package cdx

import "strings"

// NormalizeDomain tidies user input before it is placed in front of "/*".
// Surrounding space, a URL scheme and trailing slashes are removed and the
// host is lowercased; a path is kept as typed so the query stays as narrow as
// the user asked. Any non-empty host is accepted, including public suffixes,
// IP addresses and localhost.
//
//   - "Example.COM" -> "example.com"
//   - "https://WWW.example.com/Blog/" -> "www.example.com/Blog"
//   - "github.io" -> "github.io"
func NormalizeDomain(input string) (string, error) {
	input = strings.TrimSpace(input)
	if _, rest, ok := strings.Cut(input, "://"); ok {
		input = rest
	}
	input = strings.TrimRight(input, "/")
	host, path, hasPath := strings.Cut(input, "/")
	if host == "" {
		return "", ErrEmptyDomain
	}
	host = strings.ToLower(host)
	if !hasPath {
		return host, nil
	}
	return host + "/" + path, nil
}

// BuildQueryURL returns the CDX query for every capture under domain.
// The asterisk must stay literal: the index treats %2A as a plain character.
func BuildQueryURL(cdxAPI, domain string) string {
	sep := "?"
	if strings.Contains(cdxAPI, "?") {
		sep = "&"
	}
	return cdxAPI + sep + "url=" + domain + "/*&output=json"
}
