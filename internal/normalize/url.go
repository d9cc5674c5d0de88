// Package normalize implements URL and text normalization ahead of the
// dedup and filter stages.
//
// Adapted from the teacher's URL handling in internal/adapters
// (symbol_normalization.go) and grounded on urlnorm.py / normalize.py.
package normalize

import (
	"net/url"
	"sort"
	"strings"
)

// DefaultTrackingParams is the set of query parameters stripped by URL
// normalization. Callers may pass a config-supplied superset instead.
var DefaultTrackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"yclid": {}, "gclid": {}, "fbclid": {}, "ref": {}, "from": {}, "source": {},
	"rss": {}, "tg": {}, "share": {}, "erid": {}, "ysclid": {}, "_openstat": {},
}

// URL lowercases the host, strips the fragment, removes tracking params,
// sorts the remaining query parameters, and strips a trailing slash (except
// for the root path). It is idempotent: URL(URL(u)) == URL(u).
func URL(raw string, trackingParams map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	if trackingParams == nil {
		trackingParams = DefaultTrackingParams
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if _, drop := trackingParams[strings.ToLower(key)]; drop {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// encodeSorted re-implements url.Values.Encode with deterministic key order
// (the stdlib already sorts by key, but we also sort each value slice so the
// result is stable regardless of parse order).
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
