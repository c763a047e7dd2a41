package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response by its full request URL.
type Key struct {
	// URL is the full request URL, including any query string.
	URL string
}

// String generates a deterministic Redis key. Query parameters are
// re-sorted so equivalent URLs with reordered parameters share an entry.
//
// Example:
//
//	planet:https://api.planet.com/data/v1/searches?a=1&b=2
func (k Key) String() string {
	u, err := url.Parse(k.URL)
	if err != nil {
		return "planet:" + k.URL
	}

	if q := u.Query(); len(q) > 0 {
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var b strings.Builder
		for i, key := range keys {
			vals := q[key]
			sort.Strings(vals)
			for j, v := range vals {
				if i > 0 || j > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(key))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}
	u.Fragment = ""

	return "planet:" + u.String()
}
