package datasource

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName derives a dataset name from a resource URL: the last path
// segment without its extension, with separators turned into spaces and each
// word capitalized. "https://x.org/files/sales_2024.csv" becomes "Sales 2024".
func DisplayName(resource string) string {
	u, err := url.Parse(resource)
	if err != nil {
		return resource
	}

	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if base == "." || base == "/" || base == "" {
		return u.Host
	}

	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return u.Host
	}
	return cases.Title(language.Und, cases.NoLower).String(base)
}
