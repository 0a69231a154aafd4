package origin

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrInvalidSnippet means the registry holds a widget snippet without the
// required shape. It is a configuration error, not a delivery failure.
var ErrInvalidSnippet = errors.New("invalid widget embed snippet")

// Required widget snippet attributes.
const (
	AttrWorkspaceID = "data-workspace-id"
	AttrAPIKey      = "data-api-key"
)

var (
	headOpenTag  = regexp.MustCompile(`(?i)<head(\s[^>]*)?>`)
	headCloseTag = regexp.MustCompile(`(?i)</head\s*>`)
	bodyCloseTag = regexp.MustCompile(`(?i)</body\s*>`)
	scriptPair   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
)

// ValidateSnippet checks that snippet is a script element pair carrying a
// src and both widget data attributes.
func ValidateSnippet(snippet string) error {
	if !scriptPair.MatchString(snippet) {
		return fmt.Errorf("%w: no <script>...</script> pair", ErrInvalidSnippet)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnippet, err)
	}
	script := doc.Find("script").First()
	for _, attr := range []string{"src", AttrWorkspaceID, AttrAPIKey} {
		if v, ok := script.Attr(attr); !ok || strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidSnippet, attr)
		}
	}
	return nil
}

// Inject rewrites page so it renders from the product origin: a base
// directive for origin, the success sentinel, the network interception
// script for slug, and the widget snippet, in that order. A page that
// already carries the sentinel is returned unchanged.
func Inject(page, origin, slug, snippet string) (string, error) {
	if err := ValidateSnippet(snippet); err != nil {
		return "", err
	}
	if strings.Contains(page, SentinelMarker) {
		return page, nil
	}

	block := injectionBlock(origin, slug, snippet)

	if loc := headOpenTag.FindStringIndex(page); loc != nil {
		return page[:loc[1]] + block + page[loc[1]:], nil
	}
	if loc := headCloseTag.FindStringIndex(page); loc != nil {
		return page[:loc[0]] + block + page[loc[0]:], nil
	}
	if loc := bodyCloseTag.FindStringIndex(page); loc != nil {
		return page[:loc[0]] + block + page[loc[0]:], nil
	}
	return page + block, nil
}

func injectionBlock(origin, slug, snippet string) string {
	var b strings.Builder
	b.WriteString(`<base href="`)
	b.WriteString(html.EscapeString(strings.TrimRight(origin, "/") + "/"))
	b.WriteString(`">`)
	b.WriteString(SentinelScript())
	b.WriteString(InterceptScript(strings.TrimRight(origin, "/"), slug))
	b.WriteString(snippet)
	return b.String()
}

// PageTitle returns the document title, used for diagnostics only.
func PageTitle(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
