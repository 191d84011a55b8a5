package scraper

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	spaceRunRE   = regexp.MustCompile(`[ \t]+`)
	blankLinesRE = regexp.MustCompile(`\n{2,}`)
)

// NormalizeText normalizes effect text: \r becomes \n, runs of spaces
// and tabs collapse to one space, runs of blank lines collapse to one
// newline. Returns "" when nothing remains.
func NormalizeText(text string) string {
	t := strings.ReplaceAll(text, "\r", "\n")
	t = spaceRunRE.ReplaceAllString(t, " ")
	t = blankLinesRE.ReplaceAllString(t, "\n")
	return strings.TrimSpace(t)
}

var (
	instrSplitRE     = regexp.MustCompile(`[。；;]\s*|\n+`)
	instrConnectorRE = regexp.MustCompile(`，(若|如果|則|接著|然後|此外)`)
)

// SplitInstructions splits a normalized skill text into smaller
// actionable units. Heuristic only; downstream refinement consumes the
// result.
func SplitInstructions(text string) []string {
	t := NormalizeText(text)
	if t == "" {
		return nil
	}

	parts := instrSplitRE.Split(t, -1)

	var refined []string
	for _, p := range parts {
		p = strings.Trim(p, " 。；;")
		if p == "" {
			continue
		}
		if len([]rune(p)) <= 12 {
			refined = append(refined, p)
			continue
		}
		// Split on "，" only when a connector phrase follows.
		rest := p
		for {
			loc := instrConnectorRE.FindStringSubmatchIndex(rest)
			if loc == nil {
				break
			}
			head := strings.Trim(rest[:loc[0]], " ，")
			if head != "" {
				refined = append(refined, head)
			}
			rest = rest[loc[2]:] // keep the connector with the tail
		}
		rest = strings.Trim(rest, " ，")
		if rest != "" {
			refined = append(refined, rest)
		}
	}

	// Drop consecutive duplicates.
	var cleaned []string
	last := ""
	for _, r := range refined {
		r = strings.TrimSpace(r)
		if r == "" || r == last {
			continue
		}
		cleaned = append(cleaned, r)
		last = r
	}
	return cleaned
}

// energyCodeFromSrc derives an energy-type code from the filename stem
// of a type-icon image URL (".../energy/grass.png" -> "grass").
func energyCodeFromSrc(src string) string {
	if src == "" {
		return ""
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// joinedText concatenates the trimmed text nodes of a selection with no
// separator, mirroring how CJK card names are assembled from fragments.
func joinedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		walkText(node, func(t string) {
			b.WriteString(strings.TrimSpace(t))
		})
	}
	return strings.TrimSpace(b.String())
}

// spacedText returns the selection's text nodes joined by single spaces,
// then whitespace-normalized to one line.
func spacedText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		walkText(node, func(t string) {
			if t = strings.TrimSpace(t); t != "" {
				parts = append(parts, t)
			}
		})
	}
	return strings.Join(parts, " ")
}

// textLines returns the selection's text nodes joined by newlines,
// preserving multi-line effect text structure.
func textLines(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		walkText(node, func(t string) {
			if t = strings.TrimSpace(t); t != "" {
				parts = append(parts, t)
			}
		})
	}
	return strings.Join(parts, "\n")
}

func walkText(n *html.Node, fn func(string)) {
	if n.Type == html.TextNode {
		fn(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}

// optional converts a possibly empty string to a nullable field.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
