package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"cardsync/internal/config"
	"cardsync/internal/logger"
	"cardsync/internal/ratelimit"
)

var (
	digitsRE = regexp.MustCompile(`\d+`)
	pageNoRE = regexp.MustCompile(`[?&]pageNo=(\d+)`)
)

// detailIDPattern matches detail-page links for the configured source and
// captures the card ID.
func detailIDPattern(src *config.Source) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(src.DetailPathPrefix) + `(\d+)/`)
}

// ExtractCardIDs pulls card IDs out of a list page body, preserving
// first-occurrence order and dropping duplicates.
func ExtractCardIDs(src *config.Source, body string) []int64 {
	matches := detailIDPattern(src).FindAllStringSubmatch(body, -1)
	seen := make(map[int64]bool, len(matches))
	var ids []int64
	for _, m := range matches {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ExtractTotalPages reads the page count from a list page: the last
// integer in p.resultTotalPages, or failing that the highest pageNo on a
// pagination anchor. Returns 0 when neither is present.
func ExtractTotalPages(body string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return 0
	}
	if node := doc.Find("p.resultTotalPages").First(); node.Length() > 0 {
		digits := digitsRE.FindAllString(spacedText(node), -1)
		if len(digits) > 0 {
			if n, err := strconv.Atoi(digits[len(digits)-1]); err == nil {
				return n
			}
		}
	}

	maxPage := 0
	doc.Find("nav.pagination a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m := pageNoRE.FindStringSubmatch(href); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})
	return maxPage
}

// StartSearch POSTs the search form to the list endpoint. The server
// binds the criteria to the session cookie; the response body is page 1.
// Returns the page-1 HTML and the total page count (0 if unknown).
func (s *Session) StartSearch(params SearchParams) (string, int, error) {
	form := url.Values{
		"keyword":    {params.Keyword},
		"cardType":   {params.CardType},
		"regulation": {params.Regulation},
	}
	body, _, err := s.postForm(s.src.ListURL(), form)
	if err != nil {
		return "", 0, fmt.Errorf("start search: %w", err)
	}
	return body, ExtractTotalPages(body), nil
}

// FetchListPage GETs one list page by number for the criteria bound to
// this session.
func (s *Session) FetchListPage(pageNo int) (string, error) {
	body, _, err := s.get(s.src.ListURL(), url.Values{"pageNo": {strconv.Itoa(pageNo)}})
	if err != nil {
		return "", fmt.Errorf("list page %d: %w", pageNo, err)
	}
	return body, nil
}

// DiscoverOptions bound the page range and the list-page worker pool.
type DiscoverOptions struct {
	StartPage   int // >= 1
	EndPage     int // 0 means "through the last page"
	ListWorkers int // <= 1 means sequential
}

// Discover runs the full discovery phase: seed the search, resolve the
// page range, fetch the remaining pages (optionally in parallel), and
// return the ordered de-duplicated card IDs plus the reported total page
// count (0 if the site didn't report one).
//
// IDs always come out in page order: page 1 first, then ascending page
// number, regardless of fetch completion order.
func Discover(src *config.Source, limiter *ratelimit.Limiter, params SearchParams, opts DiscoverOptions) ([]int64, int, error) {
	startPage := opts.StartPage
	if startPage < 1 {
		startPage = 1
	}

	seed := NewSession(src, limiter)
	page1, totalPages, err := seed.StartSearch(params)
	if err != nil {
		return nil, 0, err
	}

	endPage := opts.EndPage
	if endPage == 0 && totalPages > 0 {
		endPage = totalPages
	}
	if endPage == 0 {
		endPage = startPage
	}

	var ids []int64
	if startPage == 1 {
		ids = ExtractCardIDs(src, page1)
	}
	firstPage := startPage
	if startPage == 1 {
		firstPage = 2
	}

	if opts.ListWorkers <= 1 || endPage < firstPage {
		for page := firstPage; page <= endPage; page++ {
			body, err := seed.FetchListPage(page)
			if err != nil {
				return nil, 0, err
			}
			ids = append(ids, ExtractCardIDs(src, body)...)
			logger.Info("discover", fmt.Sprintf("list page %d/%d", page, endPage))
		}
	} else {
		// Parallel list fetch. Results are indexed by page so the final
		// sequence is page-ordered no matter which worker finishes first.
		byPage := make([][]int64, endPage-firstPage+1)
		var mu sync.Mutex

		var g errgroup.Group
		g.SetLimit(opts.ListWorkers)
		for page := firstPage; page <= endPage; page++ {
			page := page
			g.Go(func() error {
				// Share the seed session's jar so the search criteria
				// cookie applies to every page fetch.
				sess := NewSessionWithJar(src, limiter, seed.Jar())
				body, err := sess.FetchListPage(page)
				if err != nil {
					return err
				}
				pageIDs := ExtractCardIDs(src, body)
				mu.Lock()
				byPage[page-firstPage] = pageIDs
				mu.Unlock()
				logger.Info("discover", fmt.Sprintf("list page %d/%d", page, endPage))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
		for _, pageIDs := range byPage {
			ids = append(ids, pageIDs...)
		}
	}

	// De-duplicate across pages, preserving first occurrence.
	seen := make(map[int64]bool, len(ids))
	unique := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique, totalPages, nil
}
