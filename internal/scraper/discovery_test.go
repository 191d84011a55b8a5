package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"cardsync/internal/ratelimit"
)

func TestExtractCardIDs_OrderAndDedupe(t *testing.T) {
	src := testSource("https://example.invalid")
	body := `
		<a href="/tw/card-search/detail/300/">C</a>
		<a href="/tw/card-search/detail/100/">A</a>
		<a href="/tw/card-search/detail/200/">B</a>
		<a href="/tw/card-search/detail/100/">A again</a>
	`
	got := ExtractCardIDs(src, body)
	want := []int64{300, 100, 200}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractCardIDs = %v, want %v", got, want)
	}
}

func TestExtractCardIDs_NoMatches(t *testing.T) {
	src := testSource("https://example.invalid")
	if got := ExtractCardIDs(src, "<html><body>nothing here</body></html>"); len(got) != 0 {
		t.Errorf("ExtractCardIDs = %v, want empty", got)
	}
}

func TestExtractTotalPages_FromCounter(t *testing.T) {
	body := `<p class="resultTotalPages">1 / 42 頁</p>`
	if got := ExtractTotalPages(body); got != 42 {
		t.Errorf("ExtractTotalPages = %d, want 42", got)
	}
}

func TestExtractTotalPages_FromPagination(t *testing.T) {
	body := `
		<nav class="pagination">
			<a href="/tw/card-search/list/?pageNo=2">2</a>
			<a href="/tw/card-search/list/?pageNo=7">7</a>
			<a href="/tw/card-search/list/?pageNo=3">3</a>
		</nav>
	`
	if got := ExtractTotalPages(body); got != 7 {
		t.Errorf("ExtractTotalPages = %d, want 7", got)
	}
}

func TestExtractTotalPages_Unknown(t *testing.T) {
	if got := ExtractTotalPages("<html><body></body></html>"); got != 0 {
		t.Errorf("ExtractTotalPages = %d, want 0", got)
	}
}

// listServer serves a fixed number of list pages, each carrying two card
// IDs derived from the page number, and reports the total in the page-1
// POST response.
func listServer(t *testing.T, totalPages int) *httptest.Server {
	t.Helper()
	page := func(w http.ResponseWriter, pageNo int) {
		fmt.Fprintf(w, `<p class="resultTotalPages">%d</p>`, totalPages)
		fmt.Fprintf(w, `<a href="/tw/card-search/detail/%d/">x</a>`, pageNo*10)
		fmt.Fprintf(w, `<a href="/tw/card-search/detail/%d/">y</a>`, pageNo*10+1)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/tw/card-search/list/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			page(w, 1)
			return
		}
		pageNo, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
		if pageNo < 1 || pageNo > totalPages {
			http.Redirect(w, r, "/tw/card-search/list/", http.StatusFound)
			return
		}
		page(w, pageNo)
	})
	return httptest.NewServer(mux)
}

func TestDiscover_Sequential(t *testing.T) {
	ts := listServer(t, 3)
	defer ts.Close()

	src := testSource(ts.URL)
	ids, totalPages, err := Discover(src, ratelimit.New(0), SearchParams{}, DiscoverOptions{
		StartPage:   1,
		ListWorkers: 1,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if totalPages != 3 {
		t.Errorf("totalPages = %d, want 3", totalPages)
	}
	want := []int64{10, 11, 20, 21, 30, 31}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestDiscover_ParallelPreservesPageOrder(t *testing.T) {
	ts := listServer(t, 8)
	defer ts.Close()

	src := testSource(ts.URL)
	ids, totalPages, err := Discover(src, ratelimit.New(0), SearchParams{}, DiscoverOptions{
		StartPage:   1,
		ListWorkers: 4,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if totalPages != 8 {
		t.Errorf("totalPages = %d, want 8", totalPages)
	}
	want := []int64{10, 11}
	for page := 2; page <= 8; page++ {
		want = append(want, int64(page*10), int64(page*10+1))
	}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestDiscover_PageRange(t *testing.T) {
	ts := listServer(t, 5)
	defer ts.Close()

	src := testSource(ts.URL)
	ids, _, err := Discover(src, ratelimit.New(0), SearchParams{}, DiscoverOptions{
		StartPage:   3,
		EndPage:     4,
		ListWorkers: 1,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	// Page 1 IDs are excluded when the range starts later.
	want := []int64{30, 31, 40, 41}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestStartSearch_PostsCriteria(t *testing.T) {
	var gotKeyword, gotCardType, gotRegulation string
	mux := http.NewServeMux()
	mux.HandleFunc("/tw/card-search/list/", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotKeyword = r.PostFormValue("keyword")
		gotCardType = r.PostFormValue("cardType")
		gotRegulation = r.PostFormValue("regulation")
		fmt.Fprint(w, `<p class="resultTotalPages">1</p>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	sess := NewSession(testSource(ts.URL), ratelimit.New(0))
	_, totalPages, err := sess.StartSearch(SearchParams{Keyword: "皮卡丘", CardType: "1", Regulation: "all"})
	if err != nil {
		t.Fatalf("StartSearch: %v", err)
	}
	if totalPages != 1 {
		t.Errorf("totalPages = %d, want 1", totalPages)
	}
	if gotKeyword != "皮卡丘" || gotCardType != "1" || gotRegulation != "all" {
		t.Errorf("form = %q/%q/%q", gotKeyword, gotCardType, gotRegulation)
	}
}
