// Package pipeline composes discovery, detail fetching, parsing, and
// persistence into the sync run.
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cardsync/internal/config"
	"cardsync/internal/db"
	"cardsync/internal/logger"
	"cardsync/internal/ratelimit"
	"cardsync/internal/scraper"
)

// Options configure one sync run.
type Options struct {
	DBPath string
	Source *config.Source
	Locale string // "tw" (default) or "jp"; jp supports CardID only

	// Single-card override; when > 0, discovery is skipped.
	CardID int64

	Params      scraper.SearchParams
	StartPage   int
	EndPage     int
	Limit       int // 0 means no limit
	Workers     int
	ListWorkers int
	Delay       time.Duration

	// Upper-cased regulation marks; nil means "accept everything".
	AllowedMarks map[string]bool

	SkipExisting bool
}

// Stats is the run outcome: cards stored, cards dropped by the
// regulation filter, and cards that failed to fetch or parse.
type Stats struct {
	OK      int
	Skipped int
	Fail    int
}

type fetchResult struct {
	cardID   int64
	card     *scraper.Card
	notFound bool
	err      error
}

// Run executes the pipeline: open the store, discover (or take the
// single-card override), filter already-present IDs, fan detail work out
// over a bounded worker pool, and upsert results as they complete. A
// single card's failure never aborts the run.
func Run(opts Options) (Stats, error) {
	var stats Stats

	store, err := db.Open(opts.DBPath)
	if err != nil {
		return stats, err
	}
	defer store.Close()

	src := opts.Source
	if src == nil {
		src = config.Default()
	}
	limiter := ratelimit.New(opts.Delay)

	var cardIDs []int64
	if opts.CardID > 0 {
		cardIDs = []int64{opts.CardID}
	} else {
		if opts.Locale == "jp" {
			return stats, fmt.Errorf("jp locale supports --card-id only")
		}
		ids, totalPages, err := scraper.Discover(src, limiter, opts.Params, scraper.DiscoverOptions{
			StartPage:   opts.StartPage,
			EndPage:     opts.EndPage,
			ListWorkers: opts.ListWorkers,
		})
		if err != nil {
			return stats, err
		}
		cardIDs = ids
		if totalPages > 0 {
			logger.Info("sync", fmt.Sprintf("total pages: %d", totalPages))
		}
	}

	existing := map[int64]bool{}
	if opts.SkipExisting {
		existing, err = store.ExistingCardIDs()
		if err != nil {
			return stats, err
		}
	}

	toFetch := make([]int64, 0, len(cardIDs))
	for _, id := range cardIDs {
		if !existing[id] {
			toFetch = append(toFetch, id)
		}
	}
	if opts.Limit > 0 && len(toFetch) > opts.Limit {
		toFetch = toFetch[:opts.Limit]
	}

	logger.Info("sync", fmt.Sprintf("discovered=%d existing=%d to_fetch=%d",
		len(cardIDs), len(existing), len(toFetch)))
	if len(toFetch) == 0 {
		return stats, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int64)
	results := make(chan fetchResult)

	// Each worker owns one session for the whole run, reusing its
	// connection pool. Parsing happens on the worker; upserts happen on
	// the consumer below, keeping the store single-writer.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := scraper.NewSession(src, limiter)
			for id := range jobs {
				results <- fetchOne(sess, opts.Locale, id)
			}
		}()
	}
	go func() {
		for _, id := range toFetch {
			jobs <- id
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		switch {
		case res.err != nil:
			stats.Fail++
			logger.Error("sync", fmt.Sprintf("card %d: %v", res.cardID, res.err))
		case res.notFound:
			stats.Fail++
			logger.Warn("sync", fmt.Sprintf("card %d: redirected to list (not found)", res.cardID))
		default:
			if opts.AllowedMarks != nil {
				mark := ""
				if res.card.RegulationMark != nil {
					mark = strings.ToUpper(strings.TrimSpace(*res.card.RegulationMark))
				}
				if !opts.AllowedMarks[mark] {
					stats.Skipped++
					continue
				}
			}
			if err := store.UpsertCard(res.card); err != nil {
				stats.Fail++
				logger.Error("sync", fmt.Sprintf("card %d: %v", res.cardID, err))
				continue
			}
			stats.OK++
			if stats.OK%50 == 0 {
				logger.Info("sync", fmt.Sprintf("stored %d/%d", stats.OK, len(toFetch)))
			}
		}
	}

	logger.Section("sync summary")
	logger.Stats("ok", stats.OK)
	logger.Stats("skipped", stats.Skipped)
	logger.Stats("fail", stats.Fail)
	if stats.Fail > 0 {
		logger.Warn("sync", fmt.Sprintf("done with failures, db=%s", opts.DBPath))
	} else {
		logger.Success("sync", fmt.Sprintf("done, db=%s", opts.DBPath))
	}
	return stats, nil
}

func fetchOne(sess *scraper.Session, locale string, cardID int64) fetchResult {
	body, notFound, err := sess.FetchDetail(cardID)
	if err != nil {
		return fetchResult{cardID: cardID, err: err}
	}
	if notFound {
		return fetchResult{cardID: cardID, notFound: true}
	}

	var card *scraper.Card
	if locale == "jp" {
		card, err = scraper.ParseJPCardDetail(sess.Source(), cardID, body)
	} else {
		card, err = scraper.ParseCardDetail(sess.Source(), cardID, body)
	}
	if err != nil {
		return fetchResult{cardID: cardID, err: err}
	}
	return fetchResult{cardID: cardID, card: card}
}
