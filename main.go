package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"cardsync/internal/api"
	"cardsync/internal/config"
	"cardsync/internal/db"
	"cardsync/internal/logger"
	"cardsync/internal/pipeline"
	"cardsync/internal/scraper"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "cardsync",
		Usage:   "local trading-card database: scrape, store, query",
		Version: version,
		Before: func(c *cli.Context) error {
			logger.Banner(version)
			return nil
		},
		Commands: []*cli.Command{
			initDBCmd(),
			syncCmd(),
			copyCardsCmd(),
			queryCmd(),
			showCmd(),
			normalizeEffectsCmd(),
			serveCmd(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Error("cardsync", err.Error())
		os.Exit(1)
	}
}

func dbFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "db", Value: "cards.sqlite", Usage: "SQLite file path"}
}

func initDBCmd() *cli.Command {
	return &cli.Command{
		Name:  "init-db",
		Usage: "create/initialize the SQLite schema",
		Flags: []cli.Flag{dbFlag()},
		Action: func(c *cli.Context) error {
			store, err := db.Open(c.String("db"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()
			logger.Success("db", fmt.Sprintf("initialized %s", c.String("db")))
			return nil
		},
	}
}

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "discover cards from the official search and store them",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.Int64Flag{Name: "card-id", Usage: "fetch a single card by detail ID"},
			&cli.StringFlag{Name: "locale", Value: "tw", Usage: "site locale: tw|jp (jp needs --card-id)"},
			&cli.StringFlag{Name: "keyword", Usage: "search keyword"},
			&cli.StringFlag{Name: "card-type", Value: "all", Usage: "all|pokemon|trainer|energy"},
			&cli.StringFlag{Name: "regulation", Value: "all", Usage: "1|2|3|all"},
			&cli.StringSliceFlag{Name: "regulation-mark", Usage: "only store these marks (e.g. H,I; repeatable)"},
			&cli.IntFlag{Name: "start-page", Value: 1, Usage: "first list page"},
			&cli.IntFlag{Name: "end-page", Usage: "last list page (default: through the final page)"},
			&cli.IntFlag{Name: "limit", Usage: "max cards to fetch"},
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "detail fetch parallelism"},
			&cli.IntFlag{Name: "list-workers", Value: 8, Usage: "list page parallelism"},
			&cli.Float64Flag{Name: "delay", Value: 0.1, Usage: "global seconds between requests"},
			&cli.BoolFlag{Name: "skip-existing", Value: true, Usage: "skip card IDs already stored"},
			&cli.StringFlag{Name: "config", Usage: "YAML source config overriding site defaults"},
		},
		Action: func(c *cli.Context) error {
			locale := c.String("locale")
			base := config.Default()
			if locale == "jp" {
				base = config.DefaultJP()
			}
			src := base
			if path := c.String("config"); path != "" {
				var err error
				src, err = config.Load(path, base)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}

			delay, workers, listWorkers := resolveSyncTuning(c, src)
			opts := pipeline.Options{
				DBPath: c.String("db"),
				Source: src,
				Locale: locale,
				CardID: c.Int64("card-id"),
				Params: scraper.SearchParams{
					Keyword:    c.String("keyword"),
					CardType:   cardTypeToken(c.String("card-type")),
					Regulation: c.String("regulation"),
				},
				StartPage:    c.Int("start-page"),
				EndPage:      c.Int("end-page"),
				Limit:        c.Int("limit"),
				Workers:      workers,
				ListWorkers:  listWorkers,
				Delay:        delay,
				AllowedMarks: parseMarks(c.StringSlice("regulation-mark")),
				SkipExisting: c.Bool("skip-existing"),
			}

			stats, err := pipeline.Run(opts)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if stats.Fail > 0 {
				return cli.Exit("", 2)
			}
			return nil
		},
	}
}

func copyCardsCmd() *cli.Command {
	return &cli.Command{
		Name:  "copy-cards",
		Usage: "copy cards between stores, optionally by regulation mark",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "src", Required: true, Usage: "source SQLite file"},
			&cli.StringFlag{Name: "dst", Required: true, Usage: "destination SQLite file"},
			&cli.StringSliceFlag{Name: "regulation-mark", Usage: "only copy these marks (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			srcPath := c.String("src")
			if _, err := os.Stat(srcPath); err != nil {
				return cli.Exit(fmt.Sprintf("source DB not found: %s", srcPath), 1)
			}
			src, err := db.Open(srcPath)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer src.Close()
			dst, err := db.Open(c.String("dst"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer dst.Close()

			marks := parseMarks(c.StringSlice("regulation-mark"))
			copied, err := db.CopyCards(src, dst, marks)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			logger.Success("copy", fmt.Sprintf("copied %d cards from %s to %s", copied, srcPath, c.String("dst")))
			return nil
		},
	}
}

func queryCmd() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "search stored cards by name substring",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.StringFlag{Name: "name", Required: true, Usage: "name fragment"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "max rows"},
		},
		Action: func(c *cli.Context) error {
			store, err := db.Open(c.String("db"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()

			results, err := store.QueryByName(strings.TrimSpace(c.String("name")), c.Int("limit"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			for _, r := range results {
				fmt.Printf("%d\t%s\t%s\t%s\t%s\n", r.CardID, r.Name, r.ExpansionCode, r.CollectorNumber, r.CardType)
			}
			return nil
		},
	}
}

func showCmd() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "print one stored card",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.Int64Flag{Name: "card-id", Required: true, Usage: "cards.card_id"},
			&cli.BoolFlag{Name: "json", Usage: "output JSON"},
		},
		Action: func(c *cli.Context) error {
			store, err := db.Open(c.String("db"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()

			cardID := c.Int64("card-id")
			card, err := store.GetCard(cardID)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if card == nil {
				return cli.Exit(fmt.Sprintf("card not found: %d", cardID), 2)
			}
			skills, err := store.GetSkills(cardID)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			card.Skills = skills

			if c.Bool("json") {
				out, err := json.MarshalIndent(card, "", "  ")
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				fmt.Println(string(out))
				return nil
			}
			printCard(card)
			return nil
		},
	}
}

func normalizeEffectsCmd() *cli.Command {
	return &cli.Command{
		Name:  "normalize-effects",
		Usage: "re-normalize stored effect text and split it into instructions",
		Flags: []cli.Flag{dbFlag()},
		Action: func(c *cli.Context) error {
			store, err := db.Open(c.String("db"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()

			rows, err := store.SkillsWithEffect()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			updated := 0
			for _, r := range rows {
				norm := scraper.NormalizeText(r.Effect)
				instructions := scraper.SplitInstructions(norm)
				if err := store.UpdateSkillNormalization(r.SkillID, norm, instructions); err != nil {
					return cli.Exit(err.Error(), 1)
				}
				updated++
			}
			logger.Success("effects", fmt.Sprintf("normalized %d skills", updated))
			return nil
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the local read-only browse server",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "listen address"},
			&cli.IntFlag{Name: "port", Value: 8000, Usage: "listen port"},
		},
		Action: func(c *cli.Context) error {
			store, err := db.Open(c.String("db"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()
			srv := api.NewServer(store)
			if err := srv.ListenAndServe(c.String("host"), c.Int("port")); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// resolveSyncTuning picks pacing and pool sizes for a sync run: a flag
// given on the command line wins, otherwise the source config value
// applies.
func resolveSyncTuning(c *cli.Context, src *config.Source) (delay time.Duration, workers, listWorkers int) {
	delay = time.Duration(c.Float64("delay") * float64(time.Second))
	if !c.IsSet("delay") {
		delay = src.Delay()
	}
	workers = c.Int("workers")
	if !c.IsSet("workers") && src.Workers > 0 {
		workers = src.Workers
	}
	listWorkers = c.Int("list-workers")
	if !c.IsSet("list-workers") && src.ListWorkers > 0 {
		listWorkers = src.ListWorkers
	}
	return delay, workers, listWorkers
}

// cardTypeToken maps the human card-type flag onto the site's form token.
func cardTypeToken(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "all":
		return "all"
	case "pokemon":
		return "1"
	case "trainer", "trainers":
		return "2"
	case "energy":
		return "3"
	default:
		return v
	}
}

// parseMarks collects regulation marks from repeated flags and
// comma/space separated values, upper-cased. Nil when none were given.
func parseMarks(items []string) map[string]bool {
	marks := make(map[string]bool)
	for _, item := range items {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool {
			return r == ',' || r == ' '
		}) {
			if part = strings.TrimSpace(part); part != "" {
				marks[strings.ToUpper(part)] = true
			}
		}
	}
	if len(marks) == 0 {
		return nil
	}
	return marks
}

func strOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

// printCard renders the plain-text card view.
func printCard(card *scraper.Card) {
	fmt.Printf("%s  (card_id=%d)\n", card.Name, card.CardID)

	var bits []string
	if card.CardType != "" {
		bits = append(bits, card.CardType)
	}
	if card.HP != nil {
		bits = append(bits, fmt.Sprintf("HP %d", *card.HP))
	}
	if card.ElementCode != nil || card.Element != nil {
		bits = append(bits, strings.TrimSpace(fmtEnergy(card.ElementCode)+strOr(card.Element, "")))
	}
	if card.EvolveMarker != nil {
		bits = append(bits, *card.EvolveMarker)
	}
	if len(bits) > 0 {
		fmt.Println(" - " + strings.Join(bits, " / "))
	}

	line := func(label string, value string) {
		value = strings.TrimSpace(value)
		if value == "" || value == "--" {
			return
		}
		fmt.Printf("%s: %s\n", label, value)
	}

	line("Expansion", strings.TrimSpace(strOr(card.ExpansionCode, "")+" "+strOr(card.ExpansionName, "")))
	line("Number", strOr(card.CollectorNumber, ""))
	line("Regulation", strOr(card.RegulationMark, ""))
	line("Illustrator", strOr(card.Illustrator, ""))
	line("Image", strOr(card.ImageURL, ""))
	line("Source", card.SourceURL)
	line("Fetched", card.FetchedAt)

	if card.WeaknessValue != nil {
		line("Weakness", strings.TrimSpace(fmtEnergy(card.WeaknessCode)+" "+*card.WeaknessValue))
	}
	if card.ResistanceValue != nil {
		line("Resistance", strings.TrimSpace(fmtEnergy(card.ResistanceCode)+" "+*card.ResistanceValue))
	}
	if card.RetreatCost != nil {
		line("Retreat", fmt.Sprint(*card.RetreatCost))
	}
	if card.PokedexNo != nil {
		line("No.", fmt.Sprintf("No.%d", *card.PokedexNo))
	}
	if card.HeightM != nil {
		line("Height", fmt.Sprintf("%v m", *card.HeightM))
	}
	if card.WeightKg != nil {
		line("Weight", fmt.Sprintf("%v kg", *card.WeightKg))
	}
	if card.Description != nil {
		fmt.Println("Description:")
		fmt.Println(*card.Description)
	}

	if len(card.Skills) > 0 {
		fmt.Println("\nSkills:")
		for _, s := range card.Skills {
			var cost strings.Builder
			for _, code := range s.Cost {
				cost.WriteString("[" + code + "]")
			}
			left := strings.TrimSpace(strOr(s.Kind, "") + " " + strOr(s.Name, ""))
			right := strings.TrimSpace(cost.String() + " " + strOr(s.Damage, ""))
			fmt.Printf("- %s\n", left)
			if right != "" {
				fmt.Printf("  %s\n", right)
			}
			if s.Effect != nil {
				for _, l := range strings.Split(*s.Effect, "\n") {
					fmt.Printf("  %s\n", l)
				}
			}
		}
	}
}

func fmtEnergy(code *string) string {
	if code == nil {
		return ""
	}
	return "[" + *code + "]"
}
