package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cardsync/internal/config"
)

var (
	pokedexNoRE = regexp.MustCompile(`No\.(\d+)`)
	numberRE    = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

// Locale-specific keywords used to classify non-pokemon cards from their
// skill-section headers. No keyword match means "unknown", which is a
// valid first-class card type.
var (
	twEnergyKeywords  = []string{"能量"}
	twTrainerKeywords = []string{"訓練家", "物品", "支援者", "場地", "寶可夢道具"}
)

// FetchDetail GETs a card's detail page with redirects followed. When the
// final URL lands back on the list endpoint the card doesn't exist;
// notFound is reported instead of an error. Both paths are compared with
// trailing slashes trimmed, since the upstream redirect target varies.
func (s *Session) FetchDetail(cardID int64) (body string, notFound bool, err error) {
	body, finalURL, err := s.get(s.src.DetailURL(cardID), nil)
	if err != nil {
		return "", false, err
	}
	if redirectedToList(finalURL, s.src.ListPath) {
		return "", true, nil
	}
	return body, false, nil
}

func redirectedToList(finalURL *url.URL, listPath string) bool {
	if finalURL == nil {
		return false
	}
	final := strings.TrimSuffix(finalURL.Path, "/")
	list := strings.TrimSuffix(listPath, "/")
	return strings.HasSuffix(final, list)
}

func fetchedNow() string {
	return time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseCardDetail parses a TW-locale detail page into a normalized card
// record with its ordered skills. A page with no card heading is a parse
// failure.
func ParseCardDetail(src *config.Source, cardID int64, body string) (*Card, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("card %d: parse html: %w", cardID, err)
	}

	card := &Card{
		CardID:    cardID,
		SourceURL: src.DetailURL(cardID),
		FetchedAt: fetchedNow(),
	}

	// Header: name with the evolve marker split out.
	h1 := doc.Find("h1.pageHeader.cardDetail").First()
	if h1.Length() == 0 {
		return nil, fmt.Errorf("card %d: no card heading", cardID)
	}
	card.EvolveMarker = optional(spacedText(h1.Find("span.evolveMarker")))
	nameSel := h1.Clone()
	nameSel.Find("span.evolveMarker").Remove()
	card.Name = joinedText(nameSel)
	if card.Name == "" {
		return nil, fmt.Errorf("card %d: empty card name", cardID)
	}

	if img := doc.Find("section.imageColumn img").First(); img.Length() > 0 {
		card.ImageURL = optional(img.AttrOr("src", ""))
	}

	// Main info block; its presence marks the card as a pokemon.
	mainInfo := doc.Find("p.mainInfomation").First()
	if mainInfo.Length() > 0 {
		if hpText := strings.TrimSpace(mainInfo.Find("span.number").First().Text()); hpText != "" {
			if hp, err := strconv.ParseInt(hpText, 10, 64); err == nil {
				card.HP = &hp
			}
		}
		card.Element = optional(mainInfo.Find("span.type").First().Text())
		if img := mainInfo.Find("img").First(); img.Length() > 0 {
			card.ElementCode = optional(energyCodeFromSrc(img.AttrOr("src", "")))
		}
	}

	// Skills: every section contributes entries in document order; idx is
	// dense across sections.
	var headerTexts []string
	idx := 0
	doc.Find("div.skillInformation").Each(func(_ int, block *goquery.Selection) {
		kind := optional(spacedText(block.Find("h3.commonHeader").First()))
		if kind != nil {
			headerTexts = append(headerTexts, *kind)
		}
		block.Find("div.skill").Each(func(_ int, sk *goquery.Selection) {
			effect := textLines(sk.Find("p.skillEffect").First())
			skill := Skill{
				Idx:    idx,
				Kind:   kind,
				Name:   optional(spacedText(sk.Find("span.skillName").First())),
				Cost:   []string{},
				Damage: optional(spacedText(sk.Find("span.skillDamage").First())),
				Effect: optional(effect),
			}
			if norm := NormalizeText(effect); norm != "" {
				skill.EffectTextNorm = &norm
			}
			sk.Find("span.skillCost img").Each(func(_ int, img *goquery.Selection) {
				if code := energyCodeFromSrc(img.AttrOr("src", "")); code != "" {
					skill.Cost = append(skill.Cost, code)
				}
			})
			card.Skills = append(card.Skills, skill)
			idx++
		})
	})

	// Weakness / resistance / retreat.
	if sub := doc.Find("div.subInformation").First(); sub.Length() > 0 {
		card.WeaknessCode, card.WeaknessValue = parseTypedCell(sub.Find("td.weakpoint").First())
		card.ResistanceCode, card.ResistanceValue = parseTypedCell(sub.Find("td.resist").First())
		if escape := sub.Find("td.escape"); escape.Length() > 0 {
			n := int64(escape.Find("img").Length())
			card.RetreatCost = &n
		}
	}

	// Expansion block.
	if exp := doc.Find("section.expansionColumn").First(); exp.Length() > 0 {
		if sym := exp.Find("span.expansionSymbol img").First(); sym.Length() > 0 {
			card.ExpansionSymbolURL = optional(sym.AttrOr("src", ""))
		}
		card.RegulationMark = optional(spacedText(exp.Find("span.alpha").First()))
		card.CollectorNumber = optional(spacedText(exp.Find("span.collectorNumber").First()))
	}

	// Expansion link carries the code in its query string.
	if link := doc.Find("section.expansionLinkColumn a[href]").First(); link.Length() > 0 {
		card.ExpansionName = optional(spacedText(link))
		if href, ok := link.Attr("href"); ok {
			if u, err := url.Parse(href); err == nil {
				if code := u.Query().Get("expansionCodes"); code != "" {
					card.ExpansionCode = &code
				}
			}
		}
	}

	card.Illustrator = optional(spacedText(doc.Find("div.illustrator a").First()))

	// Pokemon-only extras.
	if extra := doc.Find("div.extraInformation").First(); extra.Length() > 0 {
		if m := pokedexNoRE.FindStringSubmatch(spacedText(extra.Find("h3").First())); m != nil {
			if no, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				card.PokedexNo = &no
			}
		}
		values := extra.Find("p.size span.value")
		if values.Length() >= 1 {
			card.HeightM = parseFirstNumber(spacedText(values.Eq(0)))
		}
		if values.Length() >= 2 {
			card.WeightKg = parseFirstNumber(spacedText(values.Eq(1)))
		}
		card.Description = optional(textLines(extra.Find("p.discription").First()))
	}

	card.CardType = classify(mainInfo.Length() > 0, headerTexts, twEnergyKeywords, twTrainerKeywords)
	return card, nil
}

// parseTypedCell reads a weakness/resistance table cell: the energy code
// comes from the icon image, the value is the remaining text with the
// code stripped, and the "--" sentinel means no value.
func parseTypedCell(td *goquery.Selection) (code, value *string) {
	if td.Length() == 0 {
		return nil, nil
	}
	if img := td.Find("img").First(); img.Length() > 0 {
		code = optional(energyCodeFromSrc(img.AttrOr("src", "")))
	}
	txt := strings.TrimSpace(spaceRunRE.ReplaceAllString(spacedText(td), " "))
	if code != nil {
		txt = strings.TrimSpace(strings.ReplaceAll(txt, *code, ""))
	}
	if txt == "" || txt == "--" {
		return code, nil
	}
	return code, &txt
}

func parseFirstNumber(text string) *float64 {
	m := numberRE.FindString(text)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}

// classify decides the card type: a main-info block means pokemon;
// otherwise the concatenated section headers are checked for the
// locale's energy and trainer keywords.
func classify(hasMainInfo bool, headers, energyKeywords, trainerKeywords []string) string {
	if hasMainInfo {
		return "pokemon"
	}
	headerText := strings.Join(headers, " ")
	for _, k := range energyKeywords {
		if strings.Contains(headerText, k) {
			return "energy"
		}
	}
	for _, k := range trainerKeywords {
		if strings.Contains(headerText, k) {
			return "trainer"
		}
	}
	return "unknown"
}
