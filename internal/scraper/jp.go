package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cardsync/internal/config"
)

// The JP site marks energy types with icon-<type> CSS classes instead of
// icon images. Class suffixes map onto the same energy codes the TW
// parser derives from filenames.
var jpIconToCode = map[string]string{
	"grass":    "grass",
	"fire":     "fire",
	"water":    "water",
	"electric": "lightning",
	"psychic":  "psychic",
	"fighting": "fighting",
	"dark":     "dark",
	"steel":    "steel",
	"fairy":    "fairy",
	"dragon":   "dragon",
	"none":     "colorless",
}

var (
	jpIconClassRE = regexp.MustCompile(`^icon-(\w+)$`)
	jpCollectorRE = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	jpHeightRE    = regexp.MustCompile(`高さ[：:]?\s*([0-9.]+)\s*m`)
	jpWeightRE    = regexp.MustCompile(`重さ[：:]?\s*([0-9.]+)\s*kg`)
)

var (
	jpEnergyKeywords  = []string{"エネルギー"}
	jpTrainerKeywords = []string{"トレーナーズ", "グッズ", "サポート", "スタジアム", "ポケモンのどうぐ"}
)

// energyCodeFromIconClass reads the energy code from an icon-<type>
// class token. Unmapped suffixes pass through unchanged.
func energyCodeFromIconClass(sel *goquery.Selection) string {
	classAttr, ok := sel.Attr("class")
	if !ok {
		return ""
	}
	for _, cls := range strings.Fields(classAttr) {
		if m := jpIconClassRE.FindStringSubmatch(cls); m != nil {
			if code, ok := jpIconToCode[m[1]]; ok {
				return code
			}
			return m[1]
		}
	}
	return ""
}

// ParseJPCardDetail parses a JP-locale detail page. The output schema is
// identical to the TW parser so both locales share one store.
func ParseJPCardDetail(src *config.Source, cardID int64, body string) (*Card, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("card %d: parse html: %w", cardID, err)
	}

	card := &Card{
		CardID:    cardID,
		SourceURL: src.DetailURL(cardID),
		FetchedAt: fetchedNow(),
	}

	h1 := doc.Find("h1.Heading1").First()
	if h1.Length() == 0 {
		return nil, fmt.Errorf("card %d: no card heading", cardID)
	}
	card.Name = joinedText(h1)
	if card.Name == "" {
		return nil, fmt.Errorf("card %d: empty card name", cardID)
	}

	if img := doc.Find("img.fit").First(); img.Length() > 0 {
		if imgSrc := img.AttrOr("src", ""); imgSrc != "" {
			abs := imgSrc
			if strings.HasPrefix(imgSrc, "/") {
				abs = strings.TrimSuffix(src.BaseURL, "/") + imgSrc
			}
			card.ImageURL = &abs
		}
	}

	// Expansion code and collector number share the subtext block.
	if subtext := doc.Find("div.subtext").First(); subtext.Length() > 0 {
		if regImg := subtext.Find("img.img-regulation").First(); regImg.Length() > 0 {
			card.ExpansionCode = optional(regImg.AttrOr("alt", ""))
		}
		text := spacedText(subtext)
		if card.ExpansionCode != nil {
			text = strings.TrimSpace(strings.ReplaceAll(text, *card.ExpansionCode, ""))
		}
		if m := jpCollectorRE.FindStringSubmatch(text); m != nil {
			cn := m[1] + "/" + m[2]
			card.CollectorNumber = &cn
		}
	}

	if section := doc.Find("section.SubSection").First(); section.Length() > 0 {
		card.ExpansionName = optional(section.Find("a.Link").First().Text())
	}

	// HP, element, evolve marker.
	topInfo := doc.Find("div.TopInfo").First()
	if topInfo.Length() > 0 {
		if hpText := strings.TrimSpace(topInfo.Find("span.hp-num").First().Text()); hpText != "" {
			if hp, err := strconv.ParseInt(hpText, 10, 64); err == nil {
				card.HP = &hp
			}
		}
		card.EvolveMarker = optional(topInfo.Find("span.type").First().Text())

		iconEl := topInfo.Find("span.hp-type + span[class*='icon-']").First()
		if iconEl.Length() == 0 {
			iconEl = topInfo.Find("span[class*='icon-']").First()
		}
		if code := energyCodeFromIconClass(iconEl); code != "" {
			card.ElementCode = &code
			// The JP page has no separate element label.
			card.Element = &code
		}
	}

	// Skills are flat h2 (section kind) / h4 (skill header) pairs; the
	// effect text is the next <p> sibling of each h4.
	rightBox := doc.Find("div.RightBox-inner").First()
	var kindTexts []string
	if rightBox.Length() > 0 {
		var currentKind *string
		idx := 0
		rightBox.Find("h2, h4").Each(func(_ int, el *goquery.Selection) {
			if goquery.NodeName(el) == "h2" {
				currentKind = optional(el.Text())
				if currentKind != nil {
					kindTexts = append(kindTexts, *currentKind)
				}
				return
			}

			skill := Skill{
				Idx:  idx,
				Kind: currentKind,
				Cost: []string{},
			}
			el.Find("span[class*='icon-']").Each(func(_ int, icon *goquery.Selection) {
				if code := energyCodeFromIconClass(icon); code != "" {
					skill.Cost = append(skill.Cost, code)
				}
			})
			skill.Damage = optional(el.Find("span.f_right").First().Text())

			nameSel := el.Clone()
			nameSel.Find("span[class*='icon-'], span.f_right").Remove()
			skill.Name = optional(joinedText(nameSel))

			if effectEl := el.NextAllFiltered("p").First(); effectEl.Length() > 0 {
				effect := textLines(effectEl)
				skill.Effect = optional(effect)
				if norm := NormalizeText(effect); norm != "" {
					skill.EffectTextNorm = &norm
				}
			}

			card.Skills = append(card.Skills, skill)
			idx++
		})

		// Weakness / resistance / retreat live in the second row of the
		// info table.
		if table := rightBox.Find("table").First(); table.Length() > 0 {
			rows := table.Find("tr")
			if rows.Length() >= 2 {
				tds := rows.Eq(1).Find("td")
				if tds.Length() >= 1 {
					card.WeaknessCode, card.WeaknessValue = parseJPTypedCell(tds.Eq(0))
				}
				if tds.Length() >= 2 {
					card.ResistanceCode, card.ResistanceValue = parseJPTypedCell(tds.Eq(1))
				}
				if tds.Length() >= 3 {
					n := int64(tds.Eq(2).Find("span[class*='icon-']").Length())
					card.RetreatCost = &n
				}
			}
		}
	}

	// Pokedex extras.
	if cardDiv := doc.Find("div.card").First(); cardDiv.Length() > 0 {
		if m := pokedexNoRE.FindStringSubmatch(cardDiv.Find("h4").First().Text()); m != nil {
			if no, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				card.PokedexNo = &no
			}
		}
		ps := cardDiv.Find("p")
		ps.Each(func(_ int, p *goquery.Selection) {
			text := strings.TrimSpace(p.Text())
			if m := jpHeightRE.FindStringSubmatch(text); m != nil {
				if h, err := strconv.ParseFloat(m[1], 64); err == nil {
					card.HeightM = &h
				}
			}
			if m := jpWeightRE.FindStringSubmatch(text); m != nil {
				if w, err := strconv.ParseFloat(m[1], 64); err == nil {
					card.WeightKg = &w
				}
			}
		})
		if ps.Length() >= 2 {
			desc := strings.TrimSpace(ps.Last().Text())
			if desc != "" && !strings.Contains(desc, "高さ") && !strings.Contains(desc, "重さ") {
				card.Description = &desc
			}
		}
	}

	card.Illustrator = optional(doc.Find("div.author a").First().Text())

	// JP pages carry no regulation letter; the expansion code implies the
	// era instead.
	card.CardType = classify(topInfo.Length() > 0 && card.HP != nil, kindTexts, jpEnergyKeywords, jpTrainerKeywords)
	return card, nil
}

// parseJPTypedCell mirrors parseTypedCell for the JP table markup, where
// the energy code comes from an icon class rather than an image.
func parseJPTypedCell(td *goquery.Selection) (code, value *string) {
	if icon := td.Find("span[class*='icon-']").First(); icon.Length() > 0 {
		code = optional(energyCodeFromIconClass(icon))
	}
	txt := strings.TrimSpace(td.Text())
	txt = strings.TrimSpace(strings.ReplaceAll(txt, "--", ""))
	if txt == "" {
		return code, nil
	}
	return code, &txt
}
