package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cardsync/internal/scraper"
)

// UpsertCard writes one parsed card and its full skill list in a single
// transaction: insert-or-replace the card row, delete the old skills,
// re-insert the new ones in idx order. Readers see either the old or the
// new skill set, never a mix.
func (d *DB) UpsertCard(card *scraper.Card) error {
	raw, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("card %d: marshal raw: %w", card.CardID, err)
	}
	fetchedAt := card.FetchedAt
	if fetchedAt == "" {
		fetchedAt = time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("card %d: begin: %w", card.CardID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cards(
			card_id, name, evolve_marker, card_type, hp, element_code, element,
			regulation_mark, collector_number, expansion_code, expansion_name,
			expansion_symbol_url, illustrator, image_url,
			weakness_code, weakness_value, resistance_code, resistance_value, retreat_cost,
			pokedex_no, height_m, weight_kg, description,
			source_url, fetched_at, raw_json
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(card_id) DO UPDATE SET
			name=excluded.name,
			evolve_marker=excluded.evolve_marker,
			card_type=excluded.card_type,
			hp=excluded.hp,
			element_code=excluded.element_code,
			element=excluded.element,
			regulation_mark=excluded.regulation_mark,
			collector_number=excluded.collector_number,
			expansion_code=excluded.expansion_code,
			expansion_name=excluded.expansion_name,
			expansion_symbol_url=excluded.expansion_symbol_url,
			illustrator=excluded.illustrator,
			image_url=excluded.image_url,
			weakness_code=excluded.weakness_code,
			weakness_value=excluded.weakness_value,
			resistance_code=excluded.resistance_code,
			resistance_value=excluded.resistance_value,
			retreat_cost=excluded.retreat_cost,
			pokedex_no=excluded.pokedex_no,
			height_m=excluded.height_m,
			weight_kg=excluded.weight_kg,
			description=excluded.description,
			source_url=excluded.source_url,
			fetched_at=excluded.fetched_at,
			raw_json=excluded.raw_json
	`,
		card.CardID, card.Name, card.EvolveMarker, card.CardType, card.HP,
		card.ElementCode, card.Element, card.RegulationMark, card.CollectorNumber,
		card.ExpansionCode, card.ExpansionName, card.ExpansionSymbolURL,
		card.Illustrator, card.ImageURL,
		card.WeaknessCode, card.WeaknessValue, card.ResistanceCode, card.ResistanceValue,
		card.RetreatCost, card.PokedexNo, card.HeightM, card.WeightKg, card.Description,
		card.SourceURL, fetchedAt, string(raw),
	)
	if err != nil {
		return fmt.Errorf("card %d: upsert: %w", card.CardID, err)
	}

	if _, err := tx.Exec("DELETE FROM skills WHERE card_id = ?", card.CardID); err != nil {
		return fmt.Errorf("card %d: clear skills: %w", card.CardID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO skills(card_id, idx, kind, name, cost_json, damage, effect, effect_text_norm, instructions_json)
		VALUES (?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		return fmt.Errorf("card %d: prepare skills: %w", card.CardID, err)
	}
	defer stmt.Close()

	for _, s := range card.Skills {
		costJSON, err := marshalCost(s.Cost)
		if err != nil {
			return fmt.Errorf("card %d skill %d: marshal cost: %w", card.CardID, s.Idx, err)
		}
		var instrJSON *string
		if s.Instructions != nil {
			b, err := json.Marshal(s.Instructions)
			if err != nil {
				return fmt.Errorf("card %d skill %d: marshal instructions: %w", card.CardID, s.Idx, err)
			}
			j := string(b)
			instrJSON = &j
		}
		if _, err := stmt.Exec(card.CardID, s.Idx, s.Kind, s.Name, costJSON, s.Damage, s.Effect, s.EffectTextNorm, instrJSON); err != nil {
			return fmt.Errorf("card %d skill %d: insert: %w", card.CardID, s.Idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("card %d: commit: %w", card.CardID, err)
	}
	return nil
}

// marshalCost serializes the ordered cost list; a nil list is stored as
// the empty array so order and emptiness round-trip.
func marshalCost(cost []string) (string, error) {
	if cost == nil {
		cost = []string{}
	}
	b, err := json.Marshal(cost)
	return string(b), err
}

const cardColumns = `card_id, name, evolve_marker, card_type, hp, element_code, element,
	regulation_mark, collector_number, expansion_code, expansion_name,
	expansion_symbol_url, illustrator, image_url,
	weakness_code, weakness_value, resistance_code, resistance_value, retreat_cost,
	pokedex_no, height_m, weight_kg, description, source_url, fetched_at`

func scanCard(row interface{ Scan(...any) error }) (*scraper.Card, error) {
	var c scraper.Card
	var evolveMarker, cardType, elementCode, element sql.NullString
	var regMark, collector, expCode, expName, expSym, illus, imageURL sql.NullString
	var weakCode, weakValue, resistCode, resistValue, description sql.NullString
	var hp, retreat, pokedex sql.NullInt64
	var heightM, weightKg sql.NullFloat64

	err := row.Scan(
		&c.CardID, &c.Name, &evolveMarker, &cardType, &hp, &elementCode, &element,
		&regMark, &collector, &expCode, &expName, &expSym, &illus, &imageURL,
		&weakCode, &weakValue, &resistCode, &resistValue, &retreat,
		&pokedex, &heightM, &weightKg, &description, &c.SourceURL, &c.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	c.EvolveMarker = nullStr(evolveMarker)
	if cardType.Valid {
		c.CardType = cardType.String
	}
	c.HP = nullInt(hp)
	c.ElementCode = nullStr(elementCode)
	c.Element = nullStr(element)
	c.RegulationMark = nullStr(regMark)
	c.CollectorNumber = nullStr(collector)
	c.ExpansionCode = nullStr(expCode)
	c.ExpansionName = nullStr(expName)
	c.ExpansionSymbolURL = nullStr(expSym)
	c.Illustrator = nullStr(illus)
	c.ImageURL = nullStr(imageURL)
	c.WeaknessCode = nullStr(weakCode)
	c.WeaknessValue = nullStr(weakValue)
	c.ResistanceCode = nullStr(resistCode)
	c.ResistanceValue = nullStr(resistValue)
	c.RetreatCost = nullInt(retreat)
	c.PokedexNo = nullInt(pokedex)
	c.HeightM = nullFloat(heightM)
	c.WeightKg = nullFloat(weightKg)
	c.Description = nullStr(description)
	return &c, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// GetCard loads one card (without skills). Returns nil when absent.
func (d *DB) GetCard(cardID int64) (*scraper.Card, error) {
	row := d.sql.QueryRow("SELECT "+cardColumns+" FROM cards WHERE card_id = ?", cardID)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get card %d: %w", cardID, err)
	}
	return c, nil
}

// GetSkills loads a card's skills in idx order.
func (d *DB) GetSkills(cardID int64) ([]scraper.Skill, error) {
	rows, err := d.sql.Query(`
		SELECT idx, kind, name, cost_json, damage, effect, effect_text_norm, instructions_json
		FROM skills WHERE card_id = ? ORDER BY idx ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("get skills %d: %w", cardID, err)
	}
	defer rows.Close()

	var skills []scraper.Skill
	for rows.Next() {
		var s scraper.Skill
		var kind, name, costJSON, damage, effect, norm, instrJSON sql.NullString
		if err := rows.Scan(&s.Idx, &kind, &name, &costJSON, &damage, &effect, &norm, &instrJSON); err != nil {
			return nil, err
		}
		s.Kind = nullStr(kind)
		s.Name = nullStr(name)
		s.Damage = nullStr(damage)
		s.Effect = nullStr(effect)
		s.EffectTextNorm = nullStr(norm)
		s.Cost = []string{}
		if costJSON.Valid && costJSON.String != "" {
			if err := json.Unmarshal([]byte(costJSON.String), &s.Cost); err != nil {
				return nil, fmt.Errorf("get skills %d: cost_json: %w", cardID, err)
			}
		}
		if instrJSON.Valid && instrJSON.String != "" {
			if err := json.Unmarshal([]byte(instrJSON.String), &s.Instructions); err != nil {
				return nil, fmt.Errorf("get skills %d: instructions_json: %w", cardID, err)
			}
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// CardSummary is one row of a name search.
type CardSummary struct {
	CardID          int64  `json:"card_id"`
	Name            string `json:"name"`
	ExpansionCode   string `json:"expansion_code"`
	CollectorNumber string `json:"collector_number"`
	CardType        string `json:"card_type"`
}

// QueryByName searches cards by name substring, newest card ID first.
func (d *DB) QueryByName(name string, limit int) ([]CardSummary, error) {
	rows, err := d.sql.Query(`
		SELECT card_id, name, expansion_code, collector_number, card_type
		FROM cards
		WHERE name LIKE ?
		ORDER BY card_id DESC
		LIMIT ?
	`, "%"+name+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("query by name: %w", err)
	}
	defer rows.Close()

	var out []CardSummary
	for rows.Next() {
		var r CardSummary
		var expCode, collector, cardType sql.NullString
		if err := rows.Scan(&r.CardID, &r.Name, &expCode, &collector, &cardType); err != nil {
			return nil, err
		}
		r.ExpansionCode = expCode.String
		r.CollectorNumber = collector.String
		r.CardType = cardType.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// CopyCards copies cards (and their skills) from src to dst, optionally
// restricted to a set of regulation marks compared case-insensitively.
// Purely additive on the destination. Returns the number of cards copied.
func CopyCards(src, dst *DB, marks map[string]bool) (int, error) {
	query := "SELECT card_id FROM cards"
	var args []any
	if len(marks) > 0 {
		placeholders := make([]string, 0, len(marks))
		for m := range marks {
			placeholders = append(placeholders, "?")
			args = append(args, strings.ToUpper(m))
		}
		query += " WHERE UPPER(regulation_mark) IN (" + strings.Join(placeholders, ",") + ")"
	}

	rows, err := src.sql.Query(query, args...)
	if err != nil {
		return 0, fmt.Errorf("copy cards: select: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	copied := 0
	for _, id := range ids {
		card, err := src.GetCard(id)
		if err != nil {
			return copied, err
		}
		if card == nil {
			continue
		}
		skills, err := src.GetSkills(id)
		if err != nil {
			return copied, err
		}
		card.Skills = skills
		if err := dst.UpsertCard(card); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}
