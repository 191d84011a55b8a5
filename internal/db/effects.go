package db

import (
	"encoding/json"
	"fmt"
)

// SkillEffectRow is one stored skill's raw effect text, keyed for update.
type SkillEffectRow struct {
	SkillID int64
	CardID  int64
	Effect  string
}

// SkillsWithEffect returns every skill row that has effect text.
func (d *DB) SkillsWithEffect() ([]SkillEffectRow, error) {
	rows, err := d.sql.Query(`
		SELECT skill_id, card_id, effect
		FROM skills
		WHERE effect IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("skills with effect: %w", err)
	}
	defer rows.Close()

	var out []SkillEffectRow
	for rows.Next() {
		var r SkillEffectRow
		if err := rows.Scan(&r.SkillID, &r.CardID, &r.Effect); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateSkillNormalization stores the normalized effect text and the
// heuristic instruction decomposition for one skill.
func (d *DB) UpdateSkillNormalization(skillID int64, norm string, instructions []string) error {
	if instructions == nil {
		instructions = []string{}
	}
	instrJSON, err := json.Marshal(instructions)
	if err != nil {
		return fmt.Errorf("skill %d: marshal instructions: %w", skillID, err)
	}
	_, err = d.sql.Exec(`
		UPDATE skills
		SET effect_text_norm = ?, instructions_json = ?
		WHERE skill_id = ?
	`, norm, string(instrJSON), skillID)
	if err != nil {
		return fmt.Errorf("skill %d: update normalization: %w", skillID, err)
	}
	return nil
}
