package db

import (
	"database/sql"

	"github.com/colloquy-ai/colloquy/internal/models"
)

func (db *Database) InsertUsageRecord(rec *models.UsageRecord) error {
	query := `
        INSERT INTO usage_records (id, user_id, model, prompt_tokens, tokens_used, cost, prompt_sample, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.db.Exec(query, rec.ID, rec.UserID, rec.Model, rec.PromptTokens,
		rec.TokensUsed, rec.Cost, rec.PromptSample, rec.Status, rec.CreatedAt)
	return err
}

// AddUserTotals increments the user's running counters in a single upsert
// statement, so concurrent completions for the same user cannot lose
// updates.
func (db *Database) AddUserTotals(userID int64, tokens int64, cost float64) error {
	query := `
        INSERT INTO user_totals (user_id, total_tokens, total_cost)
        VALUES (?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            total_tokens = total_tokens + excluded.total_tokens,
            total_cost = total_cost + excluded.total_cost`

	_, err := db.db.Exec(query, userID, tokens, cost)
	return err
}

func (db *Database) UserTotals(userID int64) (*models.UserTotals, error) {
	query := `
        SELECT user_id, total_tokens, total_cost
        FROM user_totals
        WHERE user_id = ?`

	totals := &models.UserTotals{UserID: userID}
	err := db.db.QueryRow(query, userID).Scan(&totals.UserID, &totals.TotalTokens, &totals.TotalCost)
	if err == sql.ErrNoRows {
		return totals, nil
	}
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (db *Database) UsageRecordsForUser(userID int64) ([]models.UsageRecord, error) {
	query := `
        SELECT id, user_id, model, prompt_tokens, tokens_used, cost, prompt_sample, status, created_at
        FROM usage_records
        WHERE user_id = ?
        ORDER BY created_at ASC, id ASC`

	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.UsageRecord, 0)
	for rows.Next() {
		var rec models.UsageRecord
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.Model, &rec.PromptTokens,
			&rec.TokensUsed, &rec.Cost, &rec.PromptSample, &rec.Status, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
