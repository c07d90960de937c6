package db

import (
	"context"
	"encoding/json"
	"fmt"
)

// LogSearch appends a search audit entry.
func (db *DB) LogSearch(ctx context.Context, entry SearchLog) error {
	var paramsJSON []byte
	if entry.Params != nil {
		var err error
		paramsJSON, err = json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal search params: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO search_logs (ip_address, user_agent, search_params, response_time_ms, success, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		nullIfEmpty(entry.IPAddress), nullIfEmpty(entry.UserAgent), paramsJSON, entry.ResponseMs,
		entry.Success, nullIfEmpty(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// Stats summarizes the search log and the case type distribution.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{RecentSearches: []SearchLog{}, CaseTypes: []CaseTypeCount{}}

	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE success) FROM search_logs`,
	).Scan(&stats.TotalSearches, &stats.SuccessfulSearches)
	if err != nil {
		return nil, fmt.Errorf("failed to count searches: %w", err)
	}
	stats.FailedSearches = stats.TotalSearches - stats.SuccessfulSearches
	stats.SuccessRate = SuccessRate(stats.SuccessfulSearches, stats.TotalSearches)

	rows, err := db.pool.Query(ctx,
		`SELECT id, logged_at, ip_address, user_agent, search_params, response_time_ms, success, error_message
		 FROM search_logs ORDER BY logged_at DESC LIMIT $1`,
		RecentSearchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent searches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry SearchLog
		var ip, ua, errMsg *string
		var paramsJSON []byte
		var responseMs *int64
		if err := rows.Scan(&entry.ID, &entry.LoggedAt, &ip, &ua, &paramsJSON, &responseMs, &entry.Success, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan search log: %w", err)
		}
		entry.IPAddress, entry.UserAgent, entry.ErrorMessage = deref(ip), deref(ua), deref(errMsg)
		if responseMs != nil {
			entry.ResponseMs = *responseMs
		}
		if paramsJSON != nil {
			_ = json.Unmarshal(paramsJSON, &entry.Params)
		}
		stats.RecentSearches = append(stats.RecentSearches, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recent searches: %w", err)
	}

	typeRows, err := db.pool.Query(ctx,
		`SELECT case_type, COUNT(*) FROM case_queries GROUP BY case_type ORDER BY COUNT(*) DESC, case_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count case types: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var c CaseTypeCount
		if err := typeRows.Scan(&c.CaseType, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan case type: %w", err)
		}
		stats.CaseTypes = append(stats.CaseTypes, c)
	}
	return stats, typeRows.Err()
}
