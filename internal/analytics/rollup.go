// Package analytics rolls the download audit trail up into daily totals.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type DailyStat struct {
	StatDate      time.Time `json:"statDate"`
	Initiated     int       `json:"initiated"`
	Retrieved     int       `json:"retrieved"`
	Failed        int       `json:"failed"`
	TokensGranted int       `json:"tokensGranted"`
	TokensBlocked int       `json:"tokensBlocked"`
	UniqueClients int       `json:"uniqueClients"`
	TopService    string    `json:"topService"`
}

type Rollup struct {
	db  *sql.DB
	log logrus.FieldLogger
	now func() time.Time
}

func NewRollup(db *sql.DB, log logrus.FieldLogger) *Rollup {
	return &Rollup{db: db, log: log.WithField("component", "analytics"), now: time.Now}
}

const countsQuery = `SELECT
	COALESCE(SUM(CASE WHEN event_type='download_initiated' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN event_type='link_retrieved' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN event_type='link_failed' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN event_type='token_granted' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN event_type='token_blocked' THEN 1 ELSE 0 END),0),
	COUNT(DISTINCT NULLIF(client_ip,''))
	FROM download_events WHERE occurred_at >= $1 AND occurred_at < $2`

const topServiceQuery = `SELECT service FROM download_events
	WHERE occurred_at >= $1 AND occurred_at < $2 AND event_type='link_retrieved' AND service <> ''
	GROUP BY service ORDER BY COUNT(*) DESC, service LIMIT 1`

const upsertQuery = `INSERT INTO download_daily_stats
	(stat_date, initiated, retrieved, failed, tokens_granted, tokens_blocked, unique_clients, top_service, computed_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	ON CONFLICT (stat_date) DO UPDATE SET
		initiated=$2, retrieved=$3, failed=$4, tokens_granted=$5, tokens_blocked=$6,
		unique_clients=$7, top_service=$8, computed_at=now()`

// Compute totals the UTC day containing date.
func (r *Rollup) Compute(ctx context.Context, date time.Time) (*DailyStat, error) {
	dayStart := date.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	d := &DailyStat{StatDate: dayStart}

	err := r.db.QueryRowContext(ctx, countsQuery, dayStart, dayEnd).
		Scan(&d.Initiated, &d.Retrieved, &d.Failed, &d.TokensGranted, &d.TokensBlocked, &d.UniqueClients)
	if err != nil {
		return nil, fmt.Errorf("download counts: %w", err)
	}
	err = r.db.QueryRowContext(ctx, topServiceQuery, dayStart, dayEnd).Scan(&d.TopService)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("top service: %w", err)
	}
	return d, nil
}

func (r *Rollup) Save(ctx context.Context, d *DailyStat) error {
	_, err := r.db.ExecContext(ctx, upsertQuery, d.StatDate, d.Initiated, d.Retrieved, d.Failed,
		d.TokensGranted, d.TokensBlocked, d.UniqueClients, d.TopService)
	if err != nil {
		return fmt.Errorf("save daily stat: %w", err)
	}
	return nil
}

// RunDaily computes and stores yesterday's totals.
func (r *Rollup) RunDaily(ctx context.Context) error {
	yesterday := r.now().UTC().AddDate(0, 0, -1)
	stat, err := r.Compute(ctx, yesterday)
	if err != nil {
		return err
	}
	if err := r.Save(ctx, stat); err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{
		"date":      stat.StatDate.Format("2006-01-02"),
		"retrieved": stat.Retrieved,
		"failed":    stat.Failed,
		"clients":   stat.UniqueClients,
	}).Info("download rollup saved")
	return nil
}
