package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"access-sync/core/reconcile"
	"access-sync/feature/access/models"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

// RecordPass stores the summary and full report of a finished pass.
func (g *Gateway) RecordPass(ctx context.Context, report *reconcile.PassReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode pass %s: %w", report.ID, err)
	}

	types := make([]string, 0, len(report.Types))
	for _, t := range report.Types {
		types = append(types, string(t.Type))
	}

	created, updated, unchanged, failed := report.Totals()
	run := models.SyncRun{
		ID:         report.ID,
		Status:     string(report.Status),
		Types:      strings.Join(types, ","),
		DryRun:     report.DryRun,
		Cancelled:  report.Cancelled,
		Created:    created,
		Updated:    updated,
		Unchanged:  unchanged,
		Failed:     failed,
		Error:      report.Error,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DurationMS: report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		Report:     string(raw),
	}

	if err := g.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("record pass %s: %w", report.ID, err)
	}
	return nil
}

// ListPasses returns the most recent passes, newest first.
func (g *Gateway) ListPasses(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	err := g.db.WithContext(ctx).
		Select("id", "status", "types", "dry_run", "cancelled", "created", "updated",
			"unchanged", "failed", "error", "started_at", "finished_at", "duration_ms").
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	return runs, nil
}

// GetPass returns the full stored report of one pass, or reconcile.ErrNotFound.
func (g *Gateway) GetPass(ctx context.Context, id string) (*reconcile.PassReport, error) {
	var run models.SyncRun
	err := g.db.WithContext(ctx).Where("id = ?", id).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("pass %s: %w", id, reconcile.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read pass %s: %w", id, err)
	}

	var report reconcile.PassReport
	if err := json.Unmarshal([]byte(run.Report), &report); err != nil {
		return nil, fmt.Errorf("decode pass %s: %w", id, err)
	}
	return &report, nil
}
