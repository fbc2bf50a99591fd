package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/muchofi/vault/internal/domain"
)

// ReportSource builds the point-in-time engine report that gets snapshotted.
type ReportSource interface {
	BuildReport(ctx context.Context) (domain.Report, error)
}

// Service manages snapshot generation and retrieval.
type Service struct {
	source ReportSource
	repo   Repository
}

// NewService creates a snapshot service.
func NewService(source ReportSource, repo Repository) *Service {
	return &Service{source: source, repo: repo}
}

// Generate builds a fresh engine report and stores it under the given date.
func (s *Service) Generate(ctx context.Context, date time.Time) (domain.Report, error) {
	report, err := s.source.BuildReport(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("building report: %w", err)
	}

	data, err := json.Marshal(report)
	if err != nil {
		return domain.Report{}, fmt.Errorf("marshaling report: %w", err)
	}

	if err := s.repo.Save(ctx, date, data); err != nil {
		return domain.Report{}, fmt.Errorf("saving snapshot: %w", err)
	}

	return report, nil
}

// GetLatest retrieves the most recent snapshot.
func (s *Service) GetLatest(ctx context.Context) (*Snapshot, error) {
	return s.repo.GetLatest(ctx)
}

// GetByDate retrieves a snapshot for a specific date.
func (s *Service) GetByDate(ctx context.Context, date time.Time) (*Snapshot, error) {
	return s.repo.GetByDate(ctx, date)
}

// List retrieves recent snapshots.
func (s *Service) List(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.repo.List(ctx, limit)
}
