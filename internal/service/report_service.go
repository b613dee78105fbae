package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	facultyLoadCacheKey     = "faculty-load"
	roomUtilizationCacheKey = "room-utilization"
)

type usageReader interface {
	FacultyLoad(ctx context.Context) ([]models.FacultyLoad, error)
	RoomUsage(ctx context.Context) ([]models.RoomUsage, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ReportService computes utilization reports over the stored timetable.
type ReportService struct {
	usage   usageReader
	cache   reportCache
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(usage usageReader, cache reportCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ReportService{usage: usage, cache: cache, metrics: metrics, ttl: ttl, logger: logger, now: time.Now}
}

// FacultyLoad reports assigned hours against each advisory maximum. The
// maximum is never enforced by generation; Overloaded only flags it.
func (s *ReportService) FacultyLoad(ctx context.Context) (*dto.FacultyLoadReport, error) {
	var cached dto.FacultyLoadReport
	if s.lookup(ctx, facultyLoadCacheKey, &cached) {
		cached.Cached = true
		return &cached, nil
	}
	rows, err := s.usage.FacultyLoad(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute faculty load")
	}
	report := &dto.FacultyLoadReport{Items: make([]dto.FacultyLoadItem, 0, len(rows)), GeneratedAt: s.now().UTC()}
	for _, row := range rows {
		item := dto.FacultyLoadItem{FacultyLoad: row}
		if row.MaxHours > 0 {
			item.Load = float64(row.Assigned) / float64(row.MaxHours)
			item.Overloaded = row.Assigned > row.MaxHours
		}
		report.Items = append(report.Items, item)
	}
	s.store(ctx, facultyLoadCacheKey, report)
	return report, nil
}

// RoomUtilization reports the share of weekly slots each room is booked.
func (s *ReportService) RoomUtilization(ctx context.Context) (*dto.RoomUtilizationReport, error) {
	var cached dto.RoomUtilizationReport
	if s.lookup(ctx, roomUtilizationCacheKey, &cached) {
		cached.Cached = true
		return &cached, nil
	}
	rows, err := s.usage.RoomUsage(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute room utilization")
	}
	report := &dto.RoomUtilizationReport{Items: make([]dto.RoomUtilizationItem, 0, len(rows)), GeneratedAt: s.now().UTC()}
	for _, row := range rows {
		report.Items = append(report.Items, dto.RoomUtilizationItem{
			RoomUsage:   row,
			Slots:       scheduler.NumSlots,
			Utilization: float64(row.Assigned) / float64(scheduler.NumSlots),
		})
	}
	s.store(ctx, roomUtilizationCacheKey, report)
	return report, nil
}

func (s *ReportService) lookup(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		s.metrics.RecordCacheLookup(key, true)
		return true
	}
	s.metrics.RecordCacheLookup(key, false)
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *ReportService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
