package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type usageStub struct {
	faculty []models.FacultyLoad
	rooms   []models.RoomUsage
	calls   int
	err     error
}

func (u *usageStub) FacultyLoad(ctx context.Context) ([]models.FacultyLoad, error) {
	u.calls++
	return u.faculty, u.err
}

func (u *usageStub) RoomUsage(ctx context.Context) ([]models.RoomUsage, error) {
	u.calls++
	return u.rooms, u.err
}

type memoryCache struct {
	values map[string]interface{}
	ttl    time.Duration
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *dto.FacultyLoadReport:
		*d = *(v.(*dto.FacultyLoadReport))
	case *dto.RoomUtilizationReport:
		*d = *(v.(*dto.RoomUtilizationReport))
	}
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = map[string]interface{}{}
	}
	m.values[key] = value
	m.ttl = ttl
	return nil
}

func TestReportServiceFacultyLoad(t *testing.T) {
	usage := &usageStub{faculty: []models.FacultyLoad{
		{FacultyID: "f1", FacultyName: "Ada", MaxHours: 10, Assigned: 5},
		{FacultyID: "f2", FacultyName: "Grace", MaxHours: 2, Assigned: 3},
		{FacultyID: "f3", FacultyName: "Linus", MaxHours: 0, Assigned: 4},
	}}
	cache := &memoryCache{}
	svc := NewReportService(usage, cache, NewMetricsService(), time.Minute, nil)

	report, err := svc.FacultyLoad(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 3)
	assert.InDelta(t, 0.5, report.Items[0].Load, 1e-9)
	assert.False(t, report.Items[0].Overloaded)
	assert.True(t, report.Items[1].Overloaded)
	assert.Zero(t, report.Items[2].Load)

	assert.False(t, report.Cached)

	again, err := svc.FacultyLoad(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 1, usage.calls)
	assert.Equal(t, time.Minute, cache.ttl)
}

func TestReportServiceRoomUtilization(t *testing.T) {
	usage := &usageStub{rooms: []models.RoomUsage{{RoomID: "r1", RoomName: "Room 101", Assigned: 5}, {RoomID: "r2", RoomName: "Lab", Assigned: 0}}}
	svc := NewReportService(usage, nil, nil, 0, nil)

	report, err := svc.RoomUtilization(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, 20, report.Items[0].Slots)
	assert.InDelta(t, 0.25, report.Items[0].Utilization, 1e-9)
	assert.Zero(t, report.Items[1].Utilization)
}

func TestReportServiceWrapsErrors(t *testing.T) {
	svc := NewReportService(&usageStub{err: errors.New("db down")}, nil, nil, 0, nil)
	_, err := svc.FacultyLoad(context.Background())
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
