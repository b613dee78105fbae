package service

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

type timetableStoreStub struct {
	mu      sync.Mutex
	delay   time.Duration
	entries map[string]*models.TimetableEntryDetail
	order   []string
	moved   []string
}

func newTimetableStoreStub(entries ...models.TimetableEntryDetail) *timetableStoreStub {
	s := &timetableStoreStub{entries: map[string]*models.TimetableEntryDetail{}}
	for i := range entries {
		e := entries[i]
		s.entries[e.ID] = &e
		s.order = append(s.order, e.ID)
	}
	return s
}

func (s *timetableStoreStub) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TimetableEntryDetail
	for _, id := range s.order {
		e := s.entries[id]
		if filter.SectionID != "" && e.SectionID != filter.SectionID {
			continue
		}
		if filter.Day != "" && e.Day != filter.Day {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *timetableStoreStub) FindByID(ctx context.Context, id string) (*models.TimetableEntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *timetableStoreStub) ListAtSlot(ctx context.Context, day, start string) ([]models.TimetableEntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	var out []models.TimetableEntryDetail
	for _, id := range s.order {
		if e := s.entries[id]; e.Day == day && e.StartTime == start {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *timetableStoreStub) CountSectionDay(ctx context.Context, sectionID, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.entries {
		if e.SectionID == sectionID && e.Day == day {
			count++
		}
	}
	return count, nil
}

func (s *timetableStoreStub) UpdateSlot(ctx context.Context, id, day, start string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return repository.ErrEntryNotFound
	}
	e.Day, e.StartTime = day, start
	s.moved = append(s.moved, id)
	return nil
}

type availabilityStub map[string]bool

func (a availabilityStub) IsUnavailable(ctx context.Context, facultyID, day, start string) (bool, error) {
	return a[facultyID+"|"+day+"_"+start], nil
}

type sectionFinderStub map[string]models.Section

func (s sectionFinderStub) FindByID(ctx context.Context, id string) (*models.Section, error) {
	section, ok := s[id]
	if !ok {
		return nil, repository.ErrSectionNotFound
	}
	return &section, nil
}

type artifactSourceStub struct {
	artifact Artifact
	ok       bool
}

func (a artifactSourceStub) LastArtifact() (Artifact, bool) { return a.artifact, a.ok }

func detail(id, course, section, faculty, room, day, start string) models.TimetableEntryDetail {
	d := models.TimetableEntryDetail{
		TimetableEntry: models.TimetableEntry{ID: id, CourseID: course, SectionID: section, RoomID: room, Day: day, StartTime: start},
		CourseName:     "Course " + course,
		SectionName:    "Section " + section,
		RoomName:       "Room " + room,
		Year:           1,
		Semester:       1,
	}
	if faculty != "" {
		d.FacultyID = strPtr(faculty)
		d.FacultyName = strPtr("Faculty " + faculty)
	}
	return d
}

func newTimetableServiceForTest(store *timetableStoreStub) *TimetableService {
	return NewTimetableService(store, nil, availabilityStub{}, sectionFinderStub{}, artifactSourceStub{}, &artifactStub{}, storage.NewSignedURLSigner("secret", time.Hour), nil, nil, nil, TimetableServiceConfig{})
}

func TestCheckMoveReportsFacultyConflictFirst(t *testing.T) {
	store := newTimetableStoreStub(
		detail("e1", "c1", "s1", "f1", "r1", "Mon", "09"),
		detail("e2", "c2", "s1", "f1", "r1", "Tue", "09"),
	)
	svc := newTimetableServiceForTest(store)

	resp, err := svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Tue", StartTime: "09"})
	require.NoError(t, err)
	assert.True(t, resp.Conflict)
	assert.Equal(t, "Faculty is already assigned to 'Course c2' at that time.", resp.Reason)
	require.Len(t, resp.Conflicts, 3)
	assert.Equal(t, DimensionSection, resp.Conflicts[1].Dimension)
	assert.Equal(t, "Room 'Room r1' is already booked at that time.", resp.Conflicts[2].Message)
}

func TestCheckMoveSectionAndRoomConflicts(t *testing.T) {
	store := newTimetableStoreStub(
		detail("e1", "c1", "s1", "f1", "r1", "Mon", "09"),
		detail("e2", "c2", "s1", "f2", "r2", "Mon", "11"),
		detail("e3", "c3", "s2", "f3", "r1", "Mon", "01"),
	)
	svc := newTimetableServiceForTest(store)

	resp, err := svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Mon", StartTime: "11"})
	require.NoError(t, err)
	assert.Equal(t, "Section is already scheduled for 'Course c2' at that time.", resp.Reason)

	resp, err = svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Mon", StartTime: "01"})
	require.NoError(t, err)
	assert.Equal(t, "Room 'Room r1' is already booked at that time.", resp.Reason)

	resp, err = svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Mon", StartTime: "03"})
	require.NoError(t, err)
	assert.False(t, resp.Conflict)
}

func TestCheckMoveIgnoresSelfAndUnassignedFaculty(t *testing.T) {
	store := newTimetableStoreStub(
		detail("e1", "c1", "s1", "", "r1", "Mon", "09"),
		detail("e2", "c2", "s2", "", "r2", "Tue", "09"),
	)
	svc := newTimetableServiceForTest(store)

	resp, err := svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Mon", StartTime: "09"})
	require.NoError(t, err)
	assert.False(t, resp.Conflict)

	resp, err = svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Tue", StartTime: "09"})
	require.NoError(t, err)
	assert.False(t, resp.Conflict)
}

func TestCheckMoveUnavailabilityAndDailyCap(t *testing.T) {
	store := newTimetableStoreStub(
		detail("e1", "c1", "s1", "f1", "r1", "Mon", "09"),
		detail("e2", "c2", "s1", "f2", "r1", "Tue", "09"),
		detail("e3", "c3", "s1", "f2", "r1", "Tue", "11"),
	)
	svc := NewTimetableService(store, nil,
		availabilityStub{"f1|Wed_09": true},
		sectionFinderStub{"s1": {ID: "s1", MaxHoursPerDay: intPtr(2)}},
		artifactSourceStub{}, &artifactStub{}, storage.NewSignedURLSigner("secret", time.Hour), nil, nil, nil, TimetableServiceConfig{})

	resp, err := svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Wed", StartTime: "09"})
	require.NoError(t, err)
	assert.Equal(t, "Faculty is unavailable at that time.", resp.Reason)

	resp, err = svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Tue", StartTime: "01"})
	require.NoError(t, err)
	require.True(t, resp.Conflict)
	assert.Equal(t, DimensionDailyCap, resp.Conflicts[0].Dimension)
}

func TestCheckMoveErrors(t *testing.T) {
	svc := newTimetableServiceForTest(newTimetableStoreStub(detail("e1", "c1", "s1", "f1", "r1", "Mon", "09")))

	_, err := svc.CheckMove(context.Background(), "missing", dto.MoveEntryRequest{Day: "Mon", StartTime: "11"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.CheckMove(context.Background(), "e1", dto.MoveEntryRequest{Day: "Sat", StartTime: "09"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMoveAppliesOrRejects(t *testing.T) {
	store := newTimetableStoreStub(
		detail("e1", "c1", "s1", "f1", "r1", "Mon", "09"),
		detail("e2", "c2", "s1", "f2", "r2", "Mon", "11"),
	)
	cache := &invalidatorStub{}
	svc := NewTimetableService(store, nil, availabilityStub{}, sectionFinderStub{}, artifactSourceStub{}, &artifactStub{}, storage.NewSignedURLSigner("secret", time.Hour), cache, nil, nil, TimetableServiceConfig{})

	_, err := svc.Move(context.Background(), "e1", "admin-1", dto.MoveEntryRequest{Day: "Mon", StartTime: "11"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.moved)

	resp, err := svc.Move(context.Background(), "e1", "admin-1", dto.MoveEntryRequest{Day: "Thu", StartTime: "03"})
	require.NoError(t, err)
	assert.Equal(t, "Thu", resp.Entry.Day)
	assert.Equal(t, "03", resp.Entry.StartTime)
	assert.Equal(t, []string{"e1"}, store.moved)
	assert.Equal(t, 1, cache.calls)
}

func TestConcurrentMovesIntoSameSlotOnlyOneWins(t *testing.T) {
	store := newTimetableStoreStub(
		detail("e1", "c1", "s1", "f1", "r1", "Mon", "09"),
		detail("e2", "c2", "s2", "f1", "r2", "Mon", "11"),
		detail("e3", "c3", "s3", "f1", "r3", "Tue", "09"),
		detail("e4", "c4", "s4", "f1", "r4", "Tue", "11"),
	)
	store.delay = 5 * time.Millisecond
	svc := newTimetableServiceForTest(store)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, id := range []string{"e1", "e2", "e3", "e4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Move(context.Background(), id, "admin-1", dto.MoveEntryRequest{Day: "Fri", StartTime: "03"})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.moved, 1)
}

func TestMoveWaitsOutGenerationThenGivesUp(t *testing.T) {
	store := newTimetableStoreStub(detail("e1", "c1", "s1", "f1", "r1", "Mon", "09"))
	guard := NewTimetableLock(&lockStub{}, time.Minute, nil)
	svc := NewTimetableService(store, guard, availabilityStub{}, sectionFinderStub{}, artifactSourceStub{}, &artifactStub{},
		storage.NewSignedURLSigner("secret", time.Hour), nil, nil, nil, TimetableServiceConfig{MoveWait: 20 * time.Millisecond})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- guard.Run(context.Background(), 0, func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	_, err := svc.Move(context.Background(), "e1", "admin-1", dto.MoveEntryRequest{Day: "Thu", StartTime: "03"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrGenerationInProgress.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.moved)

	close(release)
	require.NoError(t, <-done)

	_, err = svc.Move(context.Background(), "e1", "admin-1", dto.MoveEntryRequest{Day: "Thu", StartTime: "03"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, store.moved)
}

func TestListAndExport(t *testing.T) {
	store := newTimetableStoreStub(
		detail("e1", "c1", "s1", "f1", "r1", "Mon", "09"),
		detail("e2", "c2", "s2", "", "r1", "Tue", "09"),
	)
	svc := newTimetableServiceForTest(store)

	list, err := svc.List(context.Background(), dto.TimetableQuery{Day: "monday"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	_, err = svc.List(context.Background(), dto.TimetableQuery{Day: "someday"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	file, err := svc.Export(context.Background(), "csv", dto.TimetableQuery{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Contains(t, string(file.Data), "Course c2,Section s2,N/A,Room r1,Tue,09,1,1")

	file, err = svc.Export(context.Background(), "xlsx", dto.TimetableQuery{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Filename, ".xlsx"))

	_, err = svc.Export(context.Background(), "docx", dto.TimetableQuery{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportLinkAndDownload(t *testing.T) {
	files := &artifactStub{files: map[string][]byte{"timetable_final.csv": []byte("course\n")}}
	source := artifactSourceStub{artifact: Artifact{RunID: "run-1", File: "timetable_final.csv"}, ok: true}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewTimetableService(newTimetableStoreStub(), nil, availabilityStub{}, sectionFinderStub{}, source, files, signer, nil, nil, nil, TimetableServiceConfig{})

	link, err := svc.ExportLink(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", link.RunID)
	assert.Equal(t, "/api/v1/timetable/export/download?token="+url.QueryEscape(link.Token), link.URL)

	file, err := svc.Download(context.Background(), link.Token)
	require.NoError(t, err)
	assert.Equal(t, "course\n", string(file.Data))

	_, err = svc.Download(context.Background(), "tampered")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	superseded := NewTimetableService(newTimetableStoreStub(), nil, availabilityStub{}, sectionFinderStub{},
		artifactSourceStub{artifact: Artifact{RunID: "run-2", File: "timetable_final.csv"}, ok: true}, files, signer, nil, nil, nil, TimetableServiceConfig{})
	_, err = superseded.Download(context.Background(), link.Token)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportLinkWithoutArtifact(t *testing.T) {
	svc := newTimetableServiceForTest(newTimetableStoreStub())
	_, err := svc.ExportLink(context.Background())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
