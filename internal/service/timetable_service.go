package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

// Conflict dimensions reported by move checks.
const (
	DimensionFaculty     = "faculty"
	DimensionSection     = "section"
	DimensionRoom        = "room"
	DimensionUnavailable = "unavailable"
	DimensionDailyCap    = "daily_cap"
)


type timetableStore interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntryDetail, error)
	ListAtSlot(ctx context.Context, day, start string) ([]models.TimetableEntryDetail, error)
	CountSectionDay(ctx context.Context, sectionID, day string) (int, error)
	UpdateSlot(ctx context.Context, id, day, start string) error
}

type availabilityChecker interface {
	IsUnavailable(ctx context.Context, facultyID, day, start string) (bool, error)
}

type sectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type artifactSource interface {
	LastArtifact() (Artifact, bool)
}

type artifactReader interface {
	Read(filename string) ([]byte, error)
}

type linkSigner interface {
	Sign(subject, relPath string) (storage.SignedLink, error)
	Verify(token string) (storage.SignedLink, error)
}

// TimetableServiceConfig configures download links and manual moves.
type TimetableServiceConfig struct {
	DownloadPath string
	// MoveWait bounds how long a move queues behind another timetable writer.
	MoveWait time.Duration
}

// ExportFile is a rendered document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TimetableService serves stored timetables: listing, manual moves and exports.
type TimetableService struct {
	store        timetableStore
	guard        *TimetableLock
	availability availabilityChecker
	sections     sectionFinder
	artifacts    artifactSource
	files        artifactReader
	signer       linkSigner
	cache        cacheInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          TimetableServiceConfig
	now          func() time.Time
}

// NewTimetableService constructs the service.
func NewTimetableService(store timetableStore, guard *TimetableLock, availability availabilityChecker, sections sectionFinder, artifacts artifactSource, files artifactReader, signer linkSigner, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger, cfg TimetableServiceConfig) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if guard == nil {
		guard = NewTimetableLock(nil, 0, logger)
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/timetable/export/download"
	}
	if cfg.MoveWait <= 0 {
		cfg.MoveWait = 2 * time.Second
	}
	return &TimetableService{
		store:        store,
		guard:        guard,
		availability: availability,
		sections:     sections,
		artifacts:    artifacts,
		files:        files,
		signer:       signer,
		cache:        cache,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// List returns stored entries matching the query.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) (*dto.TimetableListResponse, error) {
	filter, err := toFilter(query)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable")
	}
	if entries == nil {
		entries = []models.TimetableEntryDetail{}
	}
	return &dto.TimetableListResponse{Entries: entries, Total: len(entries)}, nil
}

// CheckMove reports whether moving the entry to the requested slot collides
// with another entry sharing its faculty, section or room.
func (s *TimetableService) CheckMove(ctx context.Context, id string, req dto.MoveEntryRequest) (*dto.MoveCheckResponse, error) {
	entry, slot, err := s.loadMove(ctx, id, req)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.conflictsAt(ctx, entry, slot)
	if err != nil {
		return nil, err
	}
	resp := &dto.MoveCheckResponse{Conflicts: conflicts}
	if len(conflicts) > 0 {
		resp.Conflict = true
		resp.Reason = conflicts[0].Message
	}
	return resp, nil
}

// Move applies a conflict-free move on behalf of actorID and returns the
// updated entry. The conflict check and the write both hold the timetable lock.
func (s *TimetableService) Move(ctx context.Context, id, actorID string, req dto.MoveEntryRequest) (*dto.MoveEntryResponse, error) {
	var (
		entry *models.TimetableEntryDetail
		slot  scheduler.Slot
	)
	err := s.guard.Run(ctx, s.cfg.MoveWait, func(ctx context.Context) error {
		var err error
		entry, slot, err = s.loadMove(ctx, id, req)
		if err != nil {
			return err
		}
		conflicts, err := s.conflictsAt(ctx, entry, slot)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return appErrors.Clone(appErrors.ErrConflict, conflicts[0].Message)
		}
		if err := s.store.UpdateSlot(ctx, entry.ID, slot.Day, slot.Start); err != nil {
			if errors.Is(err, repository.ErrEntryNotFound) {
				return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move timetable entry")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrGenerationInProgress) {
			return nil, appErrors.Clone(appErrors.ErrGenerationInProgress, "timetable is being updated, try again")
		}
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("failed to invalidate report cache", zap.Error(err))
		}
	}
	s.logger.Info("timetable entry moved",
		zap.String("entry_id", entry.ID),
		zap.String("from", entry.Day+"_"+entry.StartTime),
		zap.String("to", slot.Key()),
		zap.String("actor_id", actorID),
	)
	entry.Day = slot.Day
	entry.StartTime = slot.Start
	return &dto.MoveEntryResponse{Entry: *entry}, nil
}

// Export renders the stored timetable in the requested format.
func (s *TimetableService) Export(ctx context.Context, rawFormat string, query dto.TimetableQuery) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	filter, err := toFilter(query)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	data, err := renderer.Render(TimetableDataset(detailRows(entries)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("timetable_%s.%s", s.now().UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

// ExportLink signs a download link for the last generated export.
func (s *TimetableService) ExportLink(ctx context.Context) (*dto.ExportLinkResponse, error) {
	artifact, ok := s.artifacts.LastArtifact()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no generated timetable export available")
	}
	link, err := s.signer.Sign(artifact.RunID, artifact.File)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &dto.ExportLinkResponse{
		URL:       s.cfg.DownloadPath + "?token=" + url.QueryEscape(link.Token),
		Token:     link.Token,
		ExpiresAt: link.ExpiresAt,
		RunID:     artifact.RunID,
	}, nil
}

// Download resolves a signed token to the export it was issued for. Tokens of
// superseded runs are rejected.
func (s *TimetableService) Download(ctx context.Context, token string) (*ExportFile, error) {
	link, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	artifact, ok := s.artifacts.LastArtifact()
	if !ok || artifact.RunID != link.Subject || artifact.File != link.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link refers to a superseded timetable")
	}
	data, err := s.files.Read(link.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read timetable export")
	}
	return &ExportFile{Filename: link.Path, ContentType: export.NewCSVExporter().ContentType(), Data: data}, nil
}

func (s *TimetableService) loadMove(ctx context.Context, id string, req dto.MoveEntryRequest) (*models.TimetableEntryDetail, scheduler.Slot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, scheduler.Slot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "day must be Mon-Fri and startTime one of 09, 11, 01, 03")
	}
	slot, ok := scheduler.LookupSlot(req.Day, req.StartTime)
	if !ok {
		return nil, scheduler.Slot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %s %s is outside the weekly grid", req.Day, req.StartTime))
	}
	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, scheduler.Slot{}, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, scheduler.Slot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	return entry, slot, nil
}

// conflictsAt lists every reason the entry cannot occupy slot, ordered
// faculty, section, room, then availability and daily cap.
func (s *TimetableService) conflictsAt(ctx context.Context, entry *models.TimetableEntryDetail, slot scheduler.Slot) ([]models.ScheduleConflict, error) {
	occupants, err := s.store.ListAtSlot(ctx, slot.Day, slot.Start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slot")
	}

	var faculty, section, room []models.ScheduleConflict
	for _, other := range occupants {
		if other.ID == entry.ID {
			continue
		}
		conflict := models.ScheduleConflict{EntryID: other.ID, CourseID: other.CourseID, Day: slot.Day, StartTime: slot.Start}
		if entry.FacultyID != nil && other.FacultyID != nil && *entry.FacultyID == *other.FacultyID {
			c := conflict
			c.Dimension = DimensionFaculty
			c.Message = fmt.Sprintf("Faculty is already assigned to '%s' at that time.", other.CourseName)
			faculty = append(faculty, c)
		}
		if other.SectionID == entry.SectionID {
			c := conflict
			c.Dimension = DimensionSection
			c.Message = fmt.Sprintf("Section is already scheduled for '%s' at that time.", other.CourseName)
			section = append(section, c)
		}
		if other.RoomID == entry.RoomID {
			c := conflict
			c.Dimension = DimensionRoom
			c.Message = fmt.Sprintf("Room '%s' is already booked at that time.", entry.RoomName)
			room = append(room, c)
		}
	}
	conflicts := append(append(faculty, section...), room...)

	if entry.FacultyID != nil && s.availability != nil {
		blocked, err := s.availability.IsUnavailable(ctx, *entry.FacultyID, slot.Day, slot.Start)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check faculty availability")
		}
		if blocked {
			conflicts = append(conflicts, models.ScheduleConflict{
				Day: slot.Day, StartTime: slot.Start, Dimension: DimensionUnavailable,
				Message: "Faculty is unavailable at that time.",
			})
		}
	}

	if s.sections != nil && entry.Day != slot.Day {
		limit, err := s.dailyCap(ctx, entry.SectionID)
		if err != nil {
			return nil, err
		}
		count, err := s.store.CountSectionDay(ctx, entry.SectionID, slot.Day)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count section classes")
		}
		if count+1 > limit {
			conflicts = append(conflicts, models.ScheduleConflict{
				Day: slot.Day, StartTime: slot.Start, Dimension: DimensionDailyCap,
				Message: fmt.Sprintf("Section already has %d classes on %s.", count, slot.Day),
			})
		}
	}
	return conflicts, nil
}

func (s *TimetableService) dailyCap(ctx context.Context, sectionID string) (int, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, repository.ErrSectionNotFound) {
			return models.DefaultMaxHoursPerDay, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section.DailyCap(), nil
}

func toFilter(query dto.TimetableQuery) (models.TimetableFilter, error) {
	filter := models.TimetableFilter{SectionID: query.SectionID, FacultyID: query.FacultyID, RoomID: query.RoomID}
	if query.Day != "" {
		filter.Day = scheduler.NormalizeDay(query.Day)
		if filter.Day == "" {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", query.Day))
		}
	}
	return filter, nil
}

func detailRows(entries []models.TimetableEntryDetail) []scheduler.ExportRow {
	rows := make([]scheduler.ExportRow, 0, len(entries))
	for _, e := range entries {
		faculty := scheduler.NoFaculty
		if e.FacultyName != nil {
			faculty = *e.FacultyName
		}
		rows = append(rows, scheduler.ExportRow{
			Course:    e.CourseName,
			Section:   e.SectionName,
			Faculty:   faculty,
			Room:      e.RoomName,
			Day:       e.Day,
			StartTime: e.StartTime,
			Year:      e.Year,
			Semester:  e.Semester,
		})
	}
	return rows
}
