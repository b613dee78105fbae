package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/pkg/cpsat"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

const (
	generationSuccessMessage = "Timetable generated successfully and emailed"
	missingInputMessage      = "Need courses, faculty, rooms, and sections to generate timetable"
)

type courseLister interface {
	ListAll(ctx context.Context) ([]models.Course, error)
}

type facultyLister interface {
	ListAll(ctx context.Context) ([]models.Faculty, error)
	ListUnavailability(ctx context.Context) ([]models.FacultyUnavailability, error)
}

type classroomLister interface {
	ListAll(ctx context.Context) ([]models.Classroom, error)
}

type sectionLister interface {
	ListAll(ctx context.Context) ([]models.Section, error)
}

type timetableWriter interface {
	ReplaceAll(ctx context.Context, entries []models.TimetableEntry) error
}

type generationLocker interface {
	Acquire(ctx context.Context, ttl time.Duration) (string, error)
	Release(ctx context.Context, token string) error
}

type artifactWriter interface {
	Save(filename string, data []byte) (string, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type timetableNotifier interface {
	NotifyGenerated(ctx context.Context, notice TimetableNotice) error
}

type modelSolver interface {
	Solve(ctx context.Context, m *cpsat.Model) (*cpsat.Response, error)
}

// GeneratorConfig tunes the generation pipeline.
type GeneratorConfig struct {
	ExportFile string
}

// GeneratorDeps groups the collaborators of the generator.
type GeneratorDeps struct {
	Courses   courseLister
	Faculty   facultyLister
	Rooms     classroomLister
	Sections  sectionLister
	Store     timetableWriter
	Guard     *TimetableLock
	Artifacts artifactWriter
	Cache     cacheInvalidator
	Notifier  timetableNotifier
	Solver    modelSolver
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// Artifact describes the export written by the last successful run.
type Artifact struct {
	RunID       string
	File        string
	GeneratedAt time.Time
}

// TimetableGeneratorService runs the collect, build, solve and persist pipeline.
type TimetableGeneratorService struct {
	deps GeneratorDeps
	cfg  GeneratorConfig

	mu   sync.RWMutex
	last *Artifact
}

// NewTimetableGeneratorService constructs the generator.
func NewTimetableGeneratorService(deps GeneratorDeps, cfg GeneratorConfig) *TimetableGeneratorService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Guard == nil {
		deps.Guard = NewTimetableLock(nil, 0, deps.Logger)
	}
	if cfg.ExportFile == "" {
		cfg.ExportFile = "timetable_final.csv"
	}
	return &TimetableGeneratorService{deps: deps, cfg: cfg}
}

// LastArtifact returns the export of the last successful run, if any.
func (s *TimetableGeneratorService) LastArtifact() (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Artifact{}, false
	}
	return *s.last, true
}

type generationTally struct {
	outcome string
	entries int
}

// Generate replaces the stored timetable with a freshly solved one. The
// stored timetable is only touched once a verified solution exists.
func (s *TimetableGeneratorService) Generate(ctx context.Context) (*dto.GenerateTimetableResponse, error) {
	started := time.Now()
	tally := generationTally{outcome: OutcomeError}
	defer func() {
		s.deps.Metrics.ObserveGeneration(tally.outcome, time.Since(started), tally.entries)
	}()

	var resp *dto.GenerateTimetableResponse
	err := s.deps.Guard.Run(ctx, 0, func(ctx context.Context) error {
		var err error
		resp, err = s.run(ctx, started, &tally)
		return err
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrGenerationInProgress) {
			tally.outcome = OutcomeBusy
		}
		return nil, err
	}
	return resp, nil
}

func (s *TimetableGeneratorService) run(ctx context.Context, started time.Time, tally *generationTally) (*dto.GenerateTimetableResponse, error) {
	runID := uuid.NewString()
	log := s.deps.Logger.With(zap.String("run_id", runID))

	snap, err := s.collect(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling data")
	}
	if missing := snap.Missing(); len(missing) > 0 {
		tally.outcome = OutcomePreconditionFailed
		log.Info("generation skipped", zap.Strings("missing", missing))
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, missingInputMessage)
	}
	collected := time.Now()

	model, err := scheduler.Build(snap)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build timetable model")
	}
	for _, w := range model.Warnings() {
		log.Warn("timetable model warning", zap.String("warning", w))
	}
	if ce := log.Check(zap.DebugLevel, "timetable model built"); ce != nil {
		desc := model.Describe()
		ce.Write(zap.Int("fixed", desc.Fixed), zap.Any("constraints_by_kind", desc.ByKind), zap.Int("pairs", len(desc.Pairs)))
	}
	built := time.Now()

	result, err := s.deps.Solver.Solve(ctx, model.CP)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable solver failed")
	}
	s.deps.Metrics.ObserveSolverBranches(result.Branches)
	log.Info("timetable solved",
		zap.String("status", result.Status.String()),
		zap.Duration("wall_time", result.WallTime),
		zap.Int64("branches", result.Branches),
		zap.Int64("conflicts", result.Conflicts),
		zap.Int("variables", model.CP.NumVars()),
		zap.Int("constraints", model.CP.NumConstraints()),
	)
	if !result.Status.HasSolution() {
		tally.outcome = OutcomeInfeasible
		return nil, appErrors.Wrap(infeasibleCause(result), appErrors.ErrInfeasible.Code, appErrors.ErrInfeasible.Status, appErrors.ErrInfeasible.Message)
	}
	solved := time.Now()

	generated := model.Materialize(result)
	if err := scheduler.Verify(snap, generated); err != nil {
		log.Error("solution failed verification", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generated timetable failed verification")
	}

	if err := s.deps.Store.ReplaceAll(ctx, generated); err != nil {
		tally.outcome = OutcomePersistenceFailed
		return nil, appErrors.Wrap(err, appErrors.ErrPersistenceFailed.Code, appErrors.ErrPersistenceFailed.Status, appErrors.ErrPersistenceFailed.Message)
	}
	persisted := time.Now()
	tally.outcome = OutcomeSuccess
	tally.entries = len(generated)

	csvData, exportFile := s.writeExport(log, snap, generated, runID)
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx); err != nil {
			log.Warn("failed to invalidate report cache", zap.Error(err))
		}
	}
	s.notify(ctx, log, snap, runID, csvData)

	log.Info("timetable generation finished",
		zap.Int("entries", tally.entries),
		zap.Duration("collect", collected.Sub(started)),
		zap.Duration("build", built.Sub(collected)),
		zap.Duration("solve", solved.Sub(built)),
		zap.Duration("persist", persisted.Sub(solved)),
	)

	return &dto.GenerateTimetableResponse{
		Success:    true,
		Message:    generationSuccessMessage,
		Entries:    tally.entries,
		ExportFile: exportFile,
		Stats: dto.GenerationStats{
			RunID:        runID,
			SolverStatus: result.Status.String(),
			WallTimeMs:   result.WallTime.Milliseconds(),
			Branches:     result.Branches,
			Conflicts:    result.Conflicts,
			Variables:    model.CP.NumVars(),
			Constraints:  model.CP.NumConstraints(),
			Warnings:     model.Warnings(),
		},
	}, nil
}

// collect reads the five input tables concurrently into one snapshot.
func (s *TimetableGeneratorService) collect(ctx context.Context) (*scheduler.Snapshot, error) {
	var (
		courses  []models.Course
		faculty  []models.Faculty
		rooms    []models.Classroom
		sections []models.Section
		blocked  []models.FacultyUnavailability
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = s.deps.Courses.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		faculty, err = s.deps.Faculty.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		blocked, err = s.deps.Faculty.ListUnavailability(gctx)
		return err
	})
	g.Go(func() (err error) {
		rooms, err = s.deps.Rooms.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		sections, err = s.deps.Sections.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scheduler.NewSnapshot(courses, faculty, rooms, sections, blocked), nil
}

func (s *TimetableGeneratorService) writeExport(log *zap.Logger, snap *scheduler.Snapshot, entries []models.TimetableEntry, runID string) ([]byte, string) {
	data, err := export.NewCSVExporter().Render(TimetableDataset(scheduler.ExportRows(snap, entries)))
	if err != nil {
		log.Warn("failed to render timetable export", zap.Error(err))
		return nil, ""
	}
	if s.deps.Artifacts == nil {
		return data, ""
	}
	path, err := s.deps.Artifacts.Save(s.cfg.ExportFile, data)
	if err != nil {
		log.Warn("failed to write timetable export", zap.Error(err))
		return data, ""
	}
	s.mu.Lock()
	s.last = &Artifact{RunID: runID, File: s.cfg.ExportFile, GeneratedAt: time.Now().UTC()}
	s.mu.Unlock()
	return data, path
}

func (s *TimetableGeneratorService) notify(ctx context.Context, log *zap.Logger, snap *scheduler.Snapshot, runID string, csvData []byte) {
	if s.deps.Notifier == nil {
		return
	}
	notice := TimetableNotice{RunID: runID, Filename: s.cfg.ExportFile, Attachment: csvData}
	for _, f := range snap.Faculty {
		if f.Email != nil && strings.TrimSpace(*f.Email) != "" {
			notice.Recipients = append(notice.Recipients, strings.TrimSpace(*f.Email))
		}
	}
	if err := s.deps.Notifier.NotifyGenerated(ctx, notice); err != nil {
		log.Warn("failed to dispatch timetable notification", zap.Error(err))
	}
}

// TimetableDataset shapes export rows for the tabular renderers.
func TimetableDataset(rows []scheduler.ExportRow) export.Dataset {
	data := export.Dataset{Title: "Timetable", Headers: scheduler.ExportHeaders}
	data.Rows = make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		data.Rows = append(data.Rows, row.Map())
	}
	return data
}

func infeasibleCause(resp *cpsat.Response) error {
	if resp.Status == cpsat.StatusUnknown {
		return fmt.Errorf("no solution within the time limit after %d branches", resp.Branches)
	}
	if resp.Reason != "" {
		return fmt.Errorf("solver status %s: %s", resp.Status, resp.Reason)
	}
	return fmt.Errorf("solver status %s", resp.Status)
}
