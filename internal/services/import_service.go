package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/events"
	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/metrics"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
	"github.com/SAP-F-2025/roster-import-service/internal/validator"
)

// SessionConflictPolicy decides what StartSession does when the user already
// has an active session in the organization.
type SessionConflictPolicy string

const (
	ConflictReject  SessionConflictPolicy = "reject"
	ConflictReplace SessionConflictPolicy = "replace"
)

type ImportServiceConfig struct {
	ConflictPolicy SessionConflictPolicy
	UndoWindow     time.Duration
	Now            func() time.Time
}

// ImportService drives one import run from upload to commit and undo.
type ImportService interface {
	StartSession(ctx context.Context, actor Actor, req *models.StartSessionRequest) (*models.ImportSession, error)
	GetSession(ctx context.Context, actor Actor, id string) (*models.ImportSession, error)
	GetActiveSession(ctx context.Context, actor Actor) (*models.ImportSession, error)
	ListSessions(ctx context.Context, actor Actor, filters repositories.SessionFilters) ([]*models.ImportSession, int64, error)
	SaveDraft(ctx context.Context, actor Actor, id string, req *models.SaveDraftRequest) (*models.ImportSession, error)
	CancelSession(ctx context.Context, actor Actor, id string) error

	RemapColumns(ctx context.Context, actor Actor, id string) ([]importer.ColumnMapping, error)
	ValidateRows(ctx context.Context, actor Actor, id string, applyAutoFixes bool) (*ValidationReport, error)
	ScoreQuality(ctx context.Context, actor Actor, id string) (*importer.QualityReport, error)
	Simulate(ctx context.Context, actor Actor, id string, req *models.SimulateRequest) (*importer.SimulationResult, error)
	Preview(ctx context.Context, actor Actor, req *models.PreviewRequest) (*PreviewResponse, error)

	Commit(ctx context.Context, actor Actor, id string, req *models.CommitRequest) (*CommitResult, error)
	CheckUndoEligibility(ctx context.Context, actor Actor, id string) (*UndoEligibility, error)
	Undo(ctx context.Context, actor Actor, id string, req *models.UndoRequest) (*UndoResult, error)

	ListMappingHistory(ctx context.Context, actor Actor) ([]*models.MappingHistory, error)
}

// ValidationReport lists the row issues of a session without side effects.
type ValidationReport struct {
	TotalRows        int                        `json:"total_rows"`
	RowsWithErrors   int                        `json:"rows_with_errors"`
	RowsWithWarnings int                        `json:"rows_with_warnings"`
	Issues           []importer.ValidationIssue `json:"issues"`
}

// PreviewResponse is the stateless mapping, scoring and simulation of an upload.
type PreviewResponse struct {
	Mappings      []importer.ColumnMapping  `json:"mappings"`
	MissingFields []string                  `json:"missing_required_fields,omitempty"`
	Quality       importer.QualityReport    `json:"quality"`
	Simulation    importer.SimulationResult `json:"simulation"`
	Benchmarks    map[string]int            `json:"benchmarks,omitempty"`
}

type importService struct {
	repo      repositories.Repository
	pipeline  *Pipeline
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	validator *validator.Validator
	config    ImportServiceConfig
	logger    *slog.Logger
	svcLogger *ServiceLogger
}

func NewImportService(repo repositories.Repository, pipeline *Pipeline, publisher events.EventPublisher, m *metrics.Metrics, v *validator.Validator, cfg ImportServiceConfig, logger *slog.Logger) ImportService {
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = ConflictReject
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &importService{
		repo:      repo,
		pipeline:  pipeline,
		publisher: publisher,
		metrics:   m,
		validator: v,
		config:    cfg,
		logger:    logger,
		svcLogger: NewServiceLogger(logger, LogConfig{Service: "roster-import", Component: "import"}),
	}
}

// ===== SESSION LIFECYCLE =====

func (s *importService) StartSession(ctx context.Context, actor Actor, req *models.StartSessionRequest) (session *models.ImportSession, err error) {
	op := s.svcLogger.WithOperation(ctx, "start_session", actor.UserID)
	defer func() { op.LogResult(sessionID(session), "import_session", err) }()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	table := importer.ParsedTable{Headers: req.Headers, Rows: req.Rows}
	if err = table.Validate(); err != nil {
		return nil, ValidationErrors{*NewValidationError("rows", err.Error(), nil)}
	}
	if len(table.Rows) == 0 {
		return nil, newRuleError(ErrNoRows, "non_empty_import", "the upload has no data rows", nil)
	}

	if err = s.resolveActiveConflict(ctx, actor); err != nil {
		return nil, err
	}

	st := &sessionState{Table: table}
	st.Mappings = s.pipeline.Mapper.MapColumns(ctx, actor.OrganizationID, table, nil)
	s.metrics.ObserveMappings(st.Mappings)

	now := s.config.Now()
	key := models.ActiveSessionKey(actor.UserID, actor.OrganizationID)
	session = &models.ImportSession{
		ID:             uuid.NewString(),
		OrganizationID: actor.OrganizationID,
		UserID:         actor.UserID,
		ActiveKey:      &key,
		Status:         models.ImportMapping,
		Step:           models.StepMapping,
		SourceFileName: req.SourceFileName,
		SportCode:      req.SportCode,
		StartedAt:      &now,
	}
	if err = st.encodeInto(session); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err = s.repo.Sessions().Create(ctx, nil, session); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, newRuleError(ErrActiveSessionExists, "single_active_session",
				"another import session was started concurrently", nil)
		}
		return nil, fmt.Errorf("failed to create import session: %w", err)
	}

	s.publish(ctx, events.NewImportStartedEvent(actor.OrganizationID, events.ImportStartedEvent{
		SessionID:      session.ID,
		UserID:         actor.UserID,
		SourceFileName: session.SourceFileName,
		TotalRows:      session.TotalRows,
	}))
	return session, nil
}

// resolveActiveConflict applies the conflict policy to an existing active session.
func (s *importService) resolveActiveConflict(ctx context.Context, actor Actor) error {
	existing, err := s.repo.Sessions().GetActive(ctx, nil, actor.UserID, actor.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to look up active session: %w", err)
	}
	if existing == nil {
		return nil
	}
	if s.config.ConflictPolicy != ConflictReplace || existing.Status == models.ImportImporting {
		return newRuleError(ErrActiveSessionExists, "single_active_session",
			"finish or cancel the current import before starting a new one",
			map[string]any{"session_id": existing.ID, "status": existing.Status})
	}

	ok, err := s.repo.Sessions().TransitionStatus(ctx, nil, existing.ID, existing.Status, models.ImportCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel previous session: %w", err)
	}
	if !ok {
		return newRuleError(ErrActiveSessionExists, "single_active_session",
			"the current import changed state while it was being replaced", map[string]any{"session_id": existing.ID})
	}
	s.logger.InfoContext(ctx, "Replaced active import session", "previous_session_id", existing.ID, "user_id", actor.UserID)
	return nil
}

func (s *importService) GetSession(ctx context.Context, actor Actor, id string) (*models.ImportSession, error) {
	return s.loadSession(ctx, actor, id, false)
}

func (s *importService) GetActiveSession(ctx context.Context, actor Actor) (*models.ImportSession, error) {
	session, err := s.repo.Sessions().GetActive(ctx, nil, actor.UserID, actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *importService) ListSessions(ctx context.Context, actor Actor, filters repositories.SessionFilters) ([]*models.ImportSession, int64, error) {
	sessions, total, err := s.repo.Sessions().List(ctx, nil, actor.OrganizationID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

func (s *importService) SaveDraft(ctx context.Context, actor Actor, id string, req *models.SaveDraftRequest) (session *models.ImportSession, err error) {
	op := s.svcLogger.WithOperation(ctx, "save_draft", actor.UserID)
	defer func() { op.LogResult(id, "import_session", err) }()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	if req.Step == models.StepComplete {
		return nil, ValidationErrors{*NewValidationError("step", "the complete step is reached by committing", req.Step)}
	}

	session, err = s.loadSession(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if err = requireEditable(session); err != nil {
		return nil, err
	}
	st, err := decodeSession(session)
	if err != nil {
		return nil, err
	}

	if req.Mappings != nil {
		if st.Mappings, err = applyOverrides(st.Mappings, req.Mappings); err != nil {
			return nil, err
		}
	}
	if req.SelectedRows != nil {
		selected := make(map[int]bool, len(req.SelectedRows))
		for _, i := range req.SelectedRows {
			if i >= len(st.Table.Rows) {
				return nil, ValidationErrors{*NewValidationError("selected_rows", "row index out of range", i)}
			}
			selected[i] = true
		}
		st.Selected = sortedRows(selected)
	}
	if req.Decisions != nil {
		st.Decisions = req.Decisions
	}
	if req.Benchmark != nil {
		st.Benchmark = benchmarkSettingsFrom(req.Benchmark)
	}
	if req.Skills != nil {
		st.Skills = req.Skills
	}
	if req.SportCode != nil {
		session.SportCode = *req.SportCode
	}

	next := statusForStep(req.Step)
	if next == models.ImportReviewing {
		if err = requireMappings(st.Mappings); err != nil {
			return nil, err
		}
	}
	if next != session.Status && !session.Status.CanTransitionTo(next) {
		return nil, newRuleError(ErrInvalidTransition, "session_transition",
			fmt.Sprintf("cannot move from %s to %s", session.Status, next),
			map[string]any{"from": session.Status, "to": next})
	}
	session.Status = next
	session.Step = req.Step

	if err = st.encodeInto(session); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err = s.repo.Sessions().Update(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return session, nil
}

func (s *importService) CancelSession(ctx context.Context, actor Actor, id string) (err error) {
	op := s.svcLogger.WithOperation(ctx, "cancel_session", actor.UserID)
	defer func() { op.LogResult(id, "import_session", err) }()

	session, err := s.loadSession(ctx, actor, id, true)
	if err != nil {
		return err
	}
	if !session.Status.CanTransitionTo(models.ImportCancelled) {
		return newRuleError(ErrInvalidTransition, "session_transition",
			fmt.Sprintf("a %s import cannot be cancelled", session.Status), nil)
	}
	ok, err := s.repo.Sessions().TransitionStatus(ctx, nil, id, session.Status, models.ImportCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}
	if !ok {
		return newRuleError(ErrInvalidTransition, "session_transition", "the import changed state, reload and retry", nil)
	}
	return nil
}

// ===== MAPPING, VALIDATION AND SIMULATION =====

// RemapColumns re-runs automatic mapping and keeps earlier manual choices.
func (s *importService) RemapColumns(ctx context.Context, actor Actor, id string) (mappings []importer.ColumnMapping, err error) {
	op := s.svcLogger.WithOperation(ctx, "remap_columns", actor.UserID)
	defer func() { op.LogResult(id, "import_session", err) }()

	session, err := s.loadSession(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if err = requireEditable(session); err != nil {
		return nil, err
	}
	st, err := decodeSession(session)
	if err != nil {
		return nil, err
	}

	var manual []models.MappingOverride
	for _, m := range st.Mappings {
		if m.Strategy == importer.StrategyManual {
			manual = append(manual, models.MappingOverride{SourceColumn: m.SourceColumn, TargetField: string(m.TargetField)})
		}
	}
	auto := s.pipeline.Mapper.MapColumns(ctx, actor.OrganizationID, st.Table, nil)
	s.metrics.ObserveMappings(auto)
	if st.Mappings, err = applyOverrides(auto, manual); err != nil {
		return nil, err
	}

	if err = st.encodeInto(session); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err = s.repo.Sessions().Update(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to save mappings: %w", err)
	}
	return st.Mappings, nil
}

func (s *importService) ValidateRows(ctx context.Context, actor Actor, id string, applyAutoFixes bool) (*ValidationReport, error) {
	session, err := s.loadSession(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	st, err := decodeSession(session)
	if err != nil {
		return nil, err
	}

	records := importer.BuildRecords(st.Table, st.Mappings)
	report := &ValidationReport{TotalRows: len(records), Issues: []importer.ValidationIssue{}}
	for i, rec := range records {
		var issues []importer.ValidationIssue
		if applyAutoFixes {
			_, issues = s.pipeline.Validator.ApplyAutoFixesAndRevalidate(i, rec)
		} else {
			issues = s.pipeline.Validator.ValidateRecord(i, rec)
		}
		hasError, hasWarning := false, false
		for _, issue := range issues {
			if issue.Severity == importer.SeverityError {
				hasError = true
			} else {
				hasWarning = true
			}
		}
		if hasError {
			report.RowsWithErrors++
		}
		if hasWarning {
			report.RowsWithWarnings++
		}
		report.Issues = append(report.Issues, issues...)
	}
	return report, nil
}

func (s *importService) ScoreQuality(ctx context.Context, actor Actor, id string) (*importer.QualityReport, error) {
	session, err := s.loadSession(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	st, err := decodeSession(session)
	if err != nil {
		return nil, err
	}
	report := importer.ScoreQuality(importer.BuildRecords(st.Table, st.Mappings), s.pipeline.qualityOptions(session.SportCode))
	return &report, nil
}

func (s *importService) Simulate(ctx context.Context, actor Actor, id string, req *models.SimulateRequest) (result *importer.SimulationResult, err error) {
	op := s.svcLogger.WithOperation(ctx, "simulate", actor.UserID)
	defer func() { op.LogResult(id, "import_session", err) }()

	session, err := s.loadSession(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	st, err := decodeSession(session)
	if err != nil {
		return nil, err
	}
	if err = requireMappings(st.Mappings); err != nil {
		return nil, err
	}

	applyFixes := req != nil && req.ApplyAutoFixes
	start := time.Now()
	res := s.pipeline.Simulator.Simulate(ctx, st.Table, st.Mappings, actor.OrganizationID, st.simulateOptions(applyFixes))
	s.metrics.ObserveSimulation(&res, time.Since(start))
	return &res, nil
}

// Preview maps, scores and simulates an upload without creating a session.
func (s *importService) Preview(ctx context.Context, actor Actor, req *models.PreviewRequest) (resp *PreviewResponse, err error) {
	op := s.svcLogger.WithOperation(ctx, "preview", actor.UserID)
	defer func() { op.LogResult("", "import_preview", err) }()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	table := importer.ParsedTable{Headers: req.Headers, Rows: req.Rows}
	if err = table.Validate(); err != nil {
		return nil, ValidationErrors{*NewValidationError("rows", err.Error(), nil)}
	}

	mappings := s.pipeline.Mapper.MapColumns(ctx, actor.OrganizationID, table, nil)
	s.metrics.ObserveMappings(mappings)
	if mappings, err = applyOverrides(mappings, req.Mappings); err != nil {
		return nil, err
	}

	records := importer.BuildRecords(table, mappings)
	resp = &PreviewResponse{
		Mappings:      mappings,
		MissingFields: missingRequired(mappings),
		Quality:       importer.ScoreQuality(records, s.pipeline.qualityOptions(req.SportCode)),
	}

	benchmark := benchmarkSettingsFrom(req.Benchmark)
	start := time.Now()
	resp.Simulation = s.pipeline.Simulator.SimulateRecords(ctx, records, actor.OrganizationID, importer.SimulateOptions{
		ApplyAutoFixes:    req.ApplyAutoFixes,
		BenchmarksEnabled: benchmark != nil && len(req.Skills) > 0,
		Skills:            req.Skills,
	})
	s.metrics.ObserveSimulation(&resp.Simulation, time.Since(start))

	if benchmark != nil && len(req.Skills) > 0 {
		resp.Benchmarks = s.pipeline.Benchmarks.ApplyBenchmarks(ctx, *benchmark, req.SportCode, "", req.Skills)
	}
	return resp, nil
}

func (s *importService) ListMappingHistory(ctx context.Context, actor Actor) ([]*models.MappingHistory, error) {
	history, err := s.repo.MappingHistory().List(ctx, nil, actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping history: %w", err)
	}
	return history, nil
}

// ===== SHARED HELPERS =====

// loadSession fetches a session of the caller's organization. Writes are
// restricted to the user who started it.
func (s *importService) loadSession(ctx context.Context, actor Actor, id string, write bool) (*models.ImportSession, error) {
	session, err := s.repo.Sessions().GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.OrganizationID != actor.OrganizationID {
		return nil, ErrSessionNotFound
	}
	if write && session.UserID != actor.UserID {
		return nil, NewPermissionError(actor.UserID, id, "import_session", "write", "session belongs to another user")
	}
	return session, nil
}

func requireEditable(session *models.ImportSession) error {
	switch session.Status {
	case models.ImportUploading, models.ImportMapping, models.ImportSelecting, models.ImportReviewing:
		return nil
	}
	return newRuleError(ErrSessionNotEditable, "session_editable",
		fmt.Sprintf("a %s import can no longer be edited", session.Status),
		map[string]any{"status": session.Status})
}

func (s *importService) validate(req any) error {
	if s.validator == nil {
		return nil
	}
	err := s.validator.Validate(req)
	if err == nil {
		return nil
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	if converted := validator.ToValidationErrors(err); len(converted) > 0 {
		return converted
	}
	return fmt.Errorf("%w: %v", ErrValidationFailed, err)
}

// publish never fails the operation: events are best effort.
func (s *importService) publish(ctx context.Context, event *events.ImportEvent) {
	if s.publisher == nil || event == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish import event", "event_type", event.Type, "error", err)
	}
}

func sessionID(session *models.ImportSession) string {
	if session == nil {
		return ""
	}
	return session.ID
}
