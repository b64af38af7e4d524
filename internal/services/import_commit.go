package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/events"
	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
)

// RowOutcome is what commit did with one row.
type RowOutcome string

const (
	OutcomeCreated RowOutcome = "created"
	OutcomeUpdated RowOutcome = "updated"
	OutcomeSkipped RowOutcome = "skipped"
	OutcomeFailed  RowOutcome = "failed"
)

// Skip reason codes tallied in ImportStats.SkipReasons.
const (
	SkipNotSelected        = "not_selected"
	SkipValidationErrors   = "validation_errors"
	SkipDuplicate          = "duplicate"
	SkipUnresolvedConflict = "unresolved_conflict"
	SkipByUser             = "skipped_by_user"
	SkipCheckFailed        = "check_failed"
)

type CommitRowResult struct {
	RowIndex int        `json:"row_index"`
	Outcome  RowOutcome `json:"outcome"`
	PlayerID string     `json:"player_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Ratings  int        `json:"ratings,omitempty"`
}

type CommitResult struct {
	SessionID string              `json:"session_id"`
	Status    models.ImportStatus `json:"status"`
	Stats     models.ImportStats  `json:"stats"`
	Rows      []CommitRowResult   `json:"rows"`
}

type UndoEligibility struct {
	Eligible     bool       `json:"eligible"`
	Reason       string     `json:"reason,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	UndoableRows int        `json:"undoable_rows"`
}

type UndoResult struct {
	SessionID string              `json:"session_id"`
	Deleted   int                 `json:"deleted"`
	Restored  int                 `json:"restored"`
	Failures  []models.RowFailure `json:"failures,omitempty"`
	Full      bool                `json:"full"`
	Status    models.ImportStatus `json:"status"`
}

// rowWrite is the storage action a preview turns into.
type rowWrite int

const (
	writeNone rowWrite = iota
	writeCreate
	writeFill  // add missing fields to the matched player
	writeMerge // overwrite the matched player with incoming values
)

// planRow decides the write for one preview. Conflicts are never resolved
// without an explicit decision.
func planRow(p importer.PlayerPreview, decision models.ConflictResolution) (rowWrite, string) {
	switch p.Action {
	case importer.ActionSkip:
		if p.Reason == SkipNotSelected {
			return writeNone, SkipNotSelected
		}
		if importer.HasErrors(p.Issues) && !hasRowFailure(p.Issues) {
			return writeNone, SkipValidationErrors
		}
		return writeNone, SkipCheckFailed
	case importer.ActionDuplicate:
		return writeNone, SkipDuplicate
	case importer.ActionConflict:
		switch decision {
		case models.ResolveMerge:
			return writeMerge, ""
		case models.ResolveForceCreate:
			return writeCreate, ""
		case models.ResolveSkip:
			return writeNone, SkipByUser
		}
		return writeNone, SkipUnresolvedConflict
	case importer.ActionUpdate:
		if decision == models.ResolveSkip {
			return writeNone, SkipByUser
		}
		return writeFill, ""
	case importer.ActionCreate:
		if decision == models.ResolveSkip {
			return writeNone, SkipByUser
		}
		return writeCreate, ""
	}
	return writeNone, SkipCheckFailed
}

func hasRowFailure(issues []importer.ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Code == importer.IssueRowFailure {
			return true
		}
	}
	return false
}

// commitPlan is the per-run input shared by every row.
type commitPlan struct {
	session   *models.ImportSession
	benchmark *importer.BenchmarkSettings
	skills    []string
}

// ===== COMMIT =====

func (s *importService) Commit(ctx context.Context, actor Actor, id string, req *models.CommitRequest) (result *CommitResult, err error) {
	op := s.svcLogger.WithOperation(ctx, "commit", actor.UserID)
	defer func() { op.LogResult(id, "import_session", err) }()

	if req == nil {
		req = &models.CommitRequest{}
	}
	if err = s.validate(req); err != nil {
		return nil, err
	}

	session, err := s.loadSession(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if session.Status == models.ImportImporting {
		return nil, newRuleError(ErrCommitInProgress, "single_commit", "this import is already being committed", nil)
	}
	if session.Status != models.ImportReviewing {
		return nil, newRuleError(ErrInvalidTransition, "session_transition",
			fmt.Sprintf("a %s import cannot be committed, review it first", session.Status),
			map[string]any{"status": session.Status})
	}
	st, err := decodeSession(session)
	if err != nil {
		return nil, err
	}
	if err = requireMappings(st.Mappings); err != nil {
		return nil, err
	}

	ok, err := s.repo.Sessions().TransitionStatus(ctx, nil, id, models.ImportReviewing, models.ImportImporting)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session for commit: %w", err)
	}
	if !ok {
		return nil, newRuleError(ErrCommitInProgress, "single_commit", "this import is already being committed", nil)
	}
	session.Status = models.ImportImporting

	// A commit that dies half way must not leave the session importing forever.
	defer func() {
		if r := recover(); r != nil {
			s.svcLogger.LogRecovery(ctx, "commit", actor.UserID, r, debug.Stack())
			err = fmt.Errorf("%w: commit aborted", ErrInternalError)
		}
		if err != nil {
			s.abortCommit(ctx, session, err)
		}
	}()

	decisions := make(map[int]models.ConflictResolution, len(st.Decisions)+len(req.Decisions))
	for k, v := range st.Decisions {
		decisions[k] = v
	}
	for k, v := range req.Decisions {
		decisions[k] = v
	}

	start := s.config.Now()
	sim := s.pipeline.Simulator.Simulate(ctx, st.Table, st.Mappings, actor.OrganizationID, st.simulateOptions(req.ApplyAutoFixes))

	plan := commitPlan{session: session, benchmark: st.Benchmark, skills: st.Skills}
	stats := models.ImportStats{TotalRows: len(sim.Previews), SkipReasons: map[string]int{}}
	result = &CommitResult{SessionID: id, Rows: make([]CommitRowResult, 0, len(sim.Previews))}

	for _, p := range sim.Previews {
		row := s.commitRow(ctx, plan, p, decisions[p.RowIndex])
		switch row.Outcome {
		case OutcomeCreated:
			stats.Created++
		case OutcomeUpdated:
			stats.Updated++
		case OutcomeSkipped:
			stats.Skipped++
			stats.SkipReasons[row.Reason]++
		case OutcomeFailed:
			stats.Failed++
			stats.Failures = append(stats.Failures, models.RowFailure{RowIndex: row.RowIndex, Reason: row.Reason})
		}
		stats.RatingsCreated += row.Ratings
		result.Rows = append(result.Rows, row)
	}

	if stats.Created+stats.Updated > 0 {
		s.confirmMappings(ctx, actor.OrganizationID, st.Mappings)
	}

	finished := s.config.Now()
	stats.DurationMillis = finished.Sub(start).Milliseconds()

	status := models.ImportCompleted
	if stats.Failed > 0 && stats.Created+stats.Updated == 0 {
		status = models.ImportFailed
		msg := fmt.Sprintf("all %d attempted rows failed", stats.Failed)
		session.ErrorMessage = &msg
	}
	if session.Stats, err = encodeJSON(stats); err != nil {
		return nil, fmt.Errorf("failed to encode stats: %w", err)
	}
	session.Status = status
	session.Step = models.StepComplete
	session.ActiveKey = nil
	session.CompletedAt = &finished
	if err = s.repo.Sessions().Update(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}

	s.metrics.ObserveCommit(stats.Created, stats.Updated, stats.Skipped, stats.Failed)
	payload := events.ImportCompletedEvent{
		SessionID:   id,
		UserID:      actor.UserID,
		Created:     stats.Created,
		Updated:     stats.Updated,
		Skipped:     stats.Skipped,
		Failed:      stats.Failed,
		Ratings:     stats.RatingsCreated,
		CompletedAt: finished,
	}
	if status == models.ImportFailed {
		s.publish(ctx, events.NewImportFailedEvent(actor.OrganizationID, payload))
	} else {
		s.publish(ctx, events.NewImportCompletedEvent(actor.OrganizationID, payload))
	}

	result.Status = status
	result.Stats = stats
	return result, nil
}

// commitRow writes one row in its own transaction. A failure is captured on
// the result and never stops the caller.
func (s *importService) commitRow(ctx context.Context, plan commitPlan, p importer.PlayerPreview, decision models.ConflictResolution) (row CommitRowResult) {
	row.RowIndex = p.RowIndex
	kind, reason := planRow(p, decision)
	if kind == writeNone {
		row.Outcome, row.Reason = OutcomeSkipped, reason
		return row
	}

	defer func() {
		if r := recover(); r != nil {
			s.svcLogger.LogRecovery(ctx, "commit_row", plan.session.UserID, r, debug.Stack())
			row = s.failRow(ctx, plan.session, p.RowIndex, p.Record, fmt.Errorf("internal error: %v", r))
		}
	}()

	var ratings map[string]int
	if plan.benchmark != nil && len(plan.skills) > 0 {
		ratings = s.pipeline.Benchmarks.ApplyBenchmarks(ctx, *plan.benchmark, plan.session.SportCode, p.Record.Get(importer.FieldAgeGroup), plan.skills)
	}

	rec := s.pipeline.Validator.CanonicalRecord(p.Record)
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var (
			player   *models.Player
			snapshot []byte
			action   = models.CommitCreated
			err      error
		)
		if kind == writeCreate {
			player, err = s.createPlayer(ctx, tx, plan.session, rec)
		} else {
			action = models.CommitUpdated
			player, snapshot, err = s.updatePlayer(ctx, tx, plan.session, p.MatchedExistingID, rec, kind == writeMerge)
		}
		if err != nil {
			return err
		}

		n, err := s.writeRatings(ctx, tx, plan, player.ID, ratings)
		if err != nil {
			return err
		}

		record := &models.ImportCommitRecord{
			SessionID:      plan.session.ID,
			OrganizationID: plan.session.OrganizationID,
			RowIndex:       p.RowIndex,
			PlayerID:       &player.ID,
			Action:         action,
			Snapshot:       snapshot,
		}
		if err := s.repo.CommitRecords().Create(ctx, tx, record); err != nil {
			return fmt.Errorf("record commit: %w", err)
		}

		row.PlayerID, row.Ratings = player.ID, n
		row.Outcome = OutcomeCreated
		if action == models.CommitUpdated {
			row.Outcome = OutcomeUpdated
		}
		return nil
	})
	if err != nil {
		return s.failRow(ctx, plan.session, p.RowIndex, rec, err)
	}
	return row
}

func (s *importService) createPlayer(ctx context.Context, tx *gorm.DB, session *models.ImportSession, rec importer.Record) (*models.Player, error) {
	player := &models.Player{
		ID:              uuid.NewString(),
		OrganizationID:  session.OrganizationID,
		ImportSessionID: &session.ID,
	}
	player.ApplyRecord(rec)
	if err := s.repo.Players().Create(ctx, tx, player); err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return player, nil
}

// updatePlayer returns the player after the write and a JSON snapshot of its
// fields before it.
func (s *importService) updatePlayer(ctx context.Context, tx *gorm.DB, session *models.ImportSession, playerID string, rec importer.Record, overwrite bool) (*models.Player, []byte, error) {
	player, err := s.repo.Players().GetByID(ctx, tx, session.OrganizationID, playerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPlayerNotFound
		}
		return nil, nil, fmt.Errorf("load player: %w", err)
	}

	before := player.Record()
	snapshot, err := encodeJSON(before)
	if err != nil {
		return nil, nil, err
	}
	if overwrite {
		player.ApplyRecord(rec)
	} else {
		player.ApplyRecord(fillBlanks(before, rec))
	}
	if err := s.repo.Players().Update(ctx, tx, player); err != nil {
		return nil, nil, fmt.Errorf("update player: %w", err)
	}
	return player, snapshot, nil
}

func (s *importService) writeRatings(ctx context.Context, tx *gorm.DB, plan commitPlan, playerID string, ratings map[string]int) (int, error) {
	if len(ratings) == 0 {
		return 0, nil
	}
	skills := make([]string, 0, len(ratings))
	for skill := range ratings {
		skills = append(skills, skill)
	}
	sort.Strings(skills)

	batch := make([]*models.SkillRating, 0, len(skills))
	for _, skill := range skills {
		batch = append(batch, &models.SkillRating{
			ID:              uuid.NewString(),
			PlayerID:        playerID,
			OrganizationID:  plan.session.OrganizationID,
			SportCode:       plan.session.SportCode,
			SkillCode:       skill,
			Rating:          ratings[skill],
			Source:          string(plan.benchmark.Strategy),
			ImportSessionID: &plan.session.ID,
		})
	}
	if err := s.repo.SkillRatings().CreateBatch(ctx, tx, batch); err != nil {
		return 0, fmt.Errorf("create ratings: %w", err)
	}
	return len(batch), nil
}

// failRow logs the failure and records it outside the rolled back transaction.
func (s *importService) failRow(ctx context.Context, session *models.ImportSession, rowIndex int, rec importer.Record, cause error) CommitRowResult {
	s.svcLogger.LogRowFailure(ctx, session.ID, rowIndex, rec, cause)

	msg := cause.Error()
	record := &models.ImportCommitRecord{
		SessionID:      session.ID,
		OrganizationID: session.OrganizationID,
		RowIndex:       rowIndex,
		Action:         models.CommitFailed,
		Error:          &msg,
	}
	if err := s.repo.CommitRecords().Create(ctx, nil, record); err != nil {
		s.logger.WarnContext(ctx, "Failed to record row failure", "session_id", session.ID, "row_index", rowIndex, "error", err)
	}
	return CommitRowResult{RowIndex: rowIndex, Outcome: OutcomeFailed, Reason: msg}
}

// confirmMappings teaches the historical strategy what this organization uses.
func (s *importService) confirmMappings(ctx context.Context, orgID string, mappings []importer.ColumnMapping) {
	now := s.config.Now()
	for _, m := range mappings {
		if !m.Mapped() {
			continue
		}
		if err := s.repo.MappingHistory().Confirm(ctx, nil, orgID, m.SourceColumn, m.TargetField, now); err != nil {
			s.logger.WarnContext(ctx, "Failed to confirm mapping", "source_column", m.SourceColumn, "target_field", m.TargetField, "error", err)
		}
	}
}

// abortCommit moves a session stuck in importing to failed.
func (s *importService) abortCommit(ctx context.Context, session *models.ImportSession, cause error) {
	ok, err := s.repo.Sessions().TransitionStatus(ctx, nil, session.ID, models.ImportImporting, models.ImportFailed)
	if err != nil || !ok {
		s.logger.ErrorContext(ctx, "Failed to mark aborted commit", "session_id", session.ID, "error", err)
		return
	}
	s.publish(ctx, events.NewImportFailedEvent(session.OrganizationID, events.ImportCompletedEvent{
		SessionID:   session.ID,
		UserID:      session.UserID,
		CompletedAt: s.config.Now(),
	}))
	s.logger.WarnContext(ctx, "Import commit aborted", "session_id", session.ID, "error", cause)
}

// ===== UNDO =====

func (s *importService) CheckUndoEligibility(ctx context.Context, actor Actor, id string) (*UndoEligibility, error) {
	session, err := s.loadSession(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.CommitRecords().GetBySession(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit records: %w", err)
	}
	return s.undoEligibility(session, undoable(records)), nil
}

func (s *importService) undoEligibility(session *models.ImportSession, open []*models.ImportCommitRecord) *UndoEligibility {
	e := &UndoEligibility{UndoableRows: len(open)}
	if session.Status != models.ImportCompleted || session.CompletedAt == nil {
		e.Reason = fmt.Sprintf("a %s import cannot be undone", session.Status)
		return e
	}
	deadline := session.CompletedAt.Add(s.config.UndoWindow)
	e.Deadline = &deadline
	switch {
	case !s.config.Now().Before(deadline):
		e.Reason = "the undo window has expired"
	case len(open) == 0:
		e.Reason = "nothing left to undo"
	default:
		e.Eligible = true
	}
	return e
}

func undoable(records []*models.ImportCommitRecord) []*models.ImportCommitRecord {
	var out []*models.ImportCommitRecord
	for _, r := range records {
		if r.Action != models.CommitFailed && r.PlayerID != nil && r.UndoneAt == nil {
			out = append(out, r)
		}
	}
	return out
}

// Undo reverses the selected rows of a committed import. Rows outside the
// selection are left as they are.
func (s *importService) Undo(ctx context.Context, actor Actor, id string, req *models.UndoRequest) (result *UndoResult, err error) {
	op := s.svcLogger.WithOperation(ctx, "undo", actor.UserID)
	defer func() { op.LogResult(id, "import_session", err) }()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.CommitRecords().GetBySession(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit records: %w", err)
	}
	open := undoable(records)

	if e := s.undoEligibility(session, open); !e.Eligible {
		cause := ErrUndoNotAllowed
		if e.Deadline != nil && !s.config.Now().Before(*e.Deadline) {
			cause = ErrUndoWindowClosed
		}
		return nil, newRuleError(cause, "undo_eligibility", e.Reason, map[string]any{"status": session.Status})
	}

	selected := selectForUndo(open, req)
	result = &UndoResult{SessionID: id}
	now := s.config.Now()
	for _, rec := range selected {
		if err := s.undoRecord(ctx, session, rec, now); err != nil {
			s.svcLogger.LogRowFailure(ctx, id, rec.RowIndex, nil, err)
			result.Failures = append(result.Failures, models.RowFailure{RowIndex: rec.RowIndex, Reason: err.Error()})
			continue
		}
		if rec.Action == models.CommitCreated {
			result.Deleted++
		} else {
			result.Restored++
		}
	}

	undone := result.Deleted + result.Restored
	stats, err := decodeJSON[models.ImportStats](session.Stats)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	stats.Undone += undone

	result.Status = session.Status
	if undone > 0 && undone == len(open) {
		ok, err := s.repo.Sessions().TransitionStatus(ctx, nil, id, models.ImportCompleted, models.ImportUndone)
		if err != nil {
			return nil, fmt.Errorf("failed to mark session undone: %w", err)
		}
		if ok {
			result.Full = true
			session.Status = models.ImportUndone
			session.UndoneAt = &now
		}
	}
	if session.Stats, err = encodeJSON(stats); err != nil {
		return nil, err
	}
	if err = s.repo.Sessions().Update(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to save undo stats: %w", err)
	}
	result.Status = session.Status

	s.metrics.ObserveUndo(result.Deleted, result.Restored)
	if undone > 0 {
		s.publish(ctx, events.NewImportUndoneEvent(actor.OrganizationID, events.ImportUndoneEvent{
			SessionID: id,
			UserID:    actor.UserID,
			Deleted:   result.Deleted,
			Restored:  result.Restored,
			Full:      result.Full,
			Reason:    req.Reason,
			UndoneAt:  now,
		}))
	}
	return result, nil
}

func selectForUndo(open []*models.ImportCommitRecord, req *models.UndoRequest) []*models.ImportCommitRecord {
	if req.All {
		return open
	}
	players := make(map[string]bool, len(req.PlayerIDs))
	for _, pid := range req.PlayerIDs {
		players[pid] = true
	}
	rows := make(map[int]bool, len(req.RowIndexes))
	for _, i := range req.RowIndexes {
		rows[i] = true
	}

	var out []*models.ImportCommitRecord
	for _, r := range open {
		if players[*r.PlayerID] || rows[r.RowIndex] {
			out = append(out, r)
		}
	}
	return out
}

func (s *importService) undoRecord(ctx context.Context, session *models.ImportSession, rec *models.ImportCommitRecord, at time.Time) error {
	return s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		playerID := *rec.PlayerID
		if _, err := s.repo.SkillRatings().DeleteImported(ctx, tx, playerID, session.ID); err != nil {
			return fmt.Errorf("delete ratings: %w", err)
		}

		switch rec.Action {
		case models.CommitCreated:
			if err := s.repo.Players().Delete(ctx, tx, playerID); err != nil {
				return fmt.Errorf("delete player: %w", err)
			}
		case models.CommitUpdated:
			player, err := s.repo.Players().GetByID(ctx, tx, session.OrganizationID, playerID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPlayerNotFound
				}
				return fmt.Errorf("load player: %w", err)
			}
			before, err := decodeJSON[importer.Record](rec.Snapshot)
			if err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			player.ReplaceRecord(before)
			if err := s.repo.Players().Update(ctx, tx, player); err != nil {
				return fmt.Errorf("restore player: %w", err)
			}
		}
		return s.repo.CommitRecords().MarkUndone(ctx, tx, rec.ID, at)
	})
}
