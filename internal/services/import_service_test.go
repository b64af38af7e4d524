package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/roster-import-service/internal/events"
	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/roster-import-service/internal/validator"
)

const testOrg = "org-1"

var coach = Actor{UserID: "coach-1", OrganizationID: testOrg}

type testEnv struct {
	svc       ImportService
	repo      repositories.Repository
	publisher *events.MockEventPublisher
	now       time.Time
}

func (e *testEnv) clock() time.Time { return e.now }

func newTestEnv(t *testing.T, policy SessionConflictPolicy) *testEnv {
	t.Helper()
	return newTestEnvWithOrder(t, policy, importer.DateOrderDMY)
}

func newTestEnvWithOrder(t *testing.T, policy SessionConflictPolicy, order importer.DateOrder) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		repo:      postgres.NewRepository(db),
		publisher: events.NewMockEventPublisher(log),
		now:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	mapperCfg := importer.DefaultMapperConfig()
	mapperCfg.Now = env.clock
	pipeline := NewPipeline(env.repo, nil, nil, PipelineConfig{
		Mapper:    mapperCfg,
		Validator: importer.ValidatorConfig{DateOrder: order, Now: env.clock},
	}, nil, log)

	env.svc = NewImportService(env.repo, pipeline, env.publisher, nil, validator.New(), ImportServiceConfig{
		ConflictPolicy: policy,
		UndoWindow:     24 * time.Hour,
		Now:            env.clock,
	}, log)
	return env
}

func (e *testEnv) seedPlayer(t *testing.T, rec importer.Record) *models.Player {
	t.Helper()
	p := &models.Player{ID: uuid.NewString(), OrganizationID: testOrg}
	p.ApplyRecord(rec)
	require.NoError(t, e.repo.Players().Create(context.Background(), nil, p))
	return p
}

func (e *testEnv) player(t *testing.T, id string) *models.Player {
	t.Helper()
	p, err := e.repo.Players().GetByID(context.Background(), nil, testOrg, id)
	require.NoError(t, err)
	return p
}

func rosterUpload() *models.StartSessionRequest {
	return &models.StartSessionRequest{
		SourceFileName: "u12-roster.csv",
		SportCode:      "soccer",
		Headers:        []string{"First Name", "Last Name", "Date of Birth", "Email", "Team"},
		Rows: [][]string{
			{"Aoife", "Murphy", "2012-05-04", "aoife@example.com", "U12 Girls"},
			{"Sean", "Kelly", "2011-02-10", "sean@example.com", "U13 Boys"},
			{"Ciara", "Byrne", "2013-07-01", "new@example.com", "U12 Girls"},
			{"", "Walsh", "2012-01-01", "", ""},
			{"Aoife", "Murphy", "2012-05-04", "aoife@example.com", "U12 Girls"},
		},
	}
}

// moveToReview walks the wizard to the review step with benchmark settings.
func (e *testEnv) moveToReview(t *testing.T, id string, decisions map[int]models.ConflictResolution) {
	t.Helper()
	ctx := context.Background()
	_, err := e.svc.SaveDraft(ctx, coach, id, &models.SaveDraftRequest{Step: models.StepSelection})
	require.NoError(t, err)
	_, err = e.svc.SaveDraft(ctx, coach, id, &models.SaveDraftRequest{
		Step:      models.StepReview,
		Decisions: decisions,
		Benchmark: &models.BenchmarkSettingsRequest{Strategy: string(importer.StrategyMiddle)},
		Skills:    []string{"passing", "shooting"},
	})
	require.NoError(t, err)
}

func TestStartSessionMapsColumns(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()

	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)

	assert.Equal(t, models.ImportMapping, session.Status)
	assert.Equal(t, 5, session.TotalRows)
	require.NotNil(t, session.ActiveKey)

	st, err := decodeSession(session)
	require.NoError(t, err)
	assert.Empty(t, missingRequired(st.Mappings))
	assert.Equal(t, importer.FieldEmail, st.Mappings[3].TargetField)

	started := env.publisher.EventsOfType(events.EventImportStarted)
	require.Len(t, started, 1)
	assert.Equal(t, testOrg, started[0].OrganizationID)
}

func TestStartSessionRejectsEmptyUpload(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	req := rosterUpload()
	req.Rows = nil

	_, err := env.svc.StartSession(context.Background(), coach, req)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestStartSessionConflictPolicy(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		env := newTestEnv(t, ConflictReject)
		ctx := context.Background()
		_, err := env.svc.StartSession(ctx, coach, rosterUpload())
		require.NoError(t, err)

		_, err = env.svc.StartSession(ctx, coach, rosterUpload())
		assert.ErrorIs(t, err, ErrActiveSessionExists)
		assert.True(t, IsConflict(err))

		// another user in the same organization is unaffected
		_, err = env.svc.StartSession(ctx, Actor{UserID: "coach-2", OrganizationID: testOrg}, rosterUpload())
		assert.NoError(t, err)
	})

	t.Run("replace", func(t *testing.T) {
		env := newTestEnv(t, ConflictReplace)
		ctx := context.Background()
		first, err := env.svc.StartSession(ctx, coach, rosterUpload())
		require.NoError(t, err)

		second, err := env.svc.StartSession(ctx, coach, rosterUpload())
		require.NoError(t, err)

		old, err := env.svc.GetSession(ctx, coach, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ImportCancelled, old.Status)
		assert.Nil(t, old.ActiveKey)

		active, err := env.svc.GetActiveSession(ctx, coach)
		require.NoError(t, err)
		assert.Equal(t, second.ID, active.ID)
	})
}

func TestSessionAccess(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)

	_, err = env.svc.GetSession(ctx, Actor{UserID: "coach-1", OrganizationID: "org-2"}, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = env.svc.CancelSession(ctx, Actor{UserID: "coach-2", OrganizationID: testOrg}, session.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSaveDraft(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)

	t.Run("manual mapping releases the previous column", func(t *testing.T) {
		updated, err := env.svc.SaveDraft(ctx, coach, session.ID, &models.SaveDraftRequest{
			Step:     models.StepMapping,
			Mappings: []models.MappingOverride{{SourceColumn: "Team", TargetField: string(importer.FieldEmail)}},
		})
		require.NoError(t, err)

		st, err := decodeSession(updated)
		require.NoError(t, err)
		assert.Equal(t, importer.FieldEmail, st.Mappings[4].TargetField)
		assert.Equal(t, importer.StrategyManual, st.Mappings[4].Strategy)
		assert.False(t, st.Mappings[3].Mapped())
	})

	t.Run("jumping ahead is an invalid transition", func(t *testing.T) {
		_, err := env.svc.SaveDraft(ctx, coach, session.ID, &models.SaveDraftRequest{Step: models.StepReview})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown target field fails validation", func(t *testing.T) {
		_, err := env.svc.SaveDraft(ctx, coach, session.ID, &models.SaveDraftRequest{
			Step:     models.StepMapping,
			Mappings: []models.MappingOverride{{SourceColumn: "Team", TargetField: "shoeSize"}},
		})
		assert.True(t, IsValidation(err))
	})

	t.Run("row selection out of range", func(t *testing.T) {
		_, err := env.svc.SaveDraft(ctx, coach, session.ID, &models.SaveDraftRequest{
			Step:         models.StepSelection,
			SelectedRows: []int{0, 9},
		})
		assert.True(t, IsValidation(err))
	})

	t.Run("unmapping a required field blocks review", func(t *testing.T) {
		_, err := env.svc.SaveDraft(ctx, coach, session.ID, &models.SaveDraftRequest{
			Step:     models.StepSelection,
			Mappings: []models.MappingOverride{{SourceColumn: "Last Name", TargetField: ""}},
		})
		require.NoError(t, err)
		_, err = env.svc.SaveDraft(ctx, coach, session.ID, &models.SaveDraftRequest{Step: models.StepReview})
		assert.ErrorIs(t, err, ErrMissingRequiredMaps)
	})
}

func TestSimulateSession(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	env.seedPlayer(t, importer.Record{
		importer.FieldFirstName: "Sean", importer.FieldLastName: "Kelly", importer.FieldDateOfBirth: "2011-02-10",
	})
	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)
	env.moveToReview(t, session.ID, nil)

	result, err := env.svc.Simulate(ctx, coach, session.ID, &models.SimulateRequest{})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Summary.TotalRows)
	assert.Equal(t, importer.ActionCreate, result.Previews[0].Action)
	assert.Equal(t, importer.ActionUpdate, result.Previews[1].Action)
	assert.Equal(t, importer.ActionSkip, result.Previews[3].Action)
	assert.Equal(t, importer.ActionDuplicate, result.Previews[4].Action)
	assert.Equal(t, 3*2, result.Summary.BenchmarksToApply)

	report, err := env.svc.ValidateRows(ctx, coach, session.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RowsWithErrors)

	quality, err := env.svc.ScoreQuality(ctx, coach, session.ID)
	require.NoError(t, err)
	assert.Less(t, quality.Dimensions.Uniqueness, 100)
}

func TestCommitAndPartialUndo(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	sean := env.seedPlayer(t, importer.Record{
		importer.FieldFirstName: "Sean", importer.FieldLastName: "Kelly", importer.FieldDateOfBirth: "2011-02-10",
	})
	ciara := env.seedPlayer(t, importer.Record{
		importer.FieldFirstName: "Ciara", importer.FieldLastName: "Byrne", importer.FieldDateOfBirth: "2013-07-01",
		importer.FieldEmail: "old@example.com",
	})

	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)
	env.moveToReview(t, session.ID, map[int]models.ConflictResolution{2: models.ResolveMerge})

	result, err := env.svc.Commit(ctx, coach, session.ID, &models.CommitRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.ImportCompleted, result.Status)
	assert.Equal(t, 1, result.Stats.Created)
	assert.Equal(t, 2, result.Stats.Updated)
	assert.Equal(t, 2, result.Stats.Skipped)
	assert.Equal(t, 0, result.Stats.Failed)
	assert.Equal(t, 6, result.Stats.RatingsCreated)
	assert.Equal(t, 1, result.Stats.SkipReasons[SkipValidationErrors])
	assert.Equal(t, 1, result.Stats.SkipReasons[SkipDuplicate])
	require.Len(t, result.Rows, 5)

	created := result.Rows[0].PlayerID
	require.NotEmpty(t, created)
	assert.Equal(t, "sean@example.com", env.player(t, sean.ID).Email)
	assert.Equal(t, "new@example.com", env.player(t, ciara.ID).Email)

	ratings, err := env.repo.SkillRatings().GetByPlayer(ctx, nil, created)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, 3, ratings[0].Rating)

	done, err := env.svc.GetSession(ctx, coach, session.ID)
	require.NoError(t, err)
	assert.Nil(t, done.ActiveKey)
	assert.Equal(t, models.StepComplete, done.Step)
	assert.Len(t, env.publisher.EventsOfType(events.EventImportCompleted), 1)

	history, err := env.svc.ListMappingHistory(ctx, coach)
	require.NoError(t, err)
	assert.NotEmpty(t, history)

	eligibility, err := env.svc.CheckUndoEligibility(ctx, coach, session.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
	assert.Equal(t, 3, eligibility.UndoableRows)

	// undo only the merged conflict row
	undo, err := env.svc.Undo(ctx, coach, session.ID, &models.UndoRequest{RowIndexes: []int{2}, Reason: "wrong email"})
	require.NoError(t, err)
	assert.Equal(t, 1, undo.Restored)
	assert.False(t, undo.Full)
	assert.Equal(t, models.ImportCompleted, undo.Status)

	restored := env.player(t, ciara.ID)
	assert.Equal(t, "old@example.com", restored.Email)
	assert.Empty(t, restored.Team)
	assert.Equal(t, "sean@example.com", env.player(t, sean.ID).Email)

	// the rest
	undo, err = env.svc.Undo(ctx, coach, session.ID, &models.UndoRequest{All: true})
	require.NoError(t, err)
	assert.Equal(t, 1, undo.Deleted)
	assert.Equal(t, 1, undo.Restored)
	assert.True(t, undo.Full)
	assert.Equal(t, models.ImportUndone, undo.Status)

	_, err = env.repo.Players().GetByID(ctx, nil, testOrg, created)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, env.player(t, sean.ID).Email)

	left, err := env.repo.SkillRatings().GetByPlayer(ctx, nil, sean.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Len(t, env.publisher.EventsOfType(events.EventImportUndone), 2)

	_, err = env.svc.Undo(ctx, coach, session.ID, &models.UndoRequest{All: true})
	assert.ErrorIs(t, err, ErrUndoNotAllowed)
}

func TestCommitSkipsUnresolvedConflicts(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	ciara := env.seedPlayer(t, importer.Record{
		importer.FieldFirstName: "Ciara", importer.FieldLastName: "Byrne", importer.FieldDateOfBirth: "2013-07-01",
		importer.FieldEmail: "old@example.com",
	})
	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)
	env.moveToReview(t, session.ID, nil)

	result, err := env.svc.Commit(ctx, coach, session.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, result.Rows[2].Outcome)
	assert.Equal(t, SkipUnresolvedConflict, result.Rows[2].Reason)
	assert.Equal(t, "old@example.com", env.player(t, ciara.ID).Email)
}

func TestCommitGuards(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)

	_, err = env.svc.Commit(ctx, coach, session.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition, "commit before review")

	env.moveToReview(t, session.ID, nil)
	ok, err := env.repo.Sessions().TransitionStatus(ctx, nil, session.ID, models.ImportReviewing, models.ImportImporting)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.svc.Commit(ctx, coach, session.ID, nil)
	assert.ErrorIs(t, err, ErrCommitInProgress)

	_, err = env.svc.SaveDraft(ctx, coach, session.ID, &models.SaveDraftRequest{Step: models.StepMapping})
	assert.ErrorIs(t, err, ErrSessionNotEditable)
}

func TestUndoWindow(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	session, err := env.svc.StartSession(ctx, coach, rosterUpload())
	require.NoError(t, err)
	env.moveToReview(t, session.ID, nil)
	_, err = env.svc.Commit(ctx, coach, session.ID, nil)
	require.NoError(t, err)

	env.now = env.now.Add(25 * time.Hour)

	eligibility, err := env.svc.CheckUndoEligibility(ctx, coach, session.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)

	_, err = env.svc.Undo(ctx, coach, session.ID, &models.UndoRequest{All: true})
	assert.True(t, errors.Is(err, ErrUndoWindowClosed))
}

func TestUndoRequiresOneSelector(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	_, err := env.svc.Undo(context.Background(), coach, uuid.NewString(), &models.UndoRequest{All: true, RowIndexes: []int{1}})
	assert.True(t, IsValidation(err))
}

func TestPreviewIsStateless(t *testing.T) {
	env := newTestEnv(t, ConflictReject)
	ctx := context.Background()
	upload := rosterUpload()

	resp, err := env.svc.Preview(ctx, coach, &models.PreviewRequest{
		Headers:   upload.Headers,
		Rows:      upload.Rows,
		SportCode: "soccer",
		Skills:    []string{"passing"},
		Benchmark: &models.BenchmarkSettingsRequest{Strategy: string(importer.StrategyBlank)},
	})
	require.NoError(t, err)

	assert.Empty(t, resp.MissingFields)
	assert.Equal(t, 5, resp.Simulation.Summary.TotalRows)
	assert.Equal(t, map[string]int{"passing": 1}, resp.Benchmarks)

	_, err = env.svc.GetActiveSession(ctx, coach)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPlanRow(t *testing.T) {
	conflict := importer.PlayerPreview{Action: importer.ActionConflict}
	tests := []struct {
		name     string
		preview  importer.PlayerPreview
		decision models.ConflictResolution
		want     rowWrite
		reason   string
	}{
		{"conflict without decision", conflict, "", writeNone, SkipUnresolvedConflict},
		{"conflict merged", conflict, models.ResolveMerge, writeMerge, ""},
		{"conflict forced", conflict, models.ResolveForceCreate, writeCreate, ""},
		{"conflict skipped", conflict, models.ResolveSkip, writeNone, SkipByUser},
		{"duplicate ignores decision", importer.PlayerPreview{Action: importer.ActionDuplicate}, models.ResolveForceCreate, writeNone, SkipDuplicate},
		{"update fills", importer.PlayerPreview{Action: importer.ActionUpdate}, "", writeFill, ""},
		{"not selected", importer.PlayerPreview{Action: importer.ActionSkip, Reason: SkipNotSelected}, "", writeNone, SkipNotSelected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := planRow(tt.preview, tt.decision)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestCommitStoresCanonicalValues(t *testing.T) {
	env := newTestEnvWithOrder(t, ConflictReject, importer.DateOrderMDY)
	ctx := context.Background()
	upload := &models.StartSessionRequest{
		SourceFileName: "us-roster.csv",
		Headers:        []string{"First Name", "Last Name", "Date of Birth", "Gender"},
		Rows:           [][]string{{"John", "Doe", "05/01/2012", "Boy"}},
	}

	session, err := env.svc.StartSession(ctx, coach, upload)
	require.NoError(t, err)
	env.moveToReview(t, session.ID, nil)

	result, err := env.svc.Commit(ctx, coach, session.ID, &models.CommitRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Stats.Created)

	player := env.player(t, result.Rows[0].PlayerID)
	assert.Equal(t, "2012-05-01", player.DateOfBirth)
	assert.Equal(t, "male", player.Gender)

	again, err := env.svc.Preview(ctx, coach, &models.PreviewRequest{Headers: upload.Headers, Rows: upload.Rows})
	require.NoError(t, err)
	require.Len(t, again.Simulation.Previews, 1)
	assert.Equal(t, importer.ActionDuplicate, again.Simulation.Previews[0].Action)
	assert.Equal(t, player.ID, again.Simulation.Previews[0].MatchedExistingID)
}
