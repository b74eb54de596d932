package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arenahub/esports-ops/models"
)

type matchFixture struct {
	svc       *matchOpsService
	matchRepo *fakeMatchRepo
	perms     *fakePermissionResolver
	audit     *fakeAuditSink
	broadcast *fakeBroadcaster
}

func newMatchFixture(matches ...*models.Match) *matchFixture {
	f := &matchFixture{
		matchRepo: newFakeMatchRepo(matches...),
		audit:     &fakeAuditSink{},
		broadcast: &fakeBroadcaster{},
	}
	f.perms = &fakePermissionResolver{sets: map[int]CapabilitySet{
		organizerID: UniversalCapabilitySet(),
		staffID:     NewCapabilitySet(CapManageMatches),
	}}

	tournamentRepo := newFakeTournamentRepo(&models.Tournament{
		ID:          1,
		OrganizerID: organizerID,
		StartTime:   tournamentStart,
		Status:      models.StatusActive,
	})
	userRepo := newFakeUserRepo(
		&models.User{ID: organizerID, Role: models.RoleOrganizer},
		&models.User{ID: staffID, Role: models.RolePlayer},
		&models.User{ID: strangerID, Role: models.RolePlayer},
	)

	f.svc = NewMatchOpsService(
		fakeTxManager{}, f.matchRepo, tournamentRepo, userRepo,
		f.perms, f.audit, f.broadcast, discardLogger(),
	).(*matchOpsService)
	f.svc.now = func() time.Time { return tournamentStart.Add(10 * time.Minute) }
	return f
}

func scheduledMatch(id int) *models.Match {
	return &models.Match{
		ID:           id,
		TournamentID: 1,
		Status:       models.MatchScheduled,
		ScheduledAt:  tournamentStart,
	}
}

func matchWithStatus(id int, status models.MatchStatus) *models.Match {
	m := scheduledMatch(id)
	m.Status = status
	return m
}

func TestMatchTransitions(t *testing.T) {
	ctx := context.Background()
	forceInput := ForceCompleteInput{Reason: "opponent disconnected"}

	tests := []struct {
		name       string
		from       models.MatchStatus
		op         func(f *matchFixture) (*models.Match, error)
		wantStatus models.MatchStatus
		wantErr    bool
	}{
		{"scheduled to live", models.MatchScheduled, func(f *matchFixture) (*models.Match, error) {
			return f.svc.MarkLive(ctx, 1, organizerID)
		}, models.MatchLive, false},
		{"live to live is invalid", models.MatchLive, func(f *matchFixture) (*models.Match, error) {
			return f.svc.MarkLive(ctx, 1, organizerID)
		}, "", true},
		{"live to paused", models.MatchLive, func(f *matchFixture) (*models.Match, error) {
			return f.svc.Pause(ctx, 1, organizerID, "server crash")
		}, models.MatchPaused, false},
		{"scheduled to paused is invalid", models.MatchScheduled, func(f *matchFixture) (*models.Match, error) {
			return f.svc.Pause(ctx, 1, organizerID, "")
		}, "", true},
		{"paused to live", models.MatchPaused, func(f *matchFixture) (*models.Match, error) {
			return f.svc.Resume(ctx, 1, organizerID)
		}, models.MatchLive, false},
		{"scheduled resume is invalid", models.MatchScheduled, func(f *matchFixture) (*models.Match, error) {
			return f.svc.Resume(ctx, 1, organizerID)
		}, "", true},
		{"scheduled force-complete", models.MatchScheduled, func(f *matchFixture) (*models.Match, error) {
			return f.svc.ForceComplete(ctx, 1, organizerID, forceInput)
		}, models.MatchCompleted, false},
		{"paused force-complete", models.MatchPaused, func(f *matchFixture) (*models.Match, error) {
			return f.svc.ForceComplete(ctx, 1, organizerID, forceInput)
		}, models.MatchCompleted, false},
		{"completed is terminal", models.MatchCompleted, func(f *matchFixture) (*models.Match, error) {
			return f.svc.ForceComplete(ctx, 1, organizerID, forceInput)
		}, "", true},
		{"cancelled is terminal", models.MatchCancelled, func(f *matchFixture) (*models.Match, error) {
			return f.svc.ForceComplete(ctx, 1, organizerID, forceInput)
		}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMatchFixture(matchWithStatus(1, tt.from))

			match, err := tt.op(f)
			if tt.wantErr {
				if err == nil || !IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if got := f.matchRepo.matches[1].Status; got != tt.from {
					t.Errorf("failed transition must not change status, got %s", got)
				}
				if len(f.audit.events) != 0 || len(f.broadcast.events) != 0 {
					t.Error("failed transition must not produce audit events or broadcasts")
				}
				return
			}

			if err != nil {
				t.Fatalf("transition returned error: %v", err)
			}
			if match.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", match.Status, tt.wantStatus)
			}
			if len(f.audit.events) != 1 {
				t.Errorf("expected one audit event, got %d", len(f.audit.events))
			}
			if len(f.broadcast.events) != 1 {
				t.Errorf("expected one broadcast, got %d", len(f.broadcast.events))
			}
		})
	}
}

func TestMarkLive_SetsStartedAt(t *testing.T) {
	f := newMatchFixture(scheduledMatch(1))

	match, err := f.svc.MarkLive(context.Background(), 1, organizerID)
	if err != nil {
		t.Fatalf("MarkLive returned error: %v", err)
	}
	if match.StartedAt == nil {
		t.Fatal("StartedAt not set on live transition")
	}

	// Пауза и возобновление не трогают started_at.
	started := *match.StartedAt
	if _, err := f.svc.Pause(context.Background(), 1, organizerID, ""); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	f.svc.now = func() time.Time { return started.Add(30 * time.Minute) }
	match, err = f.svc.Resume(context.Background(), 1, organizerID)
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if match.StartedAt == nil || !match.StartedAt.Equal(started) {
		t.Errorf("Resume changed StartedAt: %v, want %v", match.StartedAt, started)
	}
}

func TestForceComplete_RequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\t\n"} {
		f := newMatchFixture(matchWithStatus(1, models.MatchLive))

		_, err := f.svc.ForceComplete(context.Background(), 1, organizerID, ForceCompleteInput{Reason: reason})
		if err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "reason is required") {
			t.Errorf("reason %q: expected validation error about the reason, got %v", reason, err)
		}
		if f.matchRepo.matches[1].Status != models.MatchLive {
			t.Error("match mutated despite missing reason")
		}
	}
}

func TestForceComplete_RecordsResult(t *testing.T) {
	f := newMatchFixture(matchWithStatus(1, models.MatchLive))

	score := "2:1"
	input := ForceCompleteInput{
		Reason:     "dispute resolved by referee",
		Score:      &score,
		ResultData: []byte(`{"maps":["inferno","nuke"]}`),
	}
	match, err := f.svc.ForceComplete(context.Background(), 1, organizerID, input)
	if err != nil {
		t.Fatalf("ForceComplete returned error: %v", err)
	}
	if match.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if match.Score == nil || *match.Score != score {
		t.Errorf("Score = %v, want %s", match.Score, score)
	}
	if len(match.ResultData) == 0 {
		t.Error("ResultData not carried over")
	}

	event := f.audit.events[0]
	if event.Action != models.AuditMatchForceCompleted {
		t.Errorf("audit action = %s, want %s", event.Action, models.AuditMatchForceCompleted)
	}
	if event.Metadata["reason"] != "dispute resolved by referee" {
		t.Errorf("audit reason = %v", event.Metadata["reason"])
	}
	if event.Metadata["score"] != score {
		t.Errorf("audit score = %v, want %s", event.Metadata["score"], score)
	}
}

func TestTransition_PermissionDenied(t *testing.T) {
	f := newMatchFixture(scheduledMatch(1))

	_, err := f.svc.MarkLive(context.Background(), 1, strangerID)
	if err == nil || !IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if f.matchRepo.matches[1].Status != models.MatchScheduled {
		t.Error("match mutated despite permission failure")
	}
	if len(f.audit.events) != 0 || len(f.broadcast.events) != 0 {
		t.Error("permission failure must not produce audit events or broadcasts")
	}
}

func TestAddNote(t *testing.T) {
	f := newMatchFixture(matchWithStatus(1, models.MatchLive))
	f.perms.sets[strangerID] = NewCapabilitySet()
	f.perms.sets[adminID] = NewCapabilitySet(CapResolveDisputes)
	f.svc.userRepo = newFakeUserRepo(
		&models.User{ID: organizerID, Role: models.RoleOrganizer},
		&models.User{ID: adminID, Role: models.RolePlayer},
		&models.User{ID: strangerID, Role: models.RolePlayer},
	)
	ctx := context.Background()

	if _, err := f.svc.AddNote(ctx, 1, organizerID, "   "); err == nil || !IsValidation(err) {
		t.Errorf("empty body: expected validation error, got %v", err)
	}

	if _, err := f.svc.AddNote(ctx, 1, strangerID, "who won?"); err == nil || !IsPermission(err) {
		t.Errorf("stranger: expected permission error, got %v", err)
	}

	// resolve_disputes достаточно для заметок, хоть и не для переходов.
	note, err := f.svc.AddNote(ctx, 1, adminID, "round 12 under review")
	if err != nil {
		t.Fatalf("AddNote returned error: %v", err)
	}
	if note.ID == 0 || note.AuthorID != adminID {
		t.Errorf("note not persisted correctly: %+v", note)
	}

	notes, err := f.svc.ListNotes(ctx, 1, adminID)
	if err != nil {
		t.Fatalf("ListNotes returned error: %v", err)
	}
	if len(notes) != 1 || notes[0].Body != "round 12 under review" {
		t.Errorf("ListNotes = %+v, want the single added note", notes)
	}
}
