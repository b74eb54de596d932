package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arenahub/esports-ops/config"
	"github.com/arenahub/esports-ops/models"
)

const (
	soloOwnerID = 10
	teamOwnerID = 20
	organizerID = 50
	adminID     = 60
	staffID     = 70
	strangerID  = 80
)

var tournamentStart = time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

type checkinFixture struct {
	svc       *checkinService
	regRepo   *fakeRegistrationRepo
	teamRepo  *fakeTeamRepo
	perms     *fakePermissionResolver
	audit     *fakeAuditSink
	broadcast *fakeBroadcaster
}

// newCheckinFixture собирает сервис на фейках. Турнир 1 стартует в
// tournamentStart; окно 30 минут, отмена 15 минут, лимит батча 200.
func newCheckinFixture(regs ...*models.Registration) *checkinFixture {
	f := &checkinFixture{
		regRepo:   newFakeRegistrationRepo(regs...),
		teamRepo:  newFakeTeamRepo(),
		audit:     &fakeAuditSink{},
		broadcast: &fakeBroadcaster{},
	}
	f.perms = &fakePermissionResolver{sets: map[int]CapabilitySet{
		organizerID: UniversalCapabilitySet(),
		adminID:     UniversalCapabilitySet(),
		staffID:     NewCapabilitySet(CapManageCheckin),
	}}

	tournamentRepo := newFakeTournamentRepo(&models.Tournament{
		ID:          1,
		Name:        "Spring Cup",
		OrganizerID: organizerID,
		StartTime:   tournamentStart,
		Status:      models.StatusActive,
	})
	userRepo := newFakeUserRepo(
		&models.User{ID: soloOwnerID, Role: models.RolePlayer},
		&models.User{ID: teamOwnerID, Role: models.RolePlayer},
		&models.User{ID: organizerID, Role: models.RoleOrganizer},
		&models.User{ID: adminID, Role: models.RoleAdmin},
		&models.User{ID: staffID, Role: models.RolePlayer},
		&models.User{ID: strangerID, Role: models.RolePlayer},
	)

	cfg := config.CheckinConfig{
		WindowBefore: 30 * time.Minute,
		UndoWindow:   15 * time.Minute,
		BulkLimit:    200,
	}
	f.svc = NewCheckinService(
		fakeTxManager{}, f.regRepo, tournamentRepo, userRepo, f.teamRepo,
		f.perms, f.audit, f.broadcast, cfg, discardLogger(),
	).(*checkinService)
	return f
}

func (f *checkinFixture) at(now time.Time) {
	f.svc.now = func() time.Time { return now }
}

func confirmedReg(id int) *models.Registration {
	return &models.Registration{
		ID:           id,
		TournamentID: 1,
		UserID:       intPtr(soloOwnerID),
		Status:       models.RegistrationConfirmed,
	}
}

func TestCheckIn_Window(t *testing.T) {
	tests := []struct {
		name        string
		now         time.Time
		errContains string
	}{
		{"45 minutes early", tournamentStart.Add(-45 * time.Minute), "check-in opens"},
		{"exactly at window open", tournamentStart.Add(-30 * time.Minute), ""},
		{"20 minutes before start", tournamentStart.Add(-20 * time.Minute), ""},
		{"one second before start", tournamentStart.Add(-time.Second), ""},
		{"at start", tournamentStart, "already started"},
		{"after start", tournamentStart.Add(5 * time.Minute), "already started"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckinFixture(confirmedReg(100))
			f.at(tt.now)

			reg, err := f.svc.CheckIn(context.Background(), 100, soloOwnerID)
			if tt.errContains != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsValidation(err) {
					t.Errorf("error is not a validation error: %v", err)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				if len(f.audit.events) != 0 || len(f.broadcast.events) != 0 {
					t.Error("failed check-in must not produce audit events or broadcasts")
				}
				return
			}

			if err != nil {
				t.Fatalf("CheckIn returned error: %v", err)
			}
			if !reg.CheckedIn || reg.CheckedInAt == nil || !reg.CheckedInAt.Equal(tt.now) {
				t.Errorf("registration not marked checked in at %v: %+v", tt.now, reg)
			}
			if len(f.audit.events) != 1 || f.audit.events[0].Action != models.AuditRegistrationCheckin {
				t.Errorf("expected exactly one check-in audit event, got %v", f.audit.events)
			}
			if len(f.broadcast.events) != 1 {
				t.Errorf("expected exactly one broadcast, got %d", len(f.broadcast.events))
			}
		})
	}
}

func TestCheckIn_Idempotent(t *testing.T) {
	f := newCheckinFixture(confirmedReg(100))

	first := tournamentStart.Add(-25 * time.Minute)
	f.at(first)
	if _, err := f.svc.CheckIn(context.Background(), 100, soloOwnerID); err != nil {
		t.Fatalf("first CheckIn returned error: %v", err)
	}

	f.at(tournamentStart.Add(-20 * time.Minute))
	reg, err := f.svc.CheckIn(context.Background(), 100, soloOwnerID)
	if err != nil {
		t.Fatalf("second CheckIn returned error: %v", err)
	}

	if reg.CheckedInAt == nil || !reg.CheckedInAt.Equal(first) {
		t.Errorf("repeated check-in must keep the original timestamp, got %v", reg.CheckedInAt)
	}
	if len(f.audit.events) != 1 {
		t.Errorf("repeated check-in must not add audit events, got %d", len(f.audit.events))
	}
	if len(f.broadcast.events) != 1 {
		t.Errorf("repeated check-in must not broadcast again, got %d", len(f.broadcast.events))
	}
}

func TestCheckIn_StatusGuards(t *testing.T) {
	tests := []struct {
		name        string
		status      models.RegistrationStatus
		errContains string
	}{
		{"pending", models.RegistrationPending, "must be"},
		{"cancelled", models.RegistrationCancelled, "cancelled"},
		{"no-show", models.RegistrationNoShow, "must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := confirmedReg(100)
			reg.Status = tt.status
			f := newCheckinFixture(reg)
			f.at(tournamentStart.Add(-20 * time.Minute))

			_, err := f.svc.CheckIn(context.Background(), 100, soloOwnerID)
			if err == nil || !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q does not contain %q", err, tt.errContains)
			}
		})
	}
}

func TestCheckIn_Permissions(t *testing.T) {
	tests := []struct {
		name    string
		actorID int
		wantErr bool
	}{
		{"registration owner", soloOwnerID, false},
		{"organizer", organizerID, false},
		{"staff with manage_checkin", staffID, false},
		{"stranger", strangerID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckinFixture(confirmedReg(100))
			f.at(tournamentStart.Add(-20 * time.Minute))

			_, err := f.svc.CheckIn(context.Background(), 100, tt.actorID)
			if tt.wantErr {
				if err == nil || !IsPermission(err) {
					t.Fatalf("expected permission error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckIn returned error: %v", err)
			}
		})
	}
}

func TestCheckIn_TeamRegistration(t *testing.T) {
	reg := &models.Registration{
		ID:           100,
		TournamentID: 1,
		TeamID:       intPtr(5),
		Status:       models.RegistrationConfirmed,
	}
	f := newCheckinFixture(reg)
	f.teamRepo.setOwner(5, teamOwnerID)
	f.at(tournamentStart.Add(-20 * time.Minute))

	if _, err := f.svc.CheckIn(context.Background(), 100, strangerID); err == nil || !IsPermission(err) {
		t.Fatalf("non-owner check-in of a team registration: expected permission error, got %v", err)
	}

	checked, err := f.svc.CheckIn(context.Background(), 100, teamOwnerID)
	if err != nil {
		t.Fatalf("team owner CheckIn returned error: %v", err)
	}
	if !checked.CheckedIn {
		t.Error("team registration not marked checked in")
	}
}

func TestUndoCheckIn(t *testing.T) {
	checkedInAt := tournamentStart.Add(-25 * time.Minute)

	checkedReg := func() *models.Registration {
		reg := confirmedReg(100)
		reg.CheckedIn = true
		at := checkedInAt
		reg.CheckedInAt = &at
		return reg
	}

	tests := []struct {
		name         string
		actorID      int
		now          time.Time
		wantErr      string // пусто = успех
		wantOverride bool
	}{
		{"owner inside undo window", soloOwnerID, checkedInAt.Add(4 * time.Minute), "", false},
		{"owner at deadline", soloOwnerID, checkedInAt.Add(15 * time.Minute), "", false},
		{"owner past deadline", soloOwnerID, checkedInAt.Add(16 * time.Minute), "within", false},
		{"organizer past deadline", organizerID, checkedInAt.Add(16 * time.Minute), "", true},
		{"admin past deadline", adminID, checkedInAt.Add(2 * time.Hour), "", true},
		{"staff with manage_checkin past deadline", staffID, checkedInAt.Add(time.Hour), "", true},
		{"stranger", strangerID, checkedInAt.Add(time.Minute), "ownership", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckinFixture(checkedReg())
			f.at(tt.now)

			reg, err := f.svc.UndoCheckIn(context.Background(), 100, tt.actorID, "")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("UndoCheckIn returned error: %v", err)
			}
			if reg.CheckedIn || reg.CheckedInAt != nil {
				t.Errorf("registration still checked in after undo: %+v", reg)
			}
			if len(f.audit.events) != 1 {
				t.Fatalf("expected one audit event, got %d", len(f.audit.events))
			}
			event := f.audit.events[0]
			if event.Action != models.AuditRegistrationCheckinRevert {
				t.Errorf("audit action = %s, want %s", event.Action, models.AuditRegistrationCheckinRevert)
			}
			if got := event.Metadata["organizer_override"]; got != tt.wantOverride {
				t.Errorf("organizer_override = %v, want %v", got, tt.wantOverride)
			}
		})
	}
}

// Guard "должен быть отмечен" безусловен: даже админ не может отменить
// несуществующую отметку.
func TestUndoCheckIn_NotCheckedIn(t *testing.T) {
	for _, actorID := range []int{soloOwnerID, adminID} {
		f := newCheckinFixture(confirmedReg(100))
		f.at(tournamentStart.Add(-20 * time.Minute))

		_, err := f.svc.UndoCheckIn(context.Background(), 100, actorID, "")
		if err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "not checked in") {
			t.Errorf("actor %d: expected 'not checked in' validation error, got %v", actorID, err)
		}
	}
}

func TestUndoCheckIn_ReasonRecorded(t *testing.T) {
	reg := confirmedReg(100)
	reg.CheckedIn = true
	at := tournamentStart.Add(-25 * time.Minute)
	reg.CheckedInAt = &at

	f := newCheckinFixture(reg)
	f.at(at.Add(time.Hour))

	if _, err := f.svc.UndoCheckIn(context.Background(), 100, organizerID, "marked by mistake"); err != nil {
		t.Fatalf("UndoCheckIn returned error: %v", err)
	}
	if got := f.audit.events[0].Metadata["reason"]; got != "marked by mistake" {
		t.Errorf("audit reason = %v, want %q", got, "marked by mistake")
	}
}

func TestBulkCheckIn_Validation(t *testing.T) {
	f := newCheckinFixture()
	f.at(tournamentStart.Add(-20 * time.Minute))
	ctx := context.Background()

	if _, err := f.svc.BulkCheckIn(ctx, nil, organizerID); err == nil || !IsValidation(err) {
		t.Errorf("empty id list: expected validation error, got %v", err)
	}

	f.svc.cfg.BulkLimit = 2
	if _, err := f.svc.BulkCheckIn(ctx, []int{1, 2, 3}, organizerID); err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "limited to 2") {
		t.Errorf("over limit: expected validation error about the limit, got %v", err)
	}

	// Дубликаты ловятся в пределах лимита, а не после него.
	if _, err := f.svc.BulkCheckIn(ctx, []int{1, 1}, organizerID); err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("duplicate ids: expected validation error, got %v", err)
	}
}

// Один чужой турнир валит весь батч до каких-либо мутаций.
func TestBulkCheckIn_BatchPermission(t *testing.T) {
	foreign := &models.Registration{
		ID:           200,
		TournamentID: 2,
		UserID:       intPtr(strangerID),
		Status:       models.RegistrationConfirmed,
	}
	f := newCheckinFixture(confirmedReg(100), foreign)

	// Второй турнир, на котором у актора прав нет.
	tournamentRepo := newFakeTournamentRepo(
		&models.Tournament{ID: 1, OrganizerID: organizerID, StartTime: tournamentStart, Status: models.StatusActive},
		&models.Tournament{ID: 2, OrganizerID: strangerID, StartTime: tournamentStart, Status: models.StatusActive},
	)
	f.svc.tournamentRepo = tournamentRepo
	f.perms.fn = func(tournament *models.Tournament, actor *models.User) (CapabilitySet, error) {
		if tournament.ID == 1 {
			return NewCapabilitySet(CapManageCheckin), nil
		}
		return NewCapabilitySet(), nil
	}
	f.at(tournamentStart.Add(-20 * time.Minute))

	_, err := f.svc.BulkCheckIn(context.Background(), []int{100, 200}, staffID)
	if err == nil || !IsPermission(err) {
		t.Fatalf("expected permission error for the whole batch, got %v", err)
	}
	if f.regRepo.regs[100].CheckedIn || f.regRepo.regs[200].CheckedIn {
		t.Error("batch permission failure must not mutate any registration")
	}
	if len(f.audit.events) != 0 || len(f.broadcast.events) != 0 {
		t.Error("batch permission failure must not produce audit events or broadcasts")
	}
}

func TestBulkCheckIn_Partition(t *testing.T) {
	already := confirmedReg(101)
	already.CheckedIn = true
	at := tournamentStart.Add(-28 * time.Minute)
	already.CheckedInAt = &at

	pending := confirmedReg(103)
	pending.Status = models.RegistrationPending

	f := newCheckinFixture(confirmedReg(100), already, pending)
	f.at(tournamentStart.Add(-20 * time.Minute))

	ids := []int{100, 101, 102, 103}
	result, err := f.svc.BulkCheckIn(context.Background(), ids, organizerID)
	if err != nil {
		t.Fatalf("BulkCheckIn returned error: %v", err)
	}

	if len(result.Success) != 1 || result.Success[0].RegistrationID != 100 {
		t.Errorf("Success = %+v, want exactly registration 100", result.Success)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].RegistrationID != 101 {
		t.Errorf("Skipped = %+v, want exactly registration 101", result.Skipped)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Errors = %+v, want registrations 102 and 103", result.Errors)
	}

	// Раскладка исчерпывающа и непересекающаяся: каждый входной id ровно
	// в одном списке.
	seen := make(map[int]int)
	for _, s := range result.Success {
		seen[s.RegistrationID]++
	}
	for _, s := range result.Skipped {
		seen[s.RegistrationID]++
	}
	for _, e := range result.Errors {
		seen[e.RegistrationID]++
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("registration %d appears %d times across the partition, want exactly 1", id, seen[id])
		}
	}

	if len(f.audit.events) != 1 {
		t.Errorf("expected one audit event for the single success, got %d", len(f.audit.events))
	}
	if f.audit.events[0].Metadata["bulk"] != true {
		t.Error("bulk check-in audit event must carry bulk=true metadata")
	}
}

// Неожиданная ошибка хранилища по одному элементу не валит батч и не
// протекает наружу текстом.
func TestBulkCheckIn_UnexpectedItemError(t *testing.T) {
	f := newCheckinFixture(confirmedReg(100), confirmedReg(101))
	f.regRepo.updateErrFor = map[int]error{100: errors.New("disk full")}
	f.at(tournamentStart.Add(-20 * time.Minute))

	result, err := f.svc.BulkCheckIn(context.Background(), []int{100, 101}, organizerID)
	if err != nil {
		t.Fatalf("BulkCheckIn returned error: %v", err)
	}
	if len(result.Errors) != 1 || result.Errors[0].RegistrationID != 100 || result.Errors[0].Reason != "internal error" {
		t.Errorf("Errors = %+v, want registration 100 with reason 'internal error'", result.Errors)
	}
	if len(result.Success) != 1 || result.Success[0].RegistrationID != 101 {
		t.Errorf("Success = %+v, want registration 101", result.Success)
	}
}

func TestGetStatus(t *testing.T) {
	f := newCheckinFixture(confirmedReg(100))
	ctx := context.Background()

	// До открытия окна.
	f.at(tournamentStart.Add(-time.Hour))
	status, err := f.svc.GetStatus(ctx, 100, soloOwnerID)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if status.WindowOpen {
		t.Error("WindowOpen = true an hour before start, want false")
	}
	if want := tournamentStart.Add(-30 * time.Minute); !status.OpensAt.Equal(want) {
		t.Errorf("OpensAt = %v, want %v", status.OpensAt, want)
	}
	if status.CanUndo || status.UndoDeadline != nil {
		t.Error("nothing to undo before check-in")
	}

	// Чек-ин и статус внутри окна отмены.
	checkedInAt := tournamentStart.Add(-25 * time.Minute)
	f.at(checkedInAt)
	if _, err := f.svc.CheckIn(ctx, 100, soloOwnerID); err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}

	f.at(checkedInAt.Add(5 * time.Minute))
	status, err = f.svc.GetStatus(ctx, 100, soloOwnerID)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if !status.WindowOpen {
		t.Error("WindowOpen = false inside the window, want true")
	}
	if !status.CanUndo {
		t.Error("owner inside undo window must be able to undo")
	}
	if status.UndoDeadline == nil || !status.UndoDeadline.Equal(checkedInAt.Add(15*time.Minute)) {
		t.Errorf("UndoDeadline = %v, want %v", status.UndoDeadline, checkedInAt.Add(15*time.Minute))
	}

	// После истечения окна: владелец — нет, админ — да.
	f.at(checkedInAt.Add(time.Hour))
	status, err = f.svc.GetStatus(ctx, 100, soloOwnerID)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if status.CanUndo {
		t.Error("owner past the undo window must not be able to undo")
	}

	status, err = f.svc.GetStatus(ctx, 100, adminID)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if !status.CanUndo {
		t.Error("admin must be able to undo at any time")
	}
	if status.UndoDeadline != nil {
		t.Error("UndoDeadline is owner-only, admin must not get one")
	}
}
