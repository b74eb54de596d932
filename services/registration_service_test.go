package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arenahub/esports-ops/models"
)

type registrationFixture struct {
	svc      *registrationService
	regRepo  *fakeRegistrationRepo
	teamRepo *fakeTeamRepo
	perms    *fakePermissionResolver
}

func newRegistrationFixture(regs ...*models.Registration) *registrationFixture {
	f := &registrationFixture{
		regRepo:  newFakeRegistrationRepo(regs...),
		teamRepo: newFakeTeamRepo(),
	}
	f.perms = &fakePermissionResolver{sets: map[int]CapabilitySet{
		organizerID: UniversalCapabilitySet(),
		staffID:     NewCapabilitySet(CapManageRegistrations),
	}}

	tournamentRepo := newFakeTournamentRepo(&models.Tournament{
		ID:              1,
		OrganizerID:     organizerID,
		Status:          models.StatusRegistration,
		RegCloseTime:    tournamentStart.Add(-time.Hour),
		StartTime:       tournamentStart,
		MaxParticipants: 2,
	})
	userRepo := newFakeUserRepo(
		&models.User{ID: soloOwnerID, Role: models.RolePlayer},
		&models.User{ID: teamOwnerID, Role: models.RolePlayer},
		&models.User{ID: organizerID, Role: models.RoleOrganizer},
		&models.User{ID: staffID, Role: models.RolePlayer},
		&models.User{ID: strangerID, Role: models.RolePlayer},
	)

	f.svc = NewRegistrationService(f.regRepo, tournamentRepo, f.teamRepo, userRepo, f.perms).(*registrationService)
	f.svc.now = func() time.Time { return tournamentStart.Add(-2 * time.Hour) }
	return f
}

func TestRegister_Solo(t *testing.T) {
	f := newRegistrationFixture()

	reg, err := f.svc.Register(context.Background(), soloOwnerID, RegistrationInput{TournamentID: 1})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if reg.UserID == nil || *reg.UserID != soloOwnerID {
		t.Errorf("UserID = %v, want %d", reg.UserID, soloOwnerID)
	}
	if reg.Status != models.RegistrationPending {
		t.Errorf("new registration status = %s, want pending", reg.Status)
	}
}

func TestRegister_Guards(t *testing.T) {
	t.Run("after close time", func(t *testing.T) {
		f := newRegistrationFixture()
		f.svc.now = func() time.Time { return tournamentStart.Add(-30 * time.Minute) }

		_, err := f.svc.Register(context.Background(), soloOwnerID, RegistrationInput{TournamentID: 1})
		if err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "closed") {
			t.Errorf("expected 'registration closed' error, got %v", err)
		}
	})

	t.Run("capacity reached", func(t *testing.T) {
		taken := []*models.Registration{
			{ID: 1, TournamentID: 1, UserID: intPtr(201), Status: models.RegistrationConfirmed},
			{ID: 2, TournamentID: 1, UserID: intPtr(202), Status: models.RegistrationConfirmed},
		}
		f := newRegistrationFixture(taken...)

		_, err := f.svc.Register(context.Background(), soloOwnerID, RegistrationInput{TournamentID: 1})
		if err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "full") {
			t.Errorf("expected 'tournament is full' error, got %v", err)
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		f := newRegistrationFixture(&models.Registration{
			ID: 1, TournamentID: 1, UserID: intPtr(soloOwnerID), Status: models.RegistrationPending,
		})

		_, err := f.svc.Register(context.Background(), soloOwnerID, RegistrationInput{TournamentID: 1})
		if err == nil || !IsConflict(err) {
			t.Errorf("expected conflict error, got %v", err)
		}
	})

	t.Run("team registration requires active owner", func(t *testing.T) {
		f := newRegistrationFixture()
		f.teamRepo.setOwner(5, teamOwnerID)

		if _, err := f.svc.Register(context.Background(), strangerID, RegistrationInput{TournamentID: 1, TeamID: intPtr(5)}); err == nil || !IsPermission(err) {
			t.Errorf("non-owner: expected permission error, got %v", err)
		}
		reg, err := f.svc.Register(context.Background(), teamOwnerID, RegistrationInput{TournamentID: 1, TeamID: intPtr(5)})
		if err != nil {
			t.Fatalf("owner Register returned error: %v", err)
		}
		if reg.TeamID == nil || *reg.TeamID != 5 || reg.UserID != nil {
			t.Errorf("team registration malformed: %+v", reg)
		}
	})
}

func TestCancel(t *testing.T) {
	newReg := func() *models.Registration {
		return &models.Registration{
			ID: 1, TournamentID: 1, UserID: intPtr(soloOwnerID), Status: models.RegistrationConfirmed,
		}
	}
	ctx := context.Background()

	t.Run("owner cancels", func(t *testing.T) {
		f := newRegistrationFixture(newReg())
		if err := f.svc.Cancel(ctx, 1, soloOwnerID); err != nil {
			t.Fatalf("Cancel returned error: %v", err)
		}
		if f.regRepo.regs[1].Status != models.RegistrationCancelled {
			t.Errorf("status = %s, want cancelled", f.regRepo.regs[1].Status)
		}
	})

	t.Run("already cancelled is a no-op", func(t *testing.T) {
		reg := newReg()
		reg.Status = models.RegistrationCancelled
		f := newRegistrationFixture(reg)
		if err := f.svc.Cancel(ctx, 1, soloOwnerID); err != nil {
			t.Errorf("cancelling a cancelled registration must succeed, got %v", err)
		}
	})

	t.Run("checked-in registration is protected", func(t *testing.T) {
		reg := newReg()
		reg.CheckedIn = true
		at := tournamentStart.Add(-20 * time.Minute)
		reg.CheckedInAt = &at
		f := newRegistrationFixture(reg)

		err := f.svc.Cancel(ctx, 1, soloOwnerID)
		if err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "undo the check-in") {
			t.Errorf("expected 'undo the check-in first' error, got %v", err)
		}
	})

	t.Run("stranger is rejected, staff is allowed", func(t *testing.T) {
		f := newRegistrationFixture(newReg())
		if err := f.svc.Cancel(ctx, 1, strangerID); err == nil || !IsPermission(err) {
			t.Errorf("stranger: expected permission error, got %v", err)
		}
		if err := f.svc.Cancel(ctx, 1, staffID); err != nil {
			t.Errorf("staff with manage_registrations: Cancel returned error: %v", err)
		}
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown status", func(t *testing.T) {
		f := newRegistrationFixture()
		_, err := f.svc.SetStatus(ctx, 1, staffID, models.RegistrationStatus("vanished"))
		if err == nil || !IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("requires management rights", func(t *testing.T) {
		f := newRegistrationFixture(&models.Registration{
			ID: 1, TournamentID: 1, UserID: intPtr(soloOwnerID), Status: models.RegistrationPending,
		})
		// Даже владелец заявки не меняет статус сам.
		if _, err := f.svc.SetStatus(ctx, 1, soloOwnerID, models.RegistrationConfirmed); err == nil || !IsPermission(err) {
			t.Errorf("owner: expected permission error, got %v", err)
		}
		reg, err := f.svc.SetStatus(ctx, 1, staffID, models.RegistrationConfirmed)
		if err != nil {
			t.Fatalf("staff SetStatus returned error: %v", err)
		}
		if reg.Status != models.RegistrationConfirmed {
			t.Errorf("status = %s, want confirmed", reg.Status)
		}
	})

	t.Run("checked-in registration cannot be demoted", func(t *testing.T) {
		at := tournamentStart.Add(-20 * time.Minute)
		f := newRegistrationFixture(&models.Registration{
			ID: 1, TournamentID: 1, UserID: intPtr(soloOwnerID),
			Status: models.RegistrationConfirmed, CheckedIn: true, CheckedInAt: &at,
		})
		_, err := f.svc.SetStatus(ctx, 1, staffID, models.RegistrationNoShow)
		if err == nil || !IsValidation(err) || !strings.Contains(err.Error(), "undo the check-in") {
			t.Errorf("expected 'undo the check-in first' error, got %v", err)
		}
	})
}
