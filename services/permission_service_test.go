package services

import (
	"context"
	"errors"
	"testing"

	"github.com/arenahub/esports-ops/models"
)

func TestResolve_OrganizerGetsUniversalSet(t *testing.T) {
	resolver := NewPermissionResolver(&fakeStaffRepo{})
	tournament := &models.Tournament{ID: 1, OrganizerID: 42}
	organizer := &models.User{ID: 42, Role: models.RolePlayer}

	set, err := resolver.Resolve(context.Background(), tournament, organizer)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !set.IsUniversal() {
		t.Error("organizer must resolve to the universal capability set")
	}
}

func TestResolve_AdminGetsUniversalSet(t *testing.T) {
	resolver := NewPermissionResolver(&fakeStaffRepo{})
	tournament := &models.Tournament{ID: 1, OrganizerID: 42}
	admin := &models.User{ID: 7, Role: models.RoleAdmin}

	set, err := resolver.Resolve(context.Background(), tournament, admin)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !set.IsUniversal() {
		t.Error("platform admin must resolve to the universal capability set")
	}
}

// Организатор разрешается до любых обращений к хранилищу: даже сломанный
// staff-репозиторий не мешает организатору.
func TestResolve_OrganizerBeatsStaffAssignment(t *testing.T) {
	resolver := NewPermissionResolver(&fakeStaffRepo{
		assignmentErr: errors.New("db down"),
		legacyErr:     errors.New("db down"),
	})
	tournament := &models.Tournament{ID: 1, OrganizerID: 42}
	organizer := &models.User{ID: 42, Role: models.RolePlayer}

	set, err := resolver.Resolve(context.Background(), tournament, organizer)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !set.IsUniversal() {
		t.Error("organizer must win over staff assignment lookup")
	}
}

func TestResolve_ActiveAssignmentCapabilities(t *testing.T) {
	resolver := NewPermissionResolver(&fakeStaffRepo{
		assignment: &models.StaffAssignment{
			ID:           1,
			TournamentID: 1,
			UserID:       7,
			Active:       true,
			Role: &models.StaffRole{
				Name: "checkin-desk",
				Capabilities: map[string]bool{
					"manage_checkin": true,
					"manage_matches": false,
				},
			},
		},
		// Наличие legacy-прав не должно влиять: назначение выигрывает.
		legacy: []string{"manage_matches"},
	})
	tournament := &models.Tournament{ID: 1, OrganizerID: 42}
	staff := &models.User{ID: 7, Role: models.RolePlayer}

	set, err := resolver.Resolve(context.Background(), tournament, staff)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if set.IsUniversal() {
		t.Error("staff member must not get the universal set")
	}
	if !set.Has(CapManageCheckin) {
		t.Error("Has(manage_checkin) = false, want true")
	}
	if set.Has(CapManageMatches) {
		t.Error("Has(manage_matches) = true, want false: assignment must shadow legacy permissions")
	}
}

func TestResolve_LegacyFallback(t *testing.T) {
	resolver := NewPermissionResolver(&fakeStaffRepo{
		legacy: []string{"manage_checkin", "export_data"},
	})
	tournament := &models.Tournament{ID: 1, OrganizerID: 42}
	staff := &models.User{ID: 7, Role: models.RolePlayer}

	set, err := resolver.Resolve(context.Background(), tournament, staff)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !set.Has(CapManageCheckin) || !set.Has(CapExportData) {
		t.Error("legacy permissions must be lifted into the capability set")
	}
	if set.Has(CapManageStaff) {
		t.Error("legacy fallback granted a capability that was not listed")
	}
}

func TestResolve_NoGrantsMeansEmptySet(t *testing.T) {
	resolver := NewPermissionResolver(&fakeStaffRepo{})
	tournament := &models.Tournament{ID: 1, OrganizerID: 42}
	stranger := &models.User{ID: 99, Role: models.RolePlayer}

	set, err := resolver.Resolve(context.Background(), tournament, stranger)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if set.IsUniversal() || set.HasAny(AllCapabilities()...) {
		t.Error("stranger must resolve to the empty capability set")
	}
}

func TestResolve_RepositoryErrorPropagates(t *testing.T) {
	wantErr := errors.New("connection reset")
	resolver := NewPermissionResolver(&fakeStaffRepo{assignmentErr: wantErr})
	tournament := &models.Tournament{ID: 1, OrganizerID: 42}
	stranger := &models.User{ID: 99, Role: models.RolePlayer}

	_, err := resolver.Resolve(context.Background(), tournament, stranger)
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("Resolve error = %v, want wrapped %v", err, wantErr)
	}
}
