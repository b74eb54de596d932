package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

// PermissionResolver отвечает на вопрос "что актору можно на этом турнире".
// Порядок разрешения: организатор → суперпользователь → активное назначение
// с capability-ролью → старая плоская модель прав → пусто. Чистое чтение,
// без побочных эффектов; сервисы разрешают набор один раз на операцию и
// дальше работают с ним, не дёргая резолвер повторно.
type PermissionResolver interface {
	Resolve(ctx context.Context, tournament *models.Tournament, actor *models.User) (CapabilitySet, error)
}

type staffPermissionResolver struct {
	staffRepo repositories.StaffRepository
}

func NewPermissionResolver(staffRepo repositories.StaffRepository) PermissionResolver {
	return &staffPermissionResolver{staffRepo: staffRepo}
}

func (r *staffPermissionResolver) Resolve(ctx context.Context, tournament *models.Tournament, actor *models.User) (CapabilitySet, error) {
	if tournament == nil || actor == nil {
		return NewCapabilitySet(), nil
	}

	if actor.ID == tournament.OrganizerID {
		return UniversalCapabilitySet(), nil
	}
	if actor.IsSuperuser() {
		return UniversalCapabilitySet(), nil
	}

	assignment, err := r.staffRepo.FindActiveAssignment(ctx, tournament.ID, actor.ID)
	if err == nil && assignment.Role != nil {
		return capabilitySetFromRole(assignment.Role), nil
	}
	if err != nil && !errors.Is(err, repositories.ErrStaffAssignmentNotFound) {
		return CapabilitySet{}, fmt.Errorf("failed to resolve staff assignment for user %d on tournament %d: %w", actor.ID, tournament.ID, err)
	}

	legacy, err := r.staffRepo.ListLegacyPermissions(ctx, tournament.ID, actor.ID)
	if err != nil {
		return CapabilitySet{}, fmt.Errorf("failed to resolve legacy permissions for user %d on tournament %d: %w", actor.ID, tournament.ID, err)
	}
	if len(legacy) > 0 {
		return capabilitySetFromLegacy(legacy), nil
	}

	return NewCapabilitySet(), nil
}
