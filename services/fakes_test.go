package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTxManager выполняет колбэк без настоящей транзакции.
type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeRegistrationRepo struct {
	regs   map[int]*models.Registration
	nextID int
	// updateErrFor подставляет ошибку хранилища для конкретной регистрации.
	updateErrFor map[int]error
}

func newFakeRegistrationRepo(regs ...*models.Registration) *fakeRegistrationRepo {
	repo := &fakeRegistrationRepo{regs: make(map[int]*models.Registration), nextID: 1000}
	for _, reg := range regs {
		repo.regs[reg.ID] = reg
	}
	return repo
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	for _, existing := range f.regs {
		if existing.TournamentID != reg.TournamentID {
			continue
		}
		sameUser := existing.UserID != nil && reg.UserID != nil && *existing.UserID == *reg.UserID
		sameTeam := existing.TeamID != nil && reg.TeamID != nil && *existing.TeamID == *reg.TeamID
		if sameUser || sameTeam {
			return repositories.ErrRegistrationConflict
		}
	}
	f.nextID++
	reg.ID = f.nextID
	f.regs[reg.ID] = reg
	return nil
}

func (f *fakeRegistrationRepo) FindByID(ctx context.Context, id int) (*models.Registration, error) {
	reg, ok := f.regs[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	return reg, nil
}

func (f *fakeRegistrationRepo) FindByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Registration, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRegistrationRepo) ListByIDs(ctx context.Context, ids []int) ([]*models.Registration, error) {
	var result []*models.Registration
	for _, id := range ids {
		if reg, ok := f.regs[id]; ok {
			result = append(result, reg)
		}
	}
	return result, nil
}

func (f *fakeRegistrationRepo) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus) ([]*models.Registration, error) {
	var result []*models.Registration
	for _, reg := range f.regs {
		if reg.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && reg.Status != *statusFilter {
			continue
		}
		result = append(result, reg)
	}
	return result, nil
}

func (f *fakeRegistrationRepo) ListConfirmedNotCheckedIn(ctx context.Context, tournamentID int) ([]*models.Registration, error) {
	panic("not implemented")
}

func (f *fakeRegistrationRepo) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Registration, error) {
	panic("not implemented")
}

func (f *fakeRegistrationRepo) FindByTeamAndTournament(ctx context.Context, teamID, tournamentID int) (*models.Registration, error) {
	panic("not implemented")
}

func (f *fakeRegistrationRepo) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	reg, ok := f.regs[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = status
	return nil
}

func (f *fakeRegistrationRepo) UpdateCheckin(ctx context.Context, exec repositories.SQLExecutor, id int, checkedIn bool, checkedInAt *time.Time) error {
	if err, ok := f.updateErrFor[id]; ok {
		return err
	}
	reg, ok := f.regs[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.CheckedIn = checkedIn
	reg.CheckedInAt = checkedInAt
	return nil
}

func (f *fakeRegistrationRepo) CountByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus, checkedIn *bool) (int, error) {
	count := 0
	for _, reg := range f.regs {
		if reg.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && reg.Status != *statusFilter {
			continue
		}
		if checkedIn != nil && reg.CheckedIn != *checkedIn {
			continue
		}
		count++
	}
	return count, nil
}

type fakeTournamentRepo struct {
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo(tournaments ...*models.Tournament) *fakeTournamentRepo {
	repo := &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament)}
	for _, t := range tournaments {
		repo.tournaments[t.ID] = t
	}
	return repo
}

func (f *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	panic("not implemented")
}

func (f *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, ok := f.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

func (f *fakeTournamentRepo) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	panic("not implemented")
}

func (f *fakeTournamentRepo) Update(ctx context.Context, t *models.Tournament) error {
	panic("not implemented")
}

func (f *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	panic("not implemented")
}

func (f *fakeTournamentRepo) Count(ctx context.Context, status *models.TournamentStatus) (int, error) {
	panic("not implemented")
}

func (f *fakeTournamentRepo) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Tournament, error) {
	panic("not implemented")
}

type fakeUserRepo struct {
	users map[int]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	panic("not implemented")
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	panic("not implemented")
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	panic("not implemented")
}

func (f *fakeUserRepo) Count(ctx context.Context) (int, error) {
	panic("not implemented")
}

type fakeTeamRepo struct {
	owners map[[2]int]bool // (teamID, userID) -> активный владелец
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{owners: make(map[[2]int]bool)}
}

func (f *fakeTeamRepo) setOwner(teamID, userID int) {
	f.owners[[2]int{teamID, userID}] = true
}

func (f *fakeTeamRepo) Create(ctx context.Context, team *models.Team) error { panic("not implemented") }
func (f *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	panic("not implemented")
}
func (f *fakeTeamRepo) Update(ctx context.Context, team *models.Team) error { panic("not implemented") }
func (f *fakeTeamRepo) Count(ctx context.Context) (int, error)              { panic("not implemented") }
func (f *fakeTeamRepo) AddMember(ctx context.Context, member *models.TeamMember) error {
	panic("not implemented")
}
func (f *fakeTeamRepo) RemoveMember(ctx context.Context, teamID, userID int) error {
	panic("not implemented")
}
func (f *fakeTeamRepo) ListMembers(ctx context.Context, teamID int) ([]models.TeamMember, error) {
	panic("not implemented")
}
func (f *fakeTeamRepo) GetMember(ctx context.Context, teamID, userID int) (*models.TeamMember, error) {
	panic("not implemented")
}

func (f *fakeTeamRepo) IsActiveOwner(ctx context.Context, teamID, userID int) (bool, error) {
	return f.owners[[2]int{teamID, userID}], nil
}

// fakePermissionResolver отдаёт набор способностей по id актора; fn, если
// задан, выигрывает и позволяет различать турниры.
type fakePermissionResolver struct {
	sets map[int]CapabilitySet
	fn   func(tournament *models.Tournament, actor *models.User) (CapabilitySet, error)
}

func (f *fakePermissionResolver) Resolve(ctx context.Context, tournament *models.Tournament, actor *models.User) (CapabilitySet, error) {
	if f.fn != nil {
		return f.fn(tournament, actor)
	}
	if set, ok := f.sets[actor.ID]; ok {
		return set, nil
	}
	return NewCapabilitySet(), nil
}

type fakeAuditSink struct {
	events []*models.AuditEvent
	err    error
}

func (f *fakeAuditSink) Record(ctx context.Context, event *models.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type publishedEvent struct {
	channel string
	payload interface{}
}

type fakeBroadcaster struct {
	events []publishedEvent
}

func (f *fakeBroadcaster) Publish(channel string, payload interface{}) {
	f.events = append(f.events, publishedEvent{channel: channel, payload: payload})
}

type fakeMatchRepo struct {
	matches map[int]*models.Match
	notes   []*models.MatchNote
	nextID  int
}

func newFakeMatchRepo(matches ...*models.Match) *fakeMatchRepo {
	repo := &fakeMatchRepo{matches: make(map[int]*models.Match), nextID: 100}
	for _, m := range matches {
		repo.matches[m.ID] = m
	}
	return repo
}

func (f *fakeMatchRepo) Create(ctx context.Context, m *models.Match) error {
	f.nextID++
	m.ID = f.nextID
	f.matches[m.ID] = m
	return nil
}

func (f *fakeMatchRepo) FindByID(ctx context.Context, id int) (*models.Match, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return m, nil
}

func (f *fakeMatchRepo) FindByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	var result []*models.Match
	for _, m := range f.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && m.Status != *statusFilter {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (f *fakeMatchRepo) UpdateState(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	if _, ok := f.matches[m.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	f.matches[m.ID] = m
	return nil
}

func (f *fakeMatchRepo) CountByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) (int, error) {
	panic("not implemented")
}

func (f *fakeMatchRepo) CountByStatus(ctx context.Context, status models.MatchStatus) (int, error) {
	panic("not implemented")
}

func (f *fakeMatchRepo) AddNote(ctx context.Context, note *models.MatchNote) error {
	f.nextID++
	note.ID = f.nextID
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeMatchRepo) ListNotes(ctx context.Context, matchID int) ([]*models.MatchNote, error) {
	var result []*models.MatchNote
	for _, n := range f.notes {
		if n.MatchID == matchID {
			result = append(result, n)
		}
	}
	return result, nil
}

type fakeStaffRepo struct {
	assignment    *models.StaffAssignment
	assignmentErr error
	legacy        []string
	legacyErr     error
}

func (f *fakeStaffRepo) CreateRole(ctx context.Context, role *models.StaffRole) error {
	panic("not implemented")
}

func (f *fakeStaffRepo) GetRoleByID(ctx context.Context, id int) (*models.StaffRole, error) {
	panic("not implemented")
}

func (f *fakeStaffRepo) CreateAssignment(ctx context.Context, a *models.StaffAssignment) error {
	panic("not implemented")
}

func (f *fakeStaffRepo) DeactivateAssignment(ctx context.Context, id int) error {
	panic("not implemented")
}

func (f *fakeStaffRepo) ListAssignmentsByTournament(ctx context.Context, tournamentID int) ([]*models.StaffAssignment, error) {
	panic("not implemented")
}

func (f *fakeStaffRepo) FindActiveAssignment(ctx context.Context, tournamentID, userID int) (*models.StaffAssignment, error) {
	if f.assignmentErr != nil {
		return nil, f.assignmentErr
	}
	if f.assignment == nil {
		return nil, repositories.ErrStaffAssignmentNotFound
	}
	return f.assignment, nil
}

func (f *fakeStaffRepo) ListLegacyPermissions(ctx context.Context, tournamentID, userID int) ([]string, error) {
	if f.legacyErr != nil {
		return nil, f.legacyErr
	}
	return f.legacy, nil
}
