package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
)

type DashboardService interface {
	PlatformStats(ctx context.Context) (*models.DashboardStats, error)
	TournamentCheckinStats(ctx context.Context, tournamentID int) (*models.TournamentCheckinStats, error)
}

type dashboardService struct {
	userRepo       repositories.UserRepository
	teamRepo       repositories.TeamRepository
	tournamentRepo repositories.TournamentRepository
	regRepo        repositories.RegistrationRepository
	matchRepo      repositories.MatchRepository
}

func NewDashboardService(
	userRepo repositories.UserRepository,
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	regRepo repositories.RegistrationRepository,
	matchRepo repositories.MatchRepository,
) DashboardService {
	return &dashboardService{
		userRepo:       userRepo,
		teamRepo:       teamRepo,
		tournamentRepo: tournamentRepo,
		regRepo:        regRepo,
		matchRepo:      matchRepo,
	}
}

// PlatformStats собирает глобальные счётчики параллельно.
func (s *dashboardService) PlatformStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		stats.UsersTotal, err = s.userRepo.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TeamsTotal, err = s.teamRepo.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TournamentsTotal, err = s.tournamentRepo.Count(gctx, nil)
		return err
	})
	g.Go(func() error {
		active := models.StatusActive
		var err error
		stats.ActiveTournaments, err = s.tournamentRepo.Count(gctx, &active)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MatchesLive, err = s.matchRepo.CountByStatus(gctx, models.MatchLive)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// TournamentCheckinStats — сводка явки и матчей одного турнира.
func (s *dashboardService) TournamentCheckinStats(ctx context.Context, tournamentID int) (*models.TournamentCheckinStats, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	stats := &models.TournamentCheckinStats{TournamentID: tournamentID}
	g, gctx := errgroup.WithContext(ctx)

	confirmed := models.RegistrationConfirmed
	noShow := models.RegistrationNoShow
	checkedIn := true
	scheduled := models.MatchScheduled
	live := models.MatchLive
	completed := models.MatchCompleted

	g.Go(func() error {
		var err error
		stats.Confirmed, err = s.regRepo.CountByTournament(gctx, tournamentID, &confirmed, nil)
		return err
	})
	g.Go(func() error {
		var err error
		stats.CheckedIn, err = s.regRepo.CountByTournament(gctx, tournamentID, &confirmed, &checkedIn)
		return err
	})
	g.Go(func() error {
		var err error
		stats.NoShow, err = s.regRepo.CountByTournament(gctx, tournamentID, &noShow, nil)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MatchesTotal, err = s.matchRepo.CountByTournament(gctx, tournamentID, nil)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MatchesLive, err = s.matchRepo.CountByTournament(gctx, tournamentID, &live)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MatchesPlayed, err = s.matchRepo.CountByTournament(gctx, tournamentID, &completed)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MatchesPending, err = s.matchRepo.CountByTournament(gctx, tournamentID, &scheduled)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.NotCheckedIn = stats.Confirmed - stats.CheckedIn
	return stats, nil
}
