package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/arenahub/esports-ops/models"
	"github.com/arenahub/esports-ops/repositories"
	"github.com/arenahub/esports-ops/storage"
)

type GameService interface {
	Create(ctx context.Context, name string) (*models.Game, error)
	GetByID(ctx context.Context, id int) (*models.Game, error)
	List(ctx context.Context) ([]*models.Game, error)
	Update(ctx context.Context, id int, name string) (*models.Game, error)
	Delete(ctx context.Context, id int) error
	UploadLogo(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Game, error)
}

type gameService struct {
	gameRepo repositories.GameRepository
	uploader storage.FileUploader
}

func NewGameService(gameRepo repositories.GameRepository, uploader storage.FileUploader) GameService {
	return &gameService{gameRepo: gameRepo, uploader: uploader}
}

func (s *gameService) Create(ctx context.Context, name string) (*models.Game, error) {
	if name == "" {
		return nil, NewValidationError("game name is required")
	}
	game := &models.Game{Name: name}
	if err := s.gameRepo.Create(ctx, game); err != nil {
		if errors.Is(err, repositories.ErrGameNameConflict) {
			return nil, &ConflictError{Reason: fmt.Sprintf("game %q already exists", name)}
		}
		return nil, err
	}
	return game, nil
}

func (s *gameService) GetByID(ctx context.Context, id int) (*models.Game, error) {
	game, err := s.gameRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	populateGameLogoURL(game, s.uploader)
	return game, nil
}

func (s *gameService) List(ctx context.Context) ([]*models.Game, error) {
	games, err := s.gameRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range games {
		populateGameLogoURL(g, s.uploader)
	}
	return games, nil
}

func (s *gameService) Update(ctx context.Context, id int, name string) (*models.Game, error) {
	if name == "" {
		return nil, NewValidationError("game name is required")
	}
	game, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	game.Name = name
	if err := s.gameRepo.Update(ctx, game); err != nil {
		if errors.Is(err, repositories.ErrGameNameConflict) {
			return nil, &ConflictError{Reason: fmt.Sprintf("game %q already exists", name)}
		}
		return nil, err
	}
	populateGameLogoURL(game, s.uploader)
	return game, nil
}

func (s *gameService) Delete(ctx context.Context, id int) error {
	if err := s.gameRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return err
	}
	return nil
}

func (s *gameService) UploadLogo(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Game, error) {
	game, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, NewValidationError("unsupported logo content type %q", contentType)
	}

	oldKey := game.LogoKey
	key := fmt.Sprintf("games/%d/logo%s", game.ID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, reader); err != nil {
		return nil, fmt.Errorf("failed to upload game logo: %w", err)
	}

	game.LogoKey = &key
	if err := s.gameRepo.Update(ctx, game); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != key {
		_ = s.uploader.Delete(ctx, *oldKey)
	}
	populateGameLogoURL(game, s.uploader)
	return game, nil
}
