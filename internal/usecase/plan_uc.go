package usecase

import (
	"context"
	"errors"

	"elearning-billing/internal/domain"
	"elearning-billing/internal/domain/model"
	"elearning-billing/internal/domain/ports/repository"
)

// PlanUseCase exposes the read-only plan catalog.
type PlanUseCase struct {
	repo repository.PlanRepository
}

func NewPlanUseCase(repo repository.PlanRepository) *PlanUseCase {
	return &PlanUseCase{repo: repo}
}

// Save creates or updates a plan. Used by the seed command.
func (uc *PlanUseCase) Save(ctx context.Context, plan *model.Plan) error {
	return uc.repo.Save(ctx, repository.NoTX, plan)
}

func (uc *PlanUseCase) Get(ctx context.Context, id string) (*model.Plan, error) {
	p, err := uc.repo.FindByID(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPlanNotFound
	}
	return p, err
}

func (uc *PlanUseCase) ListActive(ctx context.Context) ([]*model.Plan, error) {
	return uc.repo.ListActive(ctx, repository.NoTX)
}
