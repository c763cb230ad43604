package catalog

import (
	"context"
)

// Service wraps the repository with make/model normalization so user-typed
// queries ("vw", "mercedes") still hit the catalog.
type Service struct {
	repo Repository
}

// NewService creates a catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

const matchThreshold = 70

// Search looks up cars, correcting the make/model filters against what the
// catalog actually contains before querying.
func (s *Service) Search(ctx context.Context, f Filter) ([]Car, error) {
	if f.Make != "" {
		canonical := NormalizeBrand(f.Make)
		makes, err := s.repo.Makes(ctx)
		if err != nil {
			return nil, err
		}
		if match := FindSimilar(canonical, makes, matchThreshold); match != "" {
			f.Make = match
		} else {
			f.Make = canonical
		}
	}

	if f.Model != "" {
		models, err := s.repo.ModelsByMake(ctx, f.Make)
		if err != nil {
			return nil, err
		}
		if match := FindSimilar(f.Model, models, matchThreshold); match != "" {
			f.Model = match
		} else {
			f.Model = NormalizeText(f.Model)
		}
	}

	return s.repo.Search(ctx, f)
}

// Repo exposes the underlying repository for CRUD handlers.
func (s *Service) Repo() Repository {
	return s.repo
}
