package catalog

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// ProductCreator is the back office operation seeding goes through.
type ProductCreator interface {
	CreateProduct(ctx context.Context, req *model.ProductRequest) (*model.Product, error)
}

// SeedResult counts what happened to each seed row.
type SeedResult struct {
	Created  int
	Skipped  int
	Rejected int
}

// Seeder imports seed files into the catalogue.
type Seeder struct {
	loader  Loader
	creator ProductCreator
	logger  zerolog.Logger
}

// NewSeeder creates a new seeder.
func NewSeeder(loader Loader, creator ProductCreator, logger zerolog.Logger) *Seeder {
	return &Seeder{
		loader:  loader,
		creator: creator,
		logger:  logger.With().Str("component", "catalog-seeder").Logger(),
	}
}

// Seed creates every product in the file at path. Rows whose ID already
// exists are skipped so a seed can be re-run; rows the catalogue rejects are
// logged and counted. Any other failure stops the import.
func (s *Seeder) Seed(ctx context.Context, path string) (SeedResult, error) {
	var result SeedResult

	products, err := s.loader.Load(ctx, path)
	if err != nil {
		return result, fmt.Errorf("failed to load seed file: %w", err)
	}

	for i := range products {
		req := &products[i]

		product, err := s.creator.CreateProduct(ctx, req)
		var de *model.DomainError
		switch {
		case err == nil:
			result.Created++
			s.logger.Debug().
				Str("product_id", product.ID).
				Int("stock", product.Stock).
				Msg("seeded product")
		case errors.Is(err, model.ErrProductExists):
			result.Skipped++
			s.logger.Debug().Str("product_id", req.ID).Msg("product already exists, skipping")
		case errors.As(err, &de):
			result.Rejected++
			s.logger.Warn().
				Str("product_id", req.ID).
				Str("name", req.Name).
				Str("error_code", de.Code).
				Msg(de.Message)
		default:
			return result, fmt.Errorf("failed to seed product %q: %w", req.Name, err)
		}
	}

	s.logger.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("rejected", result.Rejected).
		Msg("catalogue seeded")
	return result, nil
}
