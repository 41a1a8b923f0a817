// Package catalog is the read-only fare and route lookup consumed by the
// dispatch and ticket engines. Nothing in this core mutates the catalog.
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"ms-dispatch/internal/domain"
	"ms-dispatch/internal/models"
)

type DBLayer interface {
	GetRouteByID(ctx context.Context, id string) (*models.Route, error)
	GetActiveRoutes(ctx context.Context) ([]models.Route, error)
	GetMunicipalityByID(ctx context.Context, id string) (*models.Municipality, error)
}

type Service struct {
	DB DBLayer
}

func NewService(db DBLayer) *Service {
	return &Service{DB: db}
}

// GetRoute returns the route regardless of its activity flag.
func (s *Service) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	route, err := s.DB.GetRouteByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRouteNotFound
		}
		return nil, domain.Infra("catalog: get route", err)
	}
	return route, nil
}

// GetActiveRoute returns the route only if it exists and is active. Both the
// ticket engine's fare check and the dispatch engine's route check go through
// here.
func (s *Service) GetActiveRoute(ctx context.Context, id string) (*models.Route, error) {
	route, err := s.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	if !route.Active {
		return nil, domain.ErrRouteNotFound
	}
	return route, nil
}

func (s *Service) ListActiveRoutes(ctx context.Context) ([]models.Route, error) {
	routes, err := s.DB.GetActiveRoutes(ctx)
	if err != nil {
		return nil, domain.Infra("catalog: list routes", err)
	}
	return routes, nil
}

func (s *Service) GetMunicipality(ctx context.Context, id string) (*models.Municipality, error) {
	municipality, err := s.DB.GetMunicipalityByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMunicipalityNotFound
		}
		return nil, domain.Infra("catalog: get municipality", err)
	}
	return municipality, nil
}
