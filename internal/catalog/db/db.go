package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) GetRouteByID(ctx context.Context, id string) (*models.Route, error) {
	var route models.Route
	err := d.Bun.NewSelect().
		Model(&route).
		Relation("Origin").
		Relation("Destination").
		Where("route.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (d *DB) GetActiveRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := d.Bun.NewSelect().
		Model(&routes).
		Relation("Origin").
		Relation("Destination").
		Where("route.active = ?", true).
		Order("route.id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return routes, nil
}

func (d *DB) GetMunicipalityByID(ctx context.Context, id string) (*models.Municipality, error) {
	var municipality models.Municipality
	err := d.Bun.NewSelect().
		Model(&municipality).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &municipality, nil
}
