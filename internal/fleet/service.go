// Package fleet owns bus operating state and the dispatch lifecycle. It is
// the only writer of bus state and manifest lifecycle state; seat occupancy
// belongs to the ticket engine.
package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-dispatch/internal/domain"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/models"
	"ms-dispatch/internal/utils"
)

type DBLayer interface {
	GetBusByID(ctx context.Context, id string) (*models.Bus, error)
	UpdateBus(ctx context.Context, bus *models.Bus) error
	GetDriverByID(ctx context.Context, id string) (*models.Driver, error)
	DriverAssociated(ctx context.Context, busID, driverID string) (bool, error)
	CreateManifest(ctx context.Context, manifest *models.Manifest) error
	GetManifestByID(ctx context.Context, id string) (*models.Manifest, error)
	GetOpenManifestByBus(ctx context.Context, busID string) (*models.Manifest, error)
	UpdateManifestState(ctx context.Context, manifest *models.Manifest) error
	InTx(ctx context.Context, fn func(tx DBLayer) error) error
}

type RouteCatalog interface {
	GetRoute(ctx context.Context, id string) (*models.Route, error)
}

type EventPublisher interface {
	DispatchCreated(m models.Manifest)
	DispatchFinished(m models.Manifest)
}

type Service struct {
	DB      DBLayer
	Catalog RouteCatalog
	Events  EventPublisher
	Logger  *logger.Logger

	// LongHaulDistanceKm is the threshold above which a second driver is
	// mandatory.
	LongHaulDistanceKm int
}

func NewService(db DBLayer, catalog RouteCatalog, events EventPublisher, log *logger.Logger, longHaulKm int) *Service {
	return &Service{
		DB:                 db,
		Catalog:            catalog,
		Events:             events,
		Logger:             log,
		LongHaulDistanceKm: longHaulKm,
	}
}

type DispatchRequest struct {
	BusID             string
	RouteID           string
	PrimaryDriverID   string
	AuxiliaryDriverID string
	ScheduledAt       time.Time
	TravelAssistant   string
}

// Dispatch transitions an idle bus into a dispatched manifest. Manifest
// creation and the bus state write happen in one transaction; a caller never
// observes one without the other.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (*models.Manifest, error) {
	route, err := s.Catalog.GetRoute(ctx, req.RouteID)
	if err != nil {
		return nil, err
	}
	if !route.Active {
		return nil, domain.ErrRouteInactive
	}

	if route.DistanceKm > s.LongHaulDistanceKm {
		if req.AuxiliaryDriverID == "" || req.AuxiliaryDriverID == req.PrimaryDriverID {
			return nil, domain.ErrSecondDriverRequired
		}
	}

	var manifest *models.Manifest
	err = s.DB.InTx(ctx, func(tx DBLayer) error {
		bus, err := tx.GetBusByID(ctx, req.BusID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrBusNotFound
			}
			return domain.Infra("dispatch: get bus", err)
		}
		if !bus.Dispatchable() {
			return domain.ErrBusNotAvailable
		}

		if err := s.checkDriver(ctx, tx, bus.ID, req.PrimaryDriverID); err != nil {
			return err
		}
		if req.AuxiliaryDriverID != "" {
			if err := s.checkDriver(ctx, tx, bus.ID, req.AuxiliaryDriverID); err != nil {
				return err
			}
		}

		manifest = &models.Manifest{
			ID:                uuid.NewString(),
			ManifestNumber:    utils.GenerateManifestNumber(),
			BusID:             bus.ID,
			PrimaryDriverID:   req.PrimaryDriverID,
			AuxiliaryDriverID: req.AuxiliaryDriverID,
			RouteID:           route.ID,
			TravelAssistant:   req.TravelAssistant,
			ScheduledAt:       req.ScheduledAt,
			State:             models.ManifestStateDispatched,
			OccupiedSeats:     0,
		}
		if err := tx.CreateManifest(ctx, manifest); err != nil {
			return domain.Infra("dispatch: create manifest", err)
		}

		bus.State = models.BusStateDispatched
		bus.AssignedDriverID = req.PrimaryDriverID
		if err := tx.UpdateBus(ctx, bus); err != nil {
			return domain.Infra("dispatch: update bus", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogDispatch("CREATE", manifest.ManifestNumber,
		fmt.Sprintf("bus %s on route %s", req.BusID, req.RouteID))
	s.Events.DispatchCreated(*manifest)
	return manifest, nil
}

func (s *Service) checkDriver(ctx context.Context, tx DBLayer, busID, driverID string) error {
	driver, err := tx.GetDriverByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.DriverNotAssociatedError{DriverID: driverID}
		}
		return domain.Infra("dispatch: get driver", err)
	}
	if !driver.Active {
		return &domain.DriverNotAssociatedError{DriverID: driverID}
	}
	associated, err := tx.DriverAssociated(ctx, busID, driverID)
	if err != nil {
		return domain.Infra("dispatch: check driver association", err)
	}
	if !associated {
		return &domain.DriverNotAssociatedError{DriverID: driverID}
	}
	return nil
}

// MarkEnRoute records the actual departure: Dispatched → EnRoute for both the
// bus and its manifest.
func (s *Service) MarkEnRoute(ctx context.Context, busID string) (*models.Bus, error) {
	var result *models.Bus
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		bus, err := s.getBus(ctx, tx, busID)
		if err != nil {
			return err
		}
		if bus.State != models.BusStateDispatched {
			return domain.ErrInvalidTransition
		}

		manifest, err := tx.GetOpenManifestByBus(ctx, busID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrManifestNotFound
			}
			return domain.Infra("fleet: get open manifest", err)
		}

		bus.State = models.BusStateEnRoute
		if err := tx.UpdateBus(ctx, bus); err != nil {
			return domain.Infra("fleet: update bus", err)
		}
		manifest.State = models.ManifestStateEnRoute
		manifest.DepartedAt = time.Now()
		if err := tx.UpdateManifestState(ctx, manifest); err != nil {
			return domain.Infra("fleet: update manifest", err)
		}
		result = bus
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.LogDispatch("EN_ROUTE", busID, "bus departed")
	return result, nil
}

// MarkArrived finishes the trip: the bus becomes Arrived with no assigned
// driver, and the open manifest is Finished.
func (s *Service) MarkArrived(ctx context.Context, busID string) (*models.Bus, error) {
	var result *models.Bus
	var finished *models.Manifest
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		bus, err := s.getBus(ctx, tx, busID)
		if err != nil {
			return err
		}
		if bus.State != models.BusStateDispatched && bus.State != models.BusStateEnRoute {
			return domain.ErrInvalidTransition
		}

		manifest, err := tx.GetOpenManifestByBus(ctx, busID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return domain.Infra("fleet: get open manifest", err)
		}

		bus.State = models.BusStateArrived
		bus.AssignedDriverID = ""
		if err := tx.UpdateBus(ctx, bus); err != nil {
			return domain.Infra("fleet: update bus", err)
		}
		if manifest != nil {
			manifest.State = models.ManifestStateFinished
			if err := tx.UpdateManifestState(ctx, manifest); err != nil {
				return domain.Infra("fleet: update manifest", err)
			}
			finished = manifest
		}
		result = bus
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.LogDispatch("ARRIVED", busID, "bus arrived, driver released")
	if finished != nil {
		s.Events.DispatchFinished(*finished)
	}
	return result, nil
}

// ReleaseBus returns an arrived bus to the available pool.
func (s *Service) ReleaseBus(ctx context.Context, busID string) (*models.Bus, error) {
	var result *models.Bus
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		bus, err := s.getBus(ctx, tx, busID)
		if err != nil {
			return err
		}
		if bus.State != models.BusStateArrived {
			return domain.ErrInvalidTransition
		}
		bus.State = models.BusStateAvailable
		if err := tx.UpdateBus(ctx, bus); err != nil {
			return domain.Infra("fleet: update bus", err)
		}
		result = bus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelManifest aborts a trip before it finishes and returns the bus to the
// available pool.
func (s *Service) CancelManifest(ctx context.Context, manifestID string) (*models.Manifest, error) {
	var result *models.Manifest
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		manifest, err := tx.GetManifestByID(ctx, manifestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrManifestNotFound
			}
			return domain.Infra("fleet: get manifest", err)
		}
		switch manifest.State {
		case models.ManifestStateFinished, models.ManifestStateCancelled:
			return domain.ErrInvalidTransition
		}

		manifest.State = models.ManifestStateCancelled
		if err := tx.UpdateManifestState(ctx, manifest); err != nil {
			return domain.Infra("fleet: update manifest", err)
		}

		bus, err := s.getBus(ctx, tx, manifest.BusID)
		if err != nil {
			return err
		}
		bus.State = models.BusStateAvailable
		bus.AssignedDriverID = ""
		if err := tx.UpdateBus(ctx, bus); err != nil {
			return domain.Infra("fleet: update bus", err)
		}
		result = manifest
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.LogDispatch("CANCEL", result.ManifestNumber, "manifest cancelled")
	return result, nil
}

func (s *Service) getBus(ctx context.Context, tx DBLayer, busID string) (*models.Bus, error) {
	bus, err := tx.GetBusByID(ctx, busID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBusNotFound
		}
		return nil, domain.Infra("fleet: get bus", err)
	}
	return bus, nil
}
