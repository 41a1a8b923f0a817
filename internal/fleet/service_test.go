package fleet_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-dispatch/internal/catalog"
	catalogdb "ms-dispatch/internal/catalog/db"
	"ms-dispatch/internal/database/migrations"
	"ms-dispatch/internal/domain"
	"ms-dispatch/internal/fleet"
	fleetdb "ms-dispatch/internal/fleet/db"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/models"
)

type recordingEvents struct {
	created  []models.Manifest
	finished []models.Manifest
}

func (r *recordingEvents) DispatchCreated(m models.Manifest)  { r.created = append(r.created, m) }
func (r *recordingEvents) DispatchFinished(m models.Manifest) { r.finished = append(r.finished, m) }

func setupFleet(t *testing.T) (*fleet.Service, *bun.DB, *recordingEvents) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, migrations.CreateSchema(context.Background(), bunDB))
	t.Cleanup(func() { bunDB.Close() })

	seedFleet(t, bunDB)

	events := &recordingEvents{}
	catalogSvc := catalog.NewService(&catalogdb.DB{Bun: bunDB})
	svc := fleet.NewService(&fleetdb.DB{Bun: bunDB}, catalogSvc, events,
		logger.NewConsoleLogger(), 500)
	return svc, bunDB, events
}

// Two routes: a 120 km short haul and a 600 km long haul over the second-driver
// threshold. Bus-1 is associated with drivers 1 and 2; driver-3 belongs to no
// bus and driver-4 is inactive.
func seedFleet(t *testing.T, bunDB *bun.DB) {
	t.Helper()
	ctx := context.Background()

	for _, m := range []*models.Municipality{
		{ID: "muni-1", Name: "Armenia", Department: "Quindio", Active: true},
		{ID: "muni-2", Name: "Pereira", Department: "Risaralda", Active: true},
		{ID: "muni-3", Name: "Bogota", Department: "Cundinamarca", Active: true},
	} {
		_, err := bunDB.NewInsert().Model(m).Exec(ctx)
		require.NoError(t, err)
	}

	routes := []*models.Route{
		{ID: "route-short", OriginID: "muni-1", DestinationID: "muni-2",
			FareAmount: 85000, DistanceKm: 120, Active: true},
		{ID: "route-long", OriginID: "muni-1", DestinationID: "muni-3",
			FareAmount: 190000, DistanceKm: 600, Active: true},
		{ID: "route-closed", OriginID: "muni-2", DestinationID: "muni-3",
			FareAmount: 120000, DistanceKm: 340, Active: false},
	}
	for _, r := range routes {
		_, err := bunDB.NewInsert().Model(r).Exec(ctx)
		require.NoError(t, err)
	}

	drivers := []*models.Driver{
		{ID: "driver-1", DocumentNumber: "1001", FullName: "Luis Rondon", LicenseNumber: "C2-1001", Active: true},
		{ID: "driver-2", DocumentNumber: "1002", FullName: "Mario Pardo", LicenseNumber: "C2-1002", Active: true},
		{ID: "driver-3", DocumentNumber: "1003", FullName: "Elkin Saray", LicenseNumber: "C2-1003", Active: true},
		{ID: "driver-4", DocumentNumber: "1004", FullName: "Nelson Cruz", LicenseNumber: "C2-1004", Active: false},
	}
	for _, d := range drivers {
		_, err := bunDB.NewInsert().Model(d).Exec(ctx)
		require.NoError(t, err)
	}

	_, err := bunDB.NewInsert().Model(&models.Bus{
		ID: "bus-1", Plate: "WXY-123", Capacity: 40, State: models.BusStateAvailable,
	}).Exec(ctx)
	require.NoError(t, err)

	for _, bd := range []*models.BusDriver{
		{BusID: "bus-1", DriverID: "driver-1"},
		{BusID: "bus-1", DriverID: "driver-2"},
		{BusID: "bus-1", DriverID: "driver-4"},
	} {
		_, err := bunDB.NewInsert().Model(bd).Exec(ctx)
		require.NoError(t, err)
	}
}

func shortHaulRequest() fleet.DispatchRequest {
	return fleet.DispatchRequest{
		BusID:           "bus-1",
		RouteID:         "route-short",
		PrimaryDriverID: "driver-1",
		ScheduledAt:     time.Now().Add(time.Hour),
	}
}

func TestDispatchCreatesManifestAndMarksBus(t *testing.T) {
	svc, bunDB, events := setupFleet(t)
	ctx := context.Background()

	manifest, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)

	assert.Equal(t, models.ManifestStateDispatched, manifest.State)
	assert.Equal(t, 0, manifest.OccupiedSeats)
	assert.Regexp(t, `^PLA-\d+-\d{6}$`, manifest.ManifestNumber)

	var bus models.Bus
	require.NoError(t, bunDB.NewSelect().Model(&bus).Where("id = ?", "bus-1").Scan(ctx))
	assert.Equal(t, models.BusStateDispatched, bus.State)
	assert.Equal(t, "driver-1", bus.AssignedDriverID)

	require.Len(t, events.created, 1)
	assert.Equal(t, manifest.ID, events.created[0].ID)
}

func TestDispatchBusAlreadyOut(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)

	_, err = svc.Dispatch(ctx, shortHaulRequest())
	assert.ErrorIs(t, err, domain.ErrBusNotAvailable)
}

func TestDispatchUnknownRoute(t *testing.T) {
	svc, _, _ := setupFleet(t)

	req := shortHaulRequest()
	req.RouteID = "route-missing"
	_, err := svc.Dispatch(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestDispatchInactiveRoute(t *testing.T) {
	svc, _, _ := setupFleet(t)

	req := shortHaulRequest()
	req.RouteID = "route-closed"
	_, err := svc.Dispatch(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrRouteInactive)
}

// Routes beyond the long-haul threshold need a second, distinct driver.
func TestDispatchLongHaulRequiresAuxiliaryDriver(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	req := fleet.DispatchRequest{
		BusID:           "bus-1",
		RouteID:         "route-long",
		PrimaryDriverID: "driver-1",
		ScheduledAt:     time.Now().Add(time.Hour),
	}
	_, err := svc.Dispatch(ctx, req)
	assert.ErrorIs(t, err, domain.ErrSecondDriverRequired)

	req.AuxiliaryDriverID = "driver-1"
	_, err = svc.Dispatch(ctx, req)
	assert.ErrorIs(t, err, domain.ErrSecondDriverRequired)

	req.AuxiliaryDriverID = "driver-2"
	manifest, err := svc.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "driver-2", manifest.AuxiliaryDriverID)
}

func TestDispatchDriverNotAssociated(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	req := shortHaulRequest()
	req.PrimaryDriverID = "driver-3"
	_, err := svc.Dispatch(ctx, req)
	var driverErr *domain.DriverNotAssociatedError
	require.ErrorAs(t, err, &driverErr)
	assert.Equal(t, "driver-3", driverErr.DriverID)
}

func TestDispatchInactiveDriverRefused(t *testing.T) {
	svc, _, _ := setupFleet(t)

	// driver-4 is in the bus's set but deactivated.
	req := shortHaulRequest()
	req.PrimaryDriverID = "driver-4"
	_, err := svc.Dispatch(context.Background(), req)
	var driverErr *domain.DriverNotAssociatedError
	assert.ErrorAs(t, err, &driverErr)
}

func TestMarkEnRoute(t *testing.T) {
	svc, bunDB, _ := setupFleet(t)
	ctx := context.Background()

	manifest, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)

	bus, err := svc.MarkEnRoute(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, models.BusStateEnRoute, bus.State)

	var stored models.Manifest
	require.NoError(t, bunDB.NewSelect().Model(&stored).Where("id = ?", manifest.ID).Scan(ctx))
	assert.Equal(t, models.ManifestStateEnRoute, stored.State)
	assert.False(t, stored.DepartedAt.IsZero())
}

func TestMarkEnRouteFromAvailableRefused(t *testing.T) {
	svc, _, _ := setupFleet(t)

	_, err := svc.MarkEnRoute(context.Background(), "bus-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkArrivedFinishesManifestAndFreesDriver(t *testing.T) {
	svc, bunDB, events := setupFleet(t)
	ctx := context.Background()

	manifest, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)
	_, err = svc.MarkEnRoute(ctx, "bus-1")
	require.NoError(t, err)

	bus, err := svc.MarkArrived(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, models.BusStateArrived, bus.State)
	assert.Empty(t, bus.AssignedDriverID)

	var stored models.Manifest
	require.NoError(t, bunDB.NewSelect().Model(&stored).Where("id = ?", manifest.ID).Scan(ctx))
	assert.Equal(t, models.ManifestStateFinished, stored.State)

	require.Len(t, events.finished, 1)
	assert.Equal(t, manifest.ID, events.finished[0].ID)
}

// Arriving straight from DISPATCHED (a trip that never reported departure) is
// allowed.
func TestMarkArrivedWithoutDeparture(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)

	bus, err := svc.MarkArrived(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, models.BusStateArrived, bus.State)
}

func TestReleaseBus(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)
	_, err = svc.MarkArrived(ctx, "bus-1")
	require.NoError(t, err)

	bus, err := svc.ReleaseBus(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, models.BusStateAvailable, bus.State)
}

func TestReleaseBusRequiresArrived(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)

	_, err = svc.ReleaseBus(ctx, "bus-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// An arrived bus can be dispatched again without an explicit release.
func TestArrivedBusIsDispatchable(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)
	_, err = svc.MarkArrived(ctx, "bus-1")
	require.NoError(t, err)

	_, err = svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)
}

func TestCancelManifestReturnsBusToPool(t *testing.T) {
	svc, bunDB, _ := setupFleet(t)
	ctx := context.Background()

	manifest, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)

	cancelled, err := svc.CancelManifest(ctx, manifest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ManifestStateCancelled, cancelled.State)

	var bus models.Bus
	require.NoError(t, bunDB.NewSelect().Model(&bus).Where("id = ?", "bus-1").Scan(ctx))
	assert.Equal(t, models.BusStateAvailable, bus.State)
	assert.Empty(t, bus.AssignedDriverID)
}

func TestCancelFinishedManifestRefused(t *testing.T) {
	svc, _, _ := setupFleet(t)
	ctx := context.Background()

	manifest, err := svc.Dispatch(ctx, shortHaulRequest())
	require.NoError(t, err)
	_, err = svc.MarkArrived(ctx, "bus-1")
	require.NoError(t, err)

	_, err = svc.CancelManifest(ctx, manifest.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelUnknownManifest(t *testing.T) {
	svc, _, _ := setupFleet(t)

	_, err := svc.CancelManifest(context.Background(), "manifest-missing")
	assert.ErrorIs(t, err, domain.ErrManifestNotFound)
}
