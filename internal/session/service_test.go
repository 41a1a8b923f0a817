package session_test

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

	"ms-dispatch/internal/database/migrations"
	"ms-dispatch/internal/domain"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/models"
	"ms-dispatch/internal/session"
	sessiondb "ms-dispatch/internal/session/db"
)

const testPassword = "s3cret-pass"

func setupSessions(t *testing.T) (*session.Service, *bun.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, migrations.CreateSchema(context.Background(), bunDB))
	t.Cleanup(func() { bunDB.Close() })

	seedUsers(t, bunDB)

	svc := session.NewService(&sessiondb.DB{Bun: bunDB}, logger.NewConsoleLogger(), 8*time.Hour)
	return svc, bunDB
}

// One seller in muni-1 with two registered devices there, one device in
// muni-2, one deactivated device, and one deactivated user.
func seedUsers(t *testing.T, bunDB *bun.DB) {
	t.Helper()
	ctx := context.Background()

	for _, m := range []*models.Municipality{
		{ID: "muni-1", Name: "Armenia", Department: "Quindio", Active: true},
		{ID: "muni-2", Name: "Pereira", Department: "Risaralda", Active: true},
	} {
		_, err := bunDB.NewInsert().Model(m).Exec(ctx)
		require.NoError(t, err)
	}

	hash, err := session.HashPassword(testPassword)
	require.NoError(t, err)

	users := []*models.User{
		{ID: "user-1", DocumentNumber: "2001", FullName: "Sandra Ospina",
			Email: "sandra@example.com", PasswordHash: hash,
			MunicipalityID: "muni-1", Affiliation: models.AffiliationEmployee, Active: true},
		{ID: "user-2", DocumentNumber: "2002", FullName: "Hugo Patino",
			Email: "hugo@example.com", PasswordHash: hash,
			MunicipalityID: "muni-1", Affiliation: models.AffiliationConcession, Active: false},
	}
	for _, u := range users {
		_, err := bunDB.NewInsert().Model(u).Exec(ctx)
		require.NoError(t, err)
	}

	devices := []*models.Device{
		{ID: "device-1", Code: "POS-ARM-01", MunicipalityID: "muni-1", Active: true},
		{ID: "device-2", Code: "POS-ARM-02", MunicipalityID: "muni-1", Active: true},
		{ID: "device-3", Code: "POS-PER-01", MunicipalityID: "muni-2", Active: true},
		{ID: "device-4", Code: "POS-ARM-99", MunicipalityID: "muni-1", Active: false},
	}
	for _, d := range devices {
		_, err := bunDB.NewInsert().Model(d).Exec(ctx)
		require.NoError(t, err)
	}
}

func login(t *testing.T, svc *session.Service, deviceCode string) (string, *models.SessionContext) {
	t.Helper()
	token, sc, err := svc.Login(context.Background(),
		session.Credentials{Email: "sandra@example.com", Password: testPassword}, deviceCode)
	require.NoError(t, err)
	return token, sc
}

func TestLoginReturnsSessionContext(t *testing.T) {
	svc, _ := setupSessions(t)

	token, sc := login(t, svc, "POS-ARM-01")
	assert.NotEmpty(t, token)
	assert.Equal(t, "user-1", sc.UserID)
	assert.Equal(t, "device-1", sc.DeviceID)
	assert.Equal(t, "muni-1", sc.MunicipalityID)
	assert.Equal(t, models.AffiliationEmployee, sc.Affiliation)
}

// Unknown email, wrong password and a deactivated account all report the same
// error; there is no fallback identity.
func TestLoginInvalidCredentials(t *testing.T) {
	svc, _ := setupSessions(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx,
		session.Credentials{Email: "nobody@example.com", Password: testPassword}, "POS-ARM-01")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx,
		session.Credentials{Email: "sandra@example.com", Password: "wrong"}, "POS-ARM-01")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx,
		session.Credentials{Email: "hugo@example.com", Password: testPassword}, "POS-ARM-01")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginDeviceChecks(t *testing.T) {
	svc, _ := setupSessions(t)
	ctx := context.Background()
	creds := session.Credentials{Email: "sandra@example.com", Password: testPassword}

	_, _, err := svc.Login(ctx, creds, "POS-UNKNOWN")
	assert.ErrorIs(t, err, domain.ErrDeviceNotRegistered)

	_, _, err = svc.Login(ctx, creds, "POS-ARM-99")
	assert.ErrorIs(t, err, domain.ErrDeviceInactive)

	// Seller belongs to muni-1; the Pereira device is off limits.
	_, _, err = svc.Login(ctx, creds, "POS-PER-01")
	assert.ErrorIs(t, err, domain.ErrDeviceMunicipalityMismatch)
	assert.Equal(t, "DISPOSITIVO_MUNICIPIO_MISMATCH", domain.ErrorCode(err))
}

func TestLoginRefusedWhileSessionOpenElsewhere(t *testing.T) {
	svc, _ := setupSessions(t)
	ctx := context.Background()

	firstToken, _ := login(t, svc, "POS-ARM-01")

	_, _, err := svc.Login(ctx,
		session.Credentials{Email: "sandra@example.com", Password: testPassword}, "POS-ARM-02")
	assert.ErrorIs(t, err, domain.ErrDuplicateSession)
	assert.Equal(t, "SESION_DUPLICADA", domain.ErrorCode(err))

	// The refused attempt must not disturb the original session.
	sc, err := svc.ValidateToken(ctx, firstToken)
	require.NoError(t, err)
	assert.Equal(t, "device-1", sc.DeviceID)
}

func TestReloginOnSameDeviceRotatesSession(t *testing.T) {
	svc, _ := setupSessions(t)
	ctx := context.Background()

	firstToken, _ := login(t, svc, "POS-ARM-01")
	secondToken, _ := login(t, svc, "POS-ARM-01")
	assert.NotEqual(t, firstToken, secondToken)

	_, err := svc.ValidateToken(ctx, firstToken)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = svc.ValidateToken(ctx, secondToken)
	assert.NoError(t, err)
}

func TestValidateUnknownToken(t *testing.T) {
	svc, _ := setupSessions(t)

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestValidateBumpsLastActivity(t *testing.T) {
	svc, bunDB := setupSessions(t)
	ctx := context.Background()

	token, sc := login(t, svc, "POS-ARM-01")

	past := time.Now().Add(-time.Hour)
	_, err := bunDB.NewUpdate().Model((*models.Session)(nil)).
		Set("last_activity = ?", past).
		Where("id = ?", sc.SessionID).Exec(ctx)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	var stored models.Session
	require.NoError(t, bunDB.NewSelect().Model(&stored).Where("id = ?", sc.SessionID).Scan(ctx))
	assert.True(t, stored.LastActivity.After(past.Add(30*time.Minute)))
}

func TestValidateIdleSessionExpires(t *testing.T) {
	svc, bunDB := setupSessions(t)
	ctx := context.Background()

	token, sc := login(t, svc, "POS-ARM-01")

	// Backdate past the 8h idle timeout.
	_, err := bunDB.NewUpdate().Model((*models.Session)(nil)).
		Set("last_activity = ?", time.Now().Add(-9*time.Hour)).
		Where("id = ?", sc.SessionID).Exec(ctx)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	// The session was ended, so the user can log in again.
	_, _ = login(t, svc, "POS-ARM-01")
}

func TestValidateUserDeactivatedMidSession(t *testing.T) {
	svc, bunDB := setupSessions(t)
	ctx := context.Background()

	token, _ := login(t, svc, "POS-ARM-01")

	_, err := bunDB.NewUpdate().Model((*models.User)(nil)).
		Set("active = ?", false).
		Where("id = ?", "user-1").Exec(ctx)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestLogout(t *testing.T) {
	svc, _ := setupSessions(t)
	ctx := context.Background()

	token, _ := login(t, svc, "POS-ARM-01")
	require.NoError(t, svc.Logout(ctx, token))

	_, err := svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	assert.ErrorIs(t, svc.Logout(ctx, token), domain.ErrSessionExpired)

	// Logged out means a new login is allowed anywhere.
	_, _ = login(t, svc, "POS-ARM-02")
}

func TestExpireIdleSweep(t *testing.T) {
	svc, bunDB := setupSessions(t)
	ctx := context.Background()

	token, sc := login(t, svc, "POS-ARM-01")

	_, err := bunDB.NewUpdate().Model((*models.Session)(nil)).
		Set("last_activity = ?", time.Now().Add(-9*time.Hour)).
		Where("id = ?", sc.SessionID).Exec(ctx)
	require.NoError(t, err)

	closed, err := svc.ExpireIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	// Nothing left to close on the second sweep.
	closed, err = svc.ExpireIdle(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}
