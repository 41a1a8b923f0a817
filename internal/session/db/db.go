package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
	"ms-dispatch/internal/session"
)

type DB struct {
	Bun bun.IDB
}

// ---------------- USERS ----------------

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("user.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("user.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ---------------- DEVICES ----------------

func (d *DB) GetDeviceByCode(ctx context.Context, code string) (*models.Device, error) {
	var device models.Device
	err := d.Bun.NewSelect().
		Model(&device).
		Where("device.code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// ---------------- SESSIONS ----------------

func (d *DB) GetActiveSessionByUser(ctx context.Context, userID string) (*models.Session, error) {
	var sess models.Session
	err := d.Bun.NewSelect().
		Model(&sess).
		Where("session.user_id = ?", userID).
		Where("session.active = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (d *DB) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := d.Bun.NewSelect().
		Model(&sess).
		Where("session.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (d *DB) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := d.Bun.NewInsert().Model(sess).Exec(ctx)
	return err
}

// EndSession marks a session inactive and stamps its end time.
func (d *DB) EndSession(ctx context.Context, sess *models.Session) error {
	_, err := d.Bun.NewUpdate().
		Model(sess).
		Column("active", "ended_at").
		Where("id = ?", sess.ID).
		Exec(ctx)
	return err
}

// TouchSession bumps last activity; called on every validated request.
func (d *DB) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Session)(nil)).
		Set("last_activity = ?", at).
		Where("id = ?", sessionID).
		Exec(ctx)
	return err
}

// EndIdleSessions closes every active session whose last activity predates
// cutoff and reports how many it closed.
func (d *DB) EndIdleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Session)(nil)).
		Set("active = ?", false).
		Set("ended_at = ?", time.Now()).
		Where("active = ?", true).
		Where("last_activity < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InTx runs fn against transaction-scoped repositories; a returned error
// rolls everything back.
func (d *DB) InTx(ctx context.Context, fn func(tx session.DBLayer) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&DB{Bun: tx})
	})
}
