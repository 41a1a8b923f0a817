// Package session gates every other operation: it authenticates a user
// against a device-municipality binding and enforces at most one active
// session per user.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ms-dispatch/internal/domain"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/models"
)

type DBLayer interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetDeviceByCode(ctx context.Context, code string) (*models.Device, error)
	GetActiveSessionByUser(ctx context.Context, userID string) (*models.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
	CreateSession(ctx context.Context, sess *models.Session) error
	EndSession(ctx context.Context, sess *models.Session) error
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	EndIdleSessions(ctx context.Context, cutoff time.Time) (int64, error)
	InTx(ctx context.Context, fn func(tx DBLayer) error) error
}

type Service struct {
	DB     DBLayer
	Logger *logger.Logger

	// IdleTimeout ends sessions with no activity for this long; zero
	// disables the check.
	IdleTimeout time.Duration
}

func NewService(db DBLayer, log *logger.Logger, idleTimeout time.Duration) *Service {
	return &Service{DB: db, Logger: log, IdleTimeout: idleTimeout}
}

type Credentials struct {
	Email    string
	Password string
}

// Login authenticates the user on a device. An unmatched email, a wrong
// password and an inactive user all report the same InvalidCredentials — no
// fallback user, ever. Re-login from the device already holding the user's
// session invalidates that session and creates a fresh one atomically; a
// login attempt from any other device is refused.
func (s *Service) Login(ctx context.Context, creds Credentials, deviceCode string) (string, *models.SessionContext, error) {
	user, err := s.DB.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, domain.Infra("login: get user", err)
	}
	if !user.Active {
		return "", nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	device, err := s.DB.GetDeviceByCode(ctx, deviceCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, domain.ErrDeviceNotRegistered
		}
		return "", nil, domain.Infra("login: get device", err)
	}
	if !device.Active {
		return "", nil, domain.ErrDeviceInactive
	}
	if device.MunicipalityID != user.MunicipalityID {
		return "", nil, domain.ErrDeviceMunicipalityMismatch
	}

	token := uuid.NewString()
	now := time.Now()
	sess := &models.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		DeviceID:     device.ID,
		Token:        token,
		Active:       true,
		StartedAt:    now,
		LastActivity: now,
	}

	err = s.DB.InTx(ctx, func(tx DBLayer) error {
		active, err := tx.GetActiveSessionByUser(ctx, user.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return domain.Infra("login: get active session", err)
		}
		if active != nil {
			if active.DeviceID != device.ID {
				return domain.ErrDuplicateSession
			}
			active.Active = false
			active.EndedAt = now
			if err := tx.EndSession(ctx, active); err != nil {
				return domain.Infra("login: end prior session", err)
			}
		}
		if err := tx.CreateSession(ctx, sess); err != nil {
			return domain.Infra("login: create session", err)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	s.Logger.LogSession("LOGIN", fmt.Sprintf("user %s on device %s", user.ID, device.ID))
	return token, &models.SessionContext{
		SessionID:      sess.ID,
		UserID:         user.ID,
		DeviceID:       device.ID,
		MunicipalityID: user.MunicipalityID,
		Affiliation:    user.Affiliation,
	}, nil
}

// ValidateToken is the per-request gate. On success it bumps the session's
// last-activity time.
func (s *Service) ValidateToken(ctx context.Context, token string) (*models.SessionContext, error) {
	sess, err := s.DB.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, domain.Infra("validate: get session", err)
	}
	if !sess.Active {
		return nil, domain.ErrSessionExpired
	}

	now := time.Now()
	if s.IdleTimeout > 0 && now.Sub(sess.LastActivity) > s.IdleTimeout {
		sess.Active = false
		sess.EndedAt = now
		if err := s.DB.EndSession(ctx, sess); err != nil {
			return nil, domain.Infra("validate: end idle session", err)
		}
		return nil, domain.ErrSessionExpired
	}

	user, err := s.DB.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, domain.Infra("validate: get user", err)
	}
	if !user.Active {
		return nil, domain.ErrUserInactive
	}

	if err := s.DB.TouchSession(ctx, sess.ID, now); err != nil {
		return nil, domain.Infra("validate: touch session", err)
	}

	return &models.SessionContext{
		SessionID:      sess.ID,
		UserID:         user.ID,
		DeviceID:       sess.DeviceID,
		MunicipalityID: user.MunicipalityID,
		Affiliation:    user.Affiliation,
	}, nil
}

// Logout ends the session holding the token.
func (s *Service) Logout(ctx context.Context, token string) error {
	sess, err := s.DB.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUnauthenticated
		}
		return domain.Infra("logout: get session", err)
	}
	if !sess.Active {
		return domain.ErrSessionExpired
	}
	sess.Active = false
	sess.EndedAt = time.Now()
	if err := s.DB.EndSession(ctx, sess); err != nil {
		return domain.Infra("logout: end session", err)
	}
	s.Logger.LogSession("LOGOUT", fmt.Sprintf("session %s ended", sess.ID))
	return nil
}

// ExpireIdle closes sessions that outlived the idle timeout. The background
// sweeper calls this; ValidateToken also enforces the timeout per request.
func (s *Service) ExpireIdle(ctx context.Context) (int64, error) {
	if s.IdleTimeout <= 0 {
		return 0, nil
	}
	closed, err := s.DB.EndIdleSessions(ctx, time.Now().Add(-s.IdleTimeout))
	if err != nil {
		return 0, domain.Infra("session: expire idle", err)
	}
	if closed > 0 {
		s.Logger.LogSession("EXPIRE", fmt.Sprintf("closed %d idle sessions", closed))
	}
	return closed, nil
}

// HashPassword is used by account provisioning (outside this core) and by
// test fixtures.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
