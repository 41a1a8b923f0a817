// Package tickets is the transactional core: it is the only writer of seat
// occupancy, and every sale or seat release runs inside one database
// transaction under the per-manifest lock.
package tickets

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
	GetManifestByID(ctx context.Context, id string) (*models.Manifest, error)
	GetBusByID(ctx context.Context, id string) (*models.Bus, error)
	GetRouteByID(ctx context.Context, id string) (*models.Route, error)
	UpdateOccupiedSeats(ctx context.Context, manifestID string, occupied int) error
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByNumber(ctx context.Context, number string) (*models.Ticket, error)
	GetActiveTicketBySeat(ctx context.Context, manifestID string, seat int) (*models.Ticket, error)
	UpdateTicketState(ctx context.Context, ticket *models.Ticket) error
	CountActiveTickets(ctx context.Context, manifestID string) (int, error)
	GetPassengerByDocument(ctx context.Context, document string) (*models.Passenger, error)
	CreatePassenger(ctx context.Context, passenger *models.Passenger) error
	InTx(ctx context.Context, fn func(tx DBLayer) error) error
}

// ManifestLocker serializes occupancy writers per manifest.
type ManifestLocker interface {
	Acquire(ctx context.Context, manifestID string) (string, error)
	Release(ctx context.Context, manifestID, token string) error
}

type EventPublisher interface {
	TicketSold(t models.Ticket)
	TicketCancelled(t models.Ticket)
}

// BoardingPassGenerator renders the scannable payload attached to a sold
// ticket.
type BoardingPassGenerator interface {
	GenerateBoardingQR(ticket models.Ticket) ([]byte, error)
}

type Service struct {
	DB     DBLayer
	Lock   ManifestLocker
	Events EventPublisher
	QR     BoardingPassGenerator
	Logger *logger.Logger
}

func NewService(db DBLayer, lock ManifestLocker, events EventPublisher, qr BoardingPassGenerator, log *logger.Logger) *Service {
	return &Service{DB: db, Lock: lock, Events: events, QR: qr, Logger: log}
}

type SellRequest struct {
	ManifestID            string
	RouteID               string
	PassengerDocument     string
	PassengerDocumentType string
	PassengerName         string
	PassengerPhone        string
	SeatNumber            int // 0 sells an unassigned-seat ticket
	AmountPaid            int64
	PaymentMethod         models.PaymentMethod
	Observations          string
}

// Sell validates and creates a ticket. The checks run in a fixed order — the
// first failure determines the reported error — against one transactional
// snapshot of manifest, bus and route. The ticket insert and the occupancy
// increment commit together or not at all.
func (s *Service) Sell(ctx context.Context, req SellRequest, seller models.SessionContext) (*models.Ticket, error) {
	lockToken, err := s.Lock.Acquire(ctx, req.ManifestID)
	if err != nil {
		return nil, domain.Infra("sell: acquire manifest lock", err)
	}
	defer s.Lock.Release(ctx, req.ManifestID, lockToken)

	var ticket *models.Ticket
	err = s.DB.InTx(ctx, func(tx DBLayer) error {
		manifest, err := tx.GetManifestByID(ctx, req.ManifestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrManifestNotFound
			}
			return domain.Infra("sell: get manifest", err)
		}

		bus, err := tx.GetBusByID(ctx, manifest.BusID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// A manifest without its bus is an inconsistent parent.
				return domain.ErrManifestNotFound
			}
			return domain.Infra("sell: get bus", err)
		}

		if bus.AssignedDriverID == "" {
			return domain.ErrBusHasNoDriver
		}
		if bus.State != models.BusStateDispatched {
			return domain.ErrBusNotDispatched
		}

		route, err := tx.GetRouteByID(ctx, req.RouteID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrRouteNotFound
			}
			return domain.Infra("sell: get route", err)
		}
		if !route.Active {
			return domain.ErrRouteNotFound
		}

		if req.AmountPaid != route.FareAmount {
			return &domain.InvalidTicketAmountError{Paid: req.AmountPaid, Expected: route.FareAmount}
		}

		if manifest.OccupiedSeats >= bus.Capacity {
			return domain.ErrCapacityExceeded
		}

		if req.SeatNumber != 0 {
			if req.SeatNumber < 1 || req.SeatNumber > bus.Capacity {
				return &domain.SeatUnavailableError{Seat: req.SeatNumber}
			}
			_, err := tx.GetActiveTicketBySeat(ctx, req.ManifestID, req.SeatNumber)
			if err == nil {
				return &domain.SeatUnavailableError{Seat: req.SeatNumber}
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return domain.Infra("sell: check seat", err)
			}
		}

		passenger, err := s.findOrCreatePassenger(ctx, tx, req)
		if err != nil {
			return err
		}

		ticket = &models.Ticket{
			ID:            uuid.NewString(),
			TicketNumber:  utils.GenerateTicketNumber(),
			ManifestID:    manifest.ID,
			PassengerID:   passenger.ID,
			RouteID:       route.ID,
			SeatNumber:    req.SeatNumber,
			AmountPaid:    req.AmountPaid,
			PaymentMethod: req.PaymentMethod,
			State:         models.TicketStateActive,
			SellerUserID:  seller.UserID,
			DeviceID:      seller.DeviceID,
			SoldAt:        time.Now(),
			Observations:  req.Observations,
		}
		if s.QR != nil {
			qrBytes, err := s.QR.GenerateBoardingQR(*ticket)
			if err != nil {
				return domain.Infra("sell: generate boarding QR", err)
			}
			ticket.BoardingQR = qrBytes
		}

		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return domain.Infra("sell: create ticket", err)
		}
		if err := tx.UpdateOccupiedSeats(ctx, manifest.ID, manifest.OccupiedSeats+1); err != nil {
			return domain.Infra("sell: update occupancy", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogTicket("SELL", ticket.TicketNumber,
		fmt.Sprintf("manifest %s seat %d", req.ManifestID, req.SeatNumber))
	s.Events.TicketSold(*ticket)
	return ticket, nil
}

func (s *Service) findOrCreatePassenger(ctx context.Context, tx DBLayer, req SellRequest) (*models.Passenger, error) {
	passenger, err := tx.GetPassengerByDocument(ctx, req.PassengerDocument)
	if err == nil {
		return passenger, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Infra("sell: get passenger", err)
	}
	passenger = &models.Passenger{
		ID:             uuid.NewString(),
		DocumentNumber: req.PassengerDocument,
		DocumentType:   req.PassengerDocumentType,
		FullName:       req.PassengerName,
		Phone:          req.PassengerPhone,
	}
	if err := tx.CreatePassenger(ctx, passenger); err != nil {
		return nil, domain.Infra("sell: create passenger", err)
	}
	return passenger, nil
}

// Cancel releases the seat: Active → Cancelled plus the occupancy decrement
// in the same transaction.
func (s *Service) Cancel(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.releaseSeat(ctx, ticketID, models.TicketStateCancelled)
	if err != nil {
		return nil, err
	}
	s.Logger.LogTicket("CANCEL", ticket.TicketNumber, "seat released")
	s.Events.TicketCancelled(*ticket)
	return ticket, nil
}

// Refund releases the seat like Cancel but marks the ticket Refunded.
func (s *Service) Refund(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.releaseSeat(ctx, ticketID, models.TicketStateRefunded)
	if err != nil {
		return nil, err
	}
	s.Logger.LogTicket("REFUND", ticket.TicketNumber, "seat released")
	s.Events.TicketCancelled(*ticket)
	return ticket, nil
}

func (s *Service) releaseSeat(ctx context.Context, ticketID string, target models.TicketState) (*models.Ticket, error) {
	existing, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	lockToken, err := s.Lock.Acquire(ctx, existing.ManifestID)
	if err != nil {
		return nil, domain.Infra("cancel: acquire manifest lock", err)
	}
	defer s.Lock.Release(ctx, existing.ManifestID, lockToken)

	var result *models.Ticket
	err = s.DB.InTx(ctx, func(tx DBLayer) error {
		ticket, err := tx.GetTicketByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrTicketNotFound
			}
			return domain.Infra("cancel: get ticket", err)
		}
		if ticket.State != models.TicketStateActive {
			return domain.ErrInvalidTicketState
		}

		manifest, err := tx.GetManifestByID(ctx, ticket.ManifestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrManifestNotFound
			}
			return domain.Infra("cancel: get manifest", err)
		}

		ticket.State = target
		if err := tx.UpdateTicketState(ctx, ticket); err != nil {
			return domain.Infra("cancel: update ticket", err)
		}
		if err := tx.UpdateOccupiedSeats(ctx, manifest.ID, manifest.OccupiedSeats-1); err != nil {
			return domain.Infra("cancel: update occupancy", err)
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkUsed records boarding: Active → Used. The seat stays consumed, so the
// occupancy counter is untouched.
func (s *Service) MarkUsed(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var result *models.Ticket
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		ticket, err := tx.GetTicketByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrTicketNotFound
			}
			return domain.Infra("use: get ticket", err)
		}
		if ticket.State != models.TicketStateActive {
			return domain.ErrInvalidTicketState
		}
		ticket.State = models.TicketStateUsed
		if err := tx.UpdateTicketState(ctx, ticket); err != nil {
			return domain.Infra("use: update ticket", err)
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.LogTicket("USE", result.TicketNumber, "passenger boarded")
	return result, nil
}

// GetByNumber is the receipt and lookup contract for a sold ticket.
func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, domain.Infra("tickets: get by number", err)
	}
	return ticket, nil
}

func (s *Service) getTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, domain.Infra("tickets: get ticket", err)
	}
	return ticket, nil
}
