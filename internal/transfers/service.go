// Package transfers handles cash remittances carried on dispatched buses.
// The commission percentage is configuration; the computed amounts are frozen
// on the transfer at creation.
package transfers

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
	GetOpenManifestByBus(ctx context.Context, busID string) (*models.Manifest, error)
	CreateTransfer(ctx context.Context, transfer *models.Transfer) error
	GetTransferByID(ctx context.Context, id string) (*models.Transfer, error)
	UpdateTransfer(ctx context.Context, transfer *models.Transfer) error
	InTx(ctx context.Context, fn func(tx DBLayer) error) error
}

type EventPublisher interface {
	TransferCreated(tr models.Transfer)
	TransferDelivered(tr models.Transfer)
}

type Service struct {
	DB     DBLayer
	Events EventPublisher
	Logger *logger.Logger

	// CommissionPercent is the fee charged on the transferred amount.
	CommissionPercent int
}

func NewService(db DBLayer, events EventPublisher, log *logger.Logger, commissionPercent int) *Service {
	return &Service{DB: db, Events: events, Logger: log, CommissionPercent: commissionPercent}
}

type CreateRequest struct {
	SenderDocument    string
	SenderName        string
	SenderPhone       string
	RecipientDocument string
	RecipientName     string
	RecipientPhone    string
	Amount            int64
	BusID             string
	DestinationID     string
	Observations      string
}

// Commission rounds amount × percent to the nearest peso.
func Commission(amount int64, percent int) int64 {
	return (amount*int64(percent) + 50) / 100
}

// Create books a remittance on a bus that is actually carrying: Dispatched or
// EnRoute. The transfer rides the bus's open manifest when one exists.
func (s *Service) Create(ctx context.Context, req CreateRequest, sender models.SessionContext) (*models.Transfer, error) {
	var transfer *models.Transfer
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		bus, err := tx.GetBusByID(ctx, req.BusID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrBusNotFound
			}
			return domain.Infra("transfer: get bus", err)
		}
		if bus.State != models.BusStateDispatched && bus.State != models.BusStateEnRoute {
			return domain.ErrBusNotCarrying
		}

		manifestID := ""
		manifest, err := tx.GetOpenManifestByBus(ctx, req.BusID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return domain.Infra("transfer: get manifest", err)
		}
		if manifest != nil {
			manifestID = manifest.ID
		}

		commission := Commission(req.Amount, s.CommissionPercent)
		transfer = &models.Transfer{
			ID:                uuid.NewString(),
			TransferNumber:    utils.GenerateTransferNumber(),
			SenderDocument:    req.SenderDocument,
			SenderName:        req.SenderName,
			SenderPhone:       req.SenderPhone,
			RecipientDocument: req.RecipientDocument,
			RecipientName:     req.RecipientName,
			RecipientPhone:    req.RecipientPhone,
			Amount:            req.Amount,
			Commission:        commission,
			TotalAmount:       req.Amount + commission,
			BusID:             bus.ID,
			ManifestID:        manifestID,
			OriginID:          sender.MunicipalityID,
			DestinationID:     req.DestinationID,
			State:             models.TransferStateInTransit,
			CreatedAt:         time.Now(),
			Observations:      req.Observations,
		}
		if err := tx.CreateTransfer(ctx, transfer); err != nil {
			return domain.Infra("transfer: create", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogTransfer("CREATE", transfer.TransferNumber,
		fmt.Sprintf("amount %d commission %d on bus %s", transfer.Amount, transfer.Commission, req.BusID))
	s.Events.TransferCreated(*transfer)
	return transfer, nil
}

type DeliverRequest struct {
	ReceiverDocument string
	ReceiverName     string
}

// Deliver hands the cash to the receiver at destination.
func (s *Service) Deliver(ctx context.Context, transferID string, req DeliverRequest) (*models.Transfer, error) {
	var result *models.Transfer
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		transfer, err := s.getTransfer(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if transfer.State != models.TransferStateInTransit {
			return domain.ErrInvalidTransferState
		}
		transfer.State = models.TransferStateDelivered
		transfer.ReceiverDocument = req.ReceiverDocument
		transfer.ReceiverName = req.ReceiverName
		transfer.DeliveredAt = time.Now()
		if err := tx.UpdateTransfer(ctx, transfer); err != nil {
			return domain.Infra("transfer: update", err)
		}
		result = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogTransfer("DELIVER", result.TransferNumber, "delivered to receiver")
	s.Events.TransferDelivered(*result)
	return result, nil
}

// Cancel aborts a transfer that has not been delivered.
func (s *Service) Cancel(ctx context.Context, transferID string) (*models.Transfer, error) {
	var result *models.Transfer
	err := s.DB.InTx(ctx, func(tx DBLayer) error {
		transfer, err := s.getTransfer(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if transfer.State != models.TransferStatePending && transfer.State != models.TransferStateInTransit {
			return domain.ErrInvalidTransferState
		}
		transfer.State = models.TransferStateCancelled
		if err := tx.UpdateTransfer(ctx, transfer); err != nil {
			return domain.Infra("transfer: update", err)
		}
		result = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogTransfer("CANCEL", result.TransferNumber, "transfer cancelled")
	return result, nil
}

func (s *Service) getTransfer(ctx context.Context, tx DBLayer, id string) (*models.Transfer, error) {
	transfer, err := tx.GetTransferByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, domain.Infra("transfer: get", err)
	}
	return transfer, nil
}
