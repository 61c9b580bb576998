package stats

import (
	"context"
	"math"

	apperrors "coursepay-bot-backend/internal/common/errors"
	paymentmodels "coursepay-bot-backend/internal/features/payment/models"
	paymentrepo "coursepay-bot-backend/internal/features/payment/repository"
	userrepo "coursepay-bot-backend/internal/features/user/repository"
)

// Stats is the aggregate view served to admins.
type Stats struct {
	TotalUsers int64   `json:"total_users"`
	PaidUsers  int64   `json:"paid_users"`
	Conversion float64 `json:"conversion"`
}

// UserRow is one line of the admin user dump: a user joined with their most
// recent payment, if any.
type UserRow struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	PaymentAmount int64  `json:"payment_amount,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

// Service answers the password-gated admin reads. Pure queries; no core
// logic lives here.
type Service struct {
	users    userrepo.UserRepository
	payments paymentrepo.PaymentRepository
}

func NewService(users userrepo.UserRepository, payments paymentrepo.PaymentRepository) *Service {
	return &Service{users: users, payments: payments}
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("count users", err)
	}
	paid, err := s.payments.CountByStatus(ctx, paymentmodels.StatusSucceeded)
	if err != nil {
		return nil, apperrors.NewStoreError("count succeeded payments", err)
	}

	conversion := 0.0
	if total > 0 {
		conversion = math.Round(float64(paid)/float64(total)*100*100) / 100
	}
	return &Stats{TotalUsers: total, PaidUsers: paid, Conversion: conversion}, nil
}

func (s *Service) UserRows(ctx context.Context) ([]UserRow, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("list users", err)
	}

	rows := make([]UserRow, 0, len(users))
	for _, u := range users {
		row := UserRow{
			UserID:   u.ID,
			Username: u.Username,
			Email:    u.Email,
			Phone:    u.Phone,
		}
		if payment, err := s.payments.LatestByOwner(ctx, u.ID); err == nil {
			row.PaymentAmount = payment.Amount
			row.PaymentStatus = string(payment.Status)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
