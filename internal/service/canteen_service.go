package service

import (
	"context"

	"go.uber.org/zap"

	apperrors "collegebot/pkg/errors"
)

type canteenSource interface {
	CanteenMenu(ctx context.Context) ([]byte, error)
}

// CanteenService hands out the published canteen menu document as-is.
type CanteenService struct {
	source canteenSource
	logger *zap.Logger
}

// NewCanteenService builds a CanteenService.
func NewCanteenService(source canteenSource, logger *zap.Logger) *CanteenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CanteenService{source: source, logger: logger}
}

// Menu downloads the current menu file. The payload is passed through
// unmodified, callers attach it as a document.
func (s *CanteenService) Menu(ctx context.Context) ([]byte, error) {
	data, err := s.source.CanteenMenu(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.Clone(apperrors.ErrSourceUnavailable, "menu file is empty")
	}
	return data, nil
}
