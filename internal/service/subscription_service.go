package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"collegebot/internal/models"
	apperrors "collegebot/pkg/errors"
)

type subscriptionStore interface {
	Upsert(ctx context.Context, sub models.Subscription) error
	Find(ctx context.Context, key models.SubscriberKey) (*models.Subscription, error)
	ListByValue(ctx context.Context, value string, subType int) ([]models.Subscriber, error)
	AllUnique(ctx context.Context) ([]models.Subscriber, error)
}

// SubscribeInput is the validated payload for creating or replacing a
// subscription.
type SubscribeInput struct {
	ChatID   int64  `validate:"required"`
	ThreadID int    `validate:"gte=0"`
	Platform string `validate:"required,oneof=TG VK"`
	Type     int    `validate:"oneof=0 1"`
	Value    string `validate:"required,max=128"`
}

// SubscriptionService manages chat subscriptions to groups and teachers.
type SubscriptionService struct {
	store    subscriptionStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSubscriptionService builds a SubscriptionService.
func NewSubscriptionService(store subscriptionStore, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// Subscribe stores a subscription, replacing any previous one held by the
// same chat destination.
func (s *SubscriptionService) Subscribe(ctx context.Context, in SubscribeInput) error {
	in.Value = strings.TrimSpace(in.Value)
	if err := s.validate.Struct(in); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, "invalid subscription input")
	}

	sub := models.Subscription{
		ChatID:   in.ChatID,
		ThreadID: in.ThreadID,
		Platform: in.Platform,
		Type:     in.Type,
		Value:    in.Value,
	}
	if err := s.store.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("store subscription: %w", err)
	}
	s.logger.Sugar().Infow("subscription stored",
		"chat_id", in.ChatID, "thread_id", in.ThreadID, "platform", in.Platform,
		"type", in.Type, "value", in.Value)
	return nil
}

// Current returns the subscription held by a chat destination, or nil.
func (s *SubscriptionService) Current(ctx context.Context, key models.SubscriberKey) (*models.Subscription, error) {
	return s.store.Find(ctx, key)
}

// GroupSubscribers returns recipients subscribed to exactly this group.
func (s *SubscriptionService) GroupSubscribers(ctx context.Context, group string) ([]models.Subscriber, error) {
	return s.store.ListByValue(ctx, group, models.SubGroup)
}

// TeacherSubscribers returns recipients whose subscribed teacher value is a
// prefix of the given teacher name, so "Иванов" matches "Иванов И.И.".
func (s *SubscriptionService) TeacherSubscribers(ctx context.Context, teacher string) ([]models.Subscriber, error) {
	return s.store.ListByValue(ctx, teacher, models.SubTeacher)
}

// AllSubscribers returns every distinct chat destination holding any
// subscription, for service-wide announcements.
func (s *SubscriptionService) AllSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	return s.store.AllUnique(ctx)
}
