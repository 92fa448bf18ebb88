package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"numera.app/backend/internal/model"
	"numera.app/backend/internal/repository"
	"numera.app/backend/pkg/apperror"
)

// RealtimeNotifier is the outbound side of the real-time gateway as seen
// from the read/mutate API. A nil notifier disables push updates.
type RealtimeNotifier interface {
	SendUnreadCountUpdate(userID uuid.UUID, count int64)
	SendNotificationRead(userID, notificationID uuid.UUID)
	SendNotificationArchived(userID, notificationID uuid.UUID)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, recipientID uuid.UUID, q repository.NotificationQuery) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkAsRead(ctx context.Context, recipientID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error
	Archive(ctx context.Context, recipientID, id uuid.UUID) error
}

type notificationService struct {
	repo     repository.NotificationRepository
	realtime RealtimeNotifier
}

func NewNotificationService(repo repository.NotificationRepository, realtime RealtimeNotifier) NotificationService {
	return &notificationService{repo: repo, realtime: realtime}
}

func (s *notificationService) GetNotifications(ctx context.Context, recipientID uuid.UUID, q repository.NotificationQuery) ([]*model.Notification, error) {
	return s.repo.FindByRecipient(ctx, recipientID, q)
}

func (s *notificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, recipientID, id uuid.UUID) error {
	if err := s.ownedBy(ctx, recipientID, id); err != nil {
		return err
	}
	if err := s.repo.MarkAsRead(ctx, id); err != nil {
		return err
	}

	if s.realtime != nil {
		s.realtime.SendNotificationRead(recipientID, id)
		s.pushUnreadCount(ctx, recipientID)
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, recipientID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, recipientID); err != nil {
		return err
	}
	if s.realtime != nil {
		s.realtime.SendUnreadCountUpdate(recipientID, 0)
	}
	return nil
}

func (s *notificationService) Archive(ctx context.Context, recipientID, id uuid.UUID) error {
	if err := s.ownedBy(ctx, recipientID, id); err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, id); err != nil {
		return err
	}

	if s.realtime != nil {
		s.realtime.SendNotificationArchived(recipientID, id)
		s.pushUnreadCount(ctx, recipientID)
	}
	return nil
}

// ownedBy rejects mutations by anyone but the recipient.
func (s *notificationService) ownedBy(ctx context.Context, recipientID, id uuid.UUID) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return apperror.ErrNotFound
	}
	if notification.RecipientID != recipientID {
		return apperror.ErrForbidden
	}
	return nil
}

func (s *notificationService) pushUnreadCount(ctx context.Context, recipientID uuid.UUID) {
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		log.Printf("[WARN] unread count for %s failed after mutation: %v", recipientID, err)
		return
	}
	s.realtime.SendUnreadCountUpdate(recipientID, count)
}
