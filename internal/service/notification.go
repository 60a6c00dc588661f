package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideCreated    NotificationType = "ride.created"
	NotificationStatusChanged  NotificationType = "ride.status_changed"
	NotificationRideAssigned   NotificationType = "ride.reassigned"
	NotificationRideUnassigned NotificationType = "ride.unassigned"
	NotificationRideDeleted    NotificationType = "ride.deleted"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string                 `json:"id"`
	Type        NotificationType       `json:"type"`
	RecipientID string                 `json:"recipient_id"` // driver user ID
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Publisher delivers notifications to an external channel.
// The routing key is the notification type.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// LogPublisher only logs notifications. Used when no broker is configured.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	if n, ok := payload.(Notification); ok {
		log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
			routingKey, n.RecipientID, n.Title, n.Message)
	}
	return nil
}

// NotificationService handles notification delivery to drivers.
type NotificationService struct {
	publisher Publisher
}

// NewNotificationService creates a new NotificationService.
// A nil publisher falls back to LogPublisher.
func NewNotificationService(publisher Publisher) *NotificationService {
	if publisher == nil {
		publisher = LogPublisher{}
	}
	return &NotificationService{publisher: publisher}
}

// NotifyRideCreated tells the assigned driver about a new ride.
func (s *NotificationService) NotifyRideCreated(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, Notification{
		Type:        NotificationRideCreated,
		RecipientID: ride.DriverID,
		Title:       "New Ride",
		Message:     fmt.Sprintf("New ride for %s on %s", ride.ClientName, ride.ScheduledDate.Format("2006-01-02")),
		Data: map[string]interface{}{
			"ride_id":        ride.ID,
			"scheduled_date": ride.ScheduledDate.Format("2006-01-02"),
			"pickup_address": ride.PickupAddress,
		},
	})
}

// NotifyStatusChanged informs the driver that a ride moved to a new status.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, ride *domain.Ride, from domain.RideStatus) {
	s.send(ctx, Notification{
		Type:        NotificationStatusChanged,
		RecipientID: ride.DriverID,
		Title:       "Ride Status Changed",
		Message:     fmt.Sprintf("Ride for %s is now %s", ride.ClientName, ride.Status),
		Data: map[string]interface{}{
			"ride_id": ride.ID,
			"from":    from,
			"to":      ride.Status,
		},
	})
}

// NotifyReassigned informs both drivers of a reassignment.
// Nothing is sent when the ride stayed with the same driver.
func (s *NotificationService) NotifyReassigned(ctx context.Context, result ReassignResult) {
	if result.OldDriverID == result.NewDriverID {
		return
	}

	data := map[string]interface{}{
		"ride_id":       result.RideID,
		"old_driver_id": result.OldDriverID,
		"new_driver_id": result.NewDriverID,
	}

	s.send(ctx, Notification{
		Type:        NotificationRideUnassigned,
		RecipientID: result.OldDriverID,
		Title:       "Ride Reassigned",
		Message:     fmt.Sprintf("Ride for %s was moved to %s", result.ClientName, result.NewDriverName),
		Data:        data,
	})

	s.send(ctx, Notification{
		Type:        NotificationRideAssigned,
		RecipientID: result.NewDriverID,
		Title:       "Ride Assigned",
		Message:     fmt.Sprintf("Ride for %s was assigned to you", result.ClientName),
		Data:        data,
	})
}

// NotifyRideDeleted informs the driver that a ride was removed.
func (s *NotificationService) NotifyRideDeleted(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, Notification{
		Type:        NotificationRideDeleted,
		RecipientID: ride.DriverID,
		Title:       "Ride Cancelled",
		Message:     fmt.Sprintf("Ride for %s on %s was removed", ride.ClientName, ride.ScheduledDate.Format("2006-01-02")),
		Data: map[string]interface{}{
			"ride_id": ride.ID,
		},
	})
}

// send delivers a notification. Delivery failures are logged and never
// reach the caller: the ride change is already committed.
func (s *NotificationService) send(ctx context.Context, notification Notification) {
	notification.ID = uuid.New().String()
	notification.CreatedAt = time.Now()

	if err := s.publisher.Publish(ctx, string(notification.Type), notification); err != nil {
		log.Printf("[NOTIFICATION] publish %s for %s failed: %v", notification.Type, notification.RecipientID, err)
	}
}
