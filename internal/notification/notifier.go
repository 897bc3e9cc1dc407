package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/OVERFORGE/DeDen/internal/chain"
	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/OVERFORGE/DeDen/internal/services"
	"github.com/OVERFORGE/DeDen/pkg/utils"
)

// BookingNotifier fans a committed booking outcome out to every guest-
// facing channel: email, FCM push, the WebSocket hub, the Redis status
// cache and (on confirmation) the ticket metadata upload. Every channel
// is best-effort; a failure is logged and never surfaces back to the
// verifier.
type BookingNotifier struct {
	hub      *services.Hub
	registry *chain.Registry
}

func NewBookingNotifier(hub *services.Hub, registry *chain.Registry) *BookingNotifier {
	return &BookingNotifier{hub: hub, registry: registry}
}

func (n *BookingNotifier) NotifyPaymentConfirmed(ctx context.Context, booking *models.Booking) {
	n.cacheStatus(ctx, booking)

	n.hub.SendBookingStatusUpdate(booking.UserID, services.BookingStatusUpdate{
		BookingID: booking.BookingID,
		Status:    string(booking.Status),
		TxHash:    booking.TxHash,
	})

	explorerURL := ""
	if booking.ChainID != nil {
		explorerURL = n.registry.ExplorerTxURL(*booking.ChainID, booking.TxHash)
	}
	if err := utils.SendPaymentConfirmedEmail(
		booking.User.Email,
		booking.Stay.Name,
		booking.PaymentAmount,
		booking.PaymentToken,
		booking.TxHash,
		explorerURL,
	); err != nil {
		log.Printf("Failed to send confirmation email for booking %s: %v", booking.BookingID, err)
	}

	body := fmt.Sprintf("Your payment for %s is confirmed. Welcome aboard!", booking.Stay.Name)
	if err := services.SendBookingStatusPush(ctx, booking.User.FCMToken, booking.BookingID, string(booking.Status), body); err != nil {
		log.Printf("Failed to send confirmation push for booking %s: %v", booking.BookingID, err)
	}

	if err := n.uploadTicket(booking); err != nil {
		log.Printf("Failed to upload ticket metadata for booking %s: %v", booking.BookingID, err)
	}
}

func (n *BookingNotifier) NotifyPaymentFailed(ctx context.Context, booking *models.Booking, reason string) {
	n.cacheStatus(ctx, booking)

	n.hub.SendBookingStatusUpdate(booking.UserID, services.BookingStatusUpdate{
		BookingID: booking.BookingID,
		Status:    string(booking.Status),
		TxHash:    booking.TxHash,
		Reason:    reason,
	})

	if err := utils.SendPaymentFailedEmail(booking.User.Email, booking.Stay.Name, reason); err != nil {
		log.Printf("Failed to send failure email for booking %s: %v", booking.BookingID, err)
	}

	body := fmt.Sprintf("We could not verify your payment for %s. Please try again.", booking.Stay.Name)
	if err := services.SendBookingStatusPush(ctx, booking.User.FCMToken, booking.BookingID, string(booking.Status), body); err != nil {
		log.Printf("Failed to send failure push for booking %s: %v", booking.BookingID, err)
	}
}

func (n *BookingNotifier) NotifyBookingExpired(ctx context.Context, booking *models.Booking) {
	n.cacheStatus(ctx, booking)

	n.hub.SendBookingStatusUpdate(booking.UserID, services.BookingStatusUpdate{
		BookingID: booking.BookingID,
		Status:    string(booking.Status),
	})
}

func (n *BookingNotifier) cacheStatus(ctx context.Context, booking *models.Booking) {
	if services.RedisClient == nil {
		return
	}
	if err := services.CacheBookingStatus(ctx, booking.BookingID, booking.UserID, string(booking.Status)); err != nil {
		log.Printf("Failed to cache status for booking %s: %v", booking.BookingID, err)
	}
}

// ticketMetadata is the JSON document backing the NFT ticket for a
// confirmed booking.
type ticketMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image,omitempty"`
	Attributes  []map[string]string `json:"attributes"`
}

func (n *BookingNotifier) uploadTicket(booking *models.Booking) error {
	meta := ticketMetadata{
		Name:        fmt.Sprintf("DeDen Stay Ticket - %s", booking.Stay.Name),
		Description: fmt.Sprintf("Proof of stay booking %s at %s", booking.BookingID, booking.Stay.Location),
		Image:       booking.Stay.ImageURL,
		Attributes: []map[string]string{
			{"trait_type": "Booking ID", "value": booking.BookingID},
			{"trait_type": "Stay", "value": booking.Stay.Name},
			{"trait_type": "Payment Token", "value": booking.PaymentToken},
			{"trait_type": "Chain", "value": booking.Chain},
			{"trait_type": "Tx Hash", "value": booking.TxHash},
		},
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	url, err := services.UploadTicketMetadata(booking.BookingID, data)
	if err != nil {
		return err
	}
	log.Printf("Ticket metadata for booking %s at %s", booking.BookingID, url)
	return nil
}
