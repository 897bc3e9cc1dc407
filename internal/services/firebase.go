package services

import (
	"context"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	// FirebaseApp is the Firebase app instance
	FirebaseApp *firebase.App
	// MessagingClient is the Firebase Cloud Messaging client
	MessagingClient *messaging.Client
)

// InitFirebase initializes Firebase Admin SDK
func InitFirebase() error {
	ctx := context.Background()

	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountPath == "" {
		log.Println("Warning: FIREBASE_SERVICE_ACCOUNT_PATH not set. Push notifications will be disabled.")
		return nil
	}

	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("error getting messaging client: %v", err)
	}

	FirebaseApp = app
	MessagingClient = client

	log.Println("Firebase Cloud Messaging initialized successfully")
	return nil
}

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendPushNotification sends a push notification to a single device token.
// A nil MessagingClient (Firebase unconfigured) is a silent no-op.
func SendPushNotification(ctx context.Context, token string, payload NotificationPayload) error {
	if MessagingClient == nil || token == "" {
		return nil
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    "deden_bookings",
				Sound:        "default",
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := MessagingClient.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send push notification: %v", err)
	}
	return nil
}

// SendBookingStatusPush notifies a guest's device about a booking state change
func SendBookingStatusPush(ctx context.Context, token, bookingID, status, body string) error {
	return SendPushNotification(ctx, token, NotificationPayload{
		Title: "DeDen Booking Update",
		Body:  body,
		Data: map[string]string{
			"type":      "booking_status",
			"bookingId": bookingID,
			"status":    status,
		},
	})
}
