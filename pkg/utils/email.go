package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"os"
)

var (
	emailFrom     = os.Getenv("EMAIL_FROM")
	emailPassword = os.Getenv("EMAIL_PASSWORD")
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	companyName   = "DeDen Coliving"
	baseURL       = os.Getenv("BASE_URL")
)

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #6C47FF; margin: 0;">DeDen</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>© 2026 DeDen Coliving. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

func sendEmail(to []string, subject, body string) error {
	if emailFrom == "" || emailPassword == "" || smtpHost == "" || smtpPort == "" {
		return fmt.Errorf("email configuration not set")
	}

	// Headers
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", companyName, emailFrom)
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"
	headers["X-Mailer"] = "DeDen-Mailer"

	// Build message
	message := ""
	for key, value := range headers {
		message += fmt.Sprintf("%s: %s\r\n", key, value)
	}
	message += "\r\n" + body

	// Authentication
	auth := smtp.PlainAuth("", emailFrom, emailPassword, smtpHost)

	// Send email
	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, emailFrom, to, []byte(message))
	if err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}

	log.Printf("Successfully sent email to recipients: %v", to)
	return nil
}

// SendBookingApprovedEmail tells a guest their application was approved and
// how to pay within the payment window.
func SendBookingApprovedEmail(guestEmail, stayName, amount, token, chainName string, expiresAt time.Time) error {
	subject := "Your Stay is Approved - DeDen"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Application Approved</h1>
					<p>Hello,</p>
					<p>Your application for <strong>%s</strong> has been approved!</p>
					<p>To confirm your spot, please pay <strong>%s %s</strong> on <strong>%s</strong> before <strong>%s</strong>.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/bookings" style="background-color: #6C47FF; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Complete Payment</a>
					</div>
					<p>Best regards,<br>The DeDen Team</p>
				</div>`+emailFooter,
		stayName, amount, token, chainName, expiresAt.Format("Jan 2, 2006 15:04 MST"), baseURL)

	return sendEmail([]string{guestEmail}, subject, body)
}

// SendPaymentConfirmedEmail confirms a verified payment and links the
// transaction on the block explorer.
func SendPaymentConfirmedEmail(guestEmail, stayName, amount, token, txHash, explorerURL string) error {
	subject := "Payment Confirmed - DeDen"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Payment Confirmed</h1>
					<p>Hello,</p>
					<p>Great news! Your payment of <strong>%s %s</strong> for <strong>%s</strong> has been verified on-chain.</p>
					<p>Your booking is now confirmed. Your ticket will be available in your account shortly.</p>
					<p style="font-size: 12px; word-break: break-all;">Transaction: <a href="%s">%s</a></p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/bookings" style="background-color: #6C47FF; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">View Your Booking</a>
					</div>
					<p>Best regards,<br>The DeDen Team</p>
				</div>`+emailFooter,
		amount, token, stayName, explorerURL, txHash, baseURL)

	return sendEmail([]string{guestEmail}, subject, body)
}

// SendPaymentFailedEmail tells a guest their payment could not be verified.
func SendPaymentFailedEmail(guestEmail, stayName, reason string) error {
	subject := "Payment Verification Failed - DeDen"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Payment Verification Failed</h1>
					<p>Hello,</p>
					<p>Unfortunately, we could not verify your payment for <strong>%s</strong>.</p>
					<p>Reason: %s</p>
					<p>Please check the transaction and try again, or contact us if you believe this is an error.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/bookings" style="background-color: #6C47FF; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Try Again</a>
					</div>
					<p>Best regards,<br>The DeDen Team</p>
				</div>`+emailFooter,
		stayName, reason, baseURL)

	return sendEmail([]string{guestEmail}, subject, body)
}
