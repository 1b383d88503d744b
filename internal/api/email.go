package api

import (
	"bytes"
	"crypto/tls"
	"database/sql"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"stride/internal/models"

	"github.com/gofiber/fiber/v2"
)

type SummaryEmailData struct {
	Username string
	Habits   []models.HabitSummary
	AppURL   string
	Year     int
}

const summaryTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
	<h2>Your habit progress</h2>
	<p>Hi {{.Username}}, here is where your habits stand today.</p>
	<table cellpadding="6">
		<tr><th align="left">Habit</th><th align="right">Executed</th><th align="right">Days</th><th align="right">Rate</th></tr>
		{{range .Habits}}
		<tr>
			<td>{{.Habit.Name}}</td>
			<td align="right">{{.ExecutedCount}}</td>
			<td align="right">{{.TotalDays}}</td>
			<td align="right">{{printf "%.0f%%" .ExecutionPercentage}}</td>
		</tr>
		{{end}}
	</table>
	<p><a href="{{.AppURL}}">Open Stride</a></p>
	<p style="color: #999; font-size: 12px;">&copy; {{.Year}} Stride</p>
</body>
</html>`

// GenerateSummaryEmail renders the progress summary HTML for a user.
func GenerateSummaryEmail(username string, habits []models.HabitSummary, appURL string) (string, error) {
	tmpl, err := template.New("summary").Parse(summaryTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	data := SummaryEmailData{
		Username: username,
		Habits:   habits,
		AppURL:   appURL,
		Year:     time.Now().Year(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return buf.String(), nil
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// GetSMTPConfig reads SMTP configuration from environment variables
func GetSMTPConfig() (*SMTPConfig, error) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST not configured")
	}

	port := 587
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
	}

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "noreply@stride.app"
	}

	useTLS := true
	if v := os.Getenv("SMTP_USE_TLS"); v != "" {
		useTLS = strings.ToLower(v) != "false"
	}

	return &SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     from,
		UseTLS:   useTLS,
	}, nil
}

// sendSMTPEmail sends a multipart HTML email via SMTP.
func sendSMTPEmail(config *SMTPConfig, to, subject, htmlBody string) error {
	boundary := "----=_Part_0_1234567890.1234567890"

	message := fmt.Sprintf("From: %s\r\n", config.From)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	message += "\r\n"

	message += fmt.Sprintf("--%s\r\n", boundary)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "Content-Transfer-Encoding: 7bit\r\n"
	message += "\r\n"
	message += "Please view this email in an HTML-capable email client.\r\n"
	message += "\r\n"

	message += fmt.Sprintf("--%s\r\n", boundary)
	message += "Content-Type: text/html; charset=UTF-8\r\n"
	message += "Content-Transfer-Encoding: 7bit\r\n"
	message += "\r\n"
	message += htmlBody
	message += "\r\n"
	message += fmt.Sprintf("--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	if config.UseTLS {
		return sendMailTLS(addr, auth, config.From, []string{to}, []byte(message), config.Host)
	}
	return smtp.SendMail(addr, auth, config.From, []string{to}, []byte(message))
}

// sendMailTLS sends email over a STARTTLS connection.
func sendMailTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte, host string) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: host,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	defer w.Close()

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func getAppURL() string {
	url := os.Getenv("APP_URL")
	if url == "" {
		url = "http://localhost:3000"
	}
	return url
}

// SendSummaryEmailHandler mails the user their habit progress summary.
// Missing SMTP configuration or a missing email address is reported, not
// treated as a server fault.
func SendSummaryEmailHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		username := c.Locals("username").(string)

		var email sql.NullString
		if err := db.QueryRow("SELECT email FROM users WHERE id = ?", userID).Scan(&email); err != nil {
			return err
		}
		if !email.Valid || email.String == "" {
			return fiber.NewError(fiber.StatusBadRequest, "No email address on profile")
		}

		config, err := GetSMTPConfig()
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Email not configured")
		}

		rows, err := db.Query(
			"SELECT id, user_id, name, color, created_at FROM habits WHERE user_id = ? ORDER BY created_at ASC",
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		habits := []models.Habit{}
		for rows.Next() {
			var h models.Habit
			if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Color, &h.CreatedAt); err != nil {
				return err
			}
			habits = append(habits, h)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		summaries := []models.HabitSummary{}
		for _, h := range habits {
			s, err := habitSummary(db, h)
			if err != nil {
				return err
			}
			summaries = append(summaries, s)
		}

		htmlContent, err := GenerateSummaryEmail(username, summaries, getAppURL())
		if err != nil {
			return err
		}

		if err := sendSMTPEmail(config, email.String, "Your Stride habit progress", htmlContent); err != nil {
			log.Printf("Summary email failed for user %d: %v", userID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to send summary email")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Summary email sent",
		})
	}
}
