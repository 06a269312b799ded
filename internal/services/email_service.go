package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/crumb/internal/models"
)

// EmailService sends transactional order emails through an HTTP email API.
type EmailService struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

func NewEmailService(apiURL, apiKey, from string) *EmailService {
	return &EmailService{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts one email. It is a no-op when no API key is configured.
func (s *EmailService) Send(ctx context.Context, to, subject, body string) error {
	if s.apiKey == "" {
		log.Println("[Email] API key not configured")
		return nil
	}

	payload, err := json.Marshal(emailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		HTML:    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}

// StatusEmail returns the subject and body for the customer email about the
// order's current status, and false when that status sends no email.
func StatusEmail(order models.Order) (string, string, bool) {
	number := html.EscapeString(order.OrderNumber)
	name := html.EscapeString(order.ContactName)

	switch order.Status {
	case models.StatusConfirmed:
		var lines strings.Builder
		for _, item := range order.Items {
			fmt.Fprintf(&lines, "<li>%d x %s: %s</li>", item.Quantity, html.EscapeString(item.ProductName), item.LineTotal)
		}
		return "Order " + order.OrderNumber + " confirmed",
			fmt.Sprintf("<p>Hi %s,</p><p>We received your payment for order <b>%s</b>.</p><ul>%s</ul><p>Total: %s. %s on %s.</p>",
				name, number, lines.String(), order.Total, fulfillmentLabel(order), order.FulfillmentDate),
			true
	case models.StatusReady:
		what := "is ready for pickup"
		if order.FulfillmentType == models.FulfillmentDelivery {
			what = "is ready and will be on its way soon"
		}
		return "Order " + order.OrderNumber + " is ready",
			fmt.Sprintf("<p>Hi %s,</p><p>Your order <b>%s</b> %s.</p>", name, number, what),
			true
	case models.StatusOutForDelivery, models.StatusCancelled, models.StatusRefunded:
		status := strings.ReplaceAll(string(order.Status), "_", " ")
		return "Order " + order.OrderNumber + ": " + status,
			fmt.Sprintf("<p>Hi %s,</p><p>Your order <b>%s</b> is now <b>%s</b>.</p>", name, number, status),
			true
	}
	return "", "", false
}

func fulfillmentLabel(order models.Order) string {
	if order.FulfillmentType == models.FulfillmentDelivery {
		return "Delivery"
	}
	return "Pickup"
}
