package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/crumb/internal/models"
)

const telegramAPIURL = "https://api.telegram.org"

// TelegramService posts order alerts to the bakery staff chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramAPIURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// FormatOrderAlert renders the staff message for a new order.
func FormatOrderAlert(order models.Order) string {
	var items strings.Builder
	for i, item := range order.Items {
		name := html.EscapeString(item.ProductName)
		if item.VariantName != "" {
			name += " (" + html.EscapeString(item.VariantName) + ")"
		}
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s = %s\n", i+1, name, item.Quantity, item.UnitPrice, item.LineTotal)
	}

	fulfillment := "Pickup"
	if order.FulfillmentType == models.FulfillmentDelivery {
		fulfillment = fmt.Sprintf("Delivery to %s, %s %s",
			html.EscapeString(order.DeliveryAddressLine),
			html.EscapeString(order.DeliveryCity),
			html.EscapeString(order.DeliveryZip))
	}

	var extra string
	if order.SpecialRequests != "" {
		extra = fmt.Sprintf("<b>Notes:</b> %s\n", html.EscapeString(order.SpecialRequests))
	}

	message := fmt.Sprintf(`<b>NEW ORDER %s</b>
<b>Customer:</b> %s
<b>Phone:</b> %s
<b>Fulfillment:</b> %s
<b>Date:</b> %s
<b>Items:</b>
%s%s<b>Subtotal:</b> %s
<b>Delivery:</b> %s
<b>Tax:</b> %s
<b>Tip:</b> %s
<b>Total:</b> %s %s`,
		html.EscapeString(order.OrderNumber),
		html.EscapeString(order.ContactName),
		html.EscapeString(order.ContactPhone),
		fulfillment,
		order.FulfillmentDate,
		items.String(),
		extra,
		order.Subtotal,
		order.DeliveryFee,
		order.TaxAmount,
		order.Tip,
		order.Total,
		strings.ToUpper(order.Currency),
	)
	return strings.TrimSpace(message)
}

// NotifyNewOrder sends notification about a new order to the admin chat.
func (s *TelegramService) NotifyNewOrder(order models.Order) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendToAdmin(FormatOrderAlert(order))
}

// NotifyStatusChange tells staff an order moved from one status to another.
func (s *TelegramService) NotifyStatusChange(order models.Order, from models.OrderStatus) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf("<b>Order %s</b>: %s → <b>%s</b>\n%s, %s",
		html.EscapeString(order.OrderNumber),
		from,
		order.Status,
		html.EscapeString(order.ContactName),
		order.FulfillmentDate,
	)
	return s.SendToAdmin(message)
}
