package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

// CurrentUser is the signed-in shopper, or nil for guest checkout.
type CurrentUser struct {
	ID    uuid.UUID
	Email string
}

// Contact is who the bakery reaches about the order.
type Contact struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Address is a delivery address.
type Address struct {
	Line1     string `json:"line1"`
	Apartment string `json:"apartment"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Notes     string `json:"notes"`
}

// CartLine is one cart line as the storefront last saw it.
type CartLine struct {
	VariantID uuid.UUID   `json:"variant_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Cents `json:"unit_price"`
}

// CheckoutInput is one checkout submission. SubmittedSubtotal and
// SubmittedFee are the storefront's estimates and are never charged.
type CheckoutInput struct {
	User              *CurrentUser           `json:"-"`
	Contact           Contact                `json:"contact"`
	FulfillmentType   models.FulfillmentType `json:"fulfillment_type"`
	DeliveryAddress   *Address               `json:"delivery_address"`
	Date              string                 `json:"date"`
	WindowID          string                 `json:"window_id"`
	Items             []CartLine             `json:"items"`
	SubmittedSubtotal money.Cents            `json:"submitted_subtotal"`
	SubmittedFee      money.Cents            `json:"submitted_fee"`
	Tip               money.Cents            `json:"tip"`
	SpecialRequests   string                 `json:"special_requests"`
}

// MaxLineQuantity caps one cart line; larger orders go through the bakery directly.
const MaxLineQuantity = 500

// CheckoutResult tells the storefront where to send the shopper to pay.
type CheckoutResult struct {
	RedirectURL string      `json:"redirect_url"`
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Total       money.Cents `json:"total"`
}

// VariantStore re-reads variants with their products at checkout time.
type VariantStore interface {
	VariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
}

// CheckoutOrderStore is the part of the order store checkout writes to.
type CheckoutOrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error
}

// ZoneResolver resolves a ZIP to an active zone or nil.
type ZoneResolver interface {
	Resolve(ctx context.Context, zip string) (*models.DeliveryZone, error)
}

// SlotBooker validates, books and releases slot capacity.
type SlotBooker interface {
	FindAvailableSlot(ctx context.Context, date string, ft models.FulfillmentType, custom bool, id uuid.UUID) (*models.TimeSlot, error)
	BookSlot(ctx context.Context, id uuid.UUID) error
	ReleaseSlot(ctx context.Context, id uuid.UUID) error
}

// OrderNotifier is told about new orders after checkout succeeds.
type OrderNotifier interface {
	OrderReceived(order models.Order)
}

// CheckoutPolicy holds the pricing and redirect settings for checkout.
type CheckoutPolicy struct {
	TaxRate       float64
	Currency      string
	PublicSiteURL string
}

// CheckoutDeps are the collaborators checkout reads from and writes to.
type CheckoutDeps struct {
	Variants VariantStore
	Orders   CheckoutOrderStore
	Zones    ZoneResolver
	Slots    SlotBooker
	Payments PaymentProvider
	Notifier OrderNotifier
}

// CheckoutService turns a cart submission into a priced, persisted order with
// a booked slot and a payment session.
type CheckoutService struct {
	deps           CheckoutDeps
	policy         CheckoutPolicy
	now            func() time.Time
	newOrderNumber func(time.Time) string
}

func NewCheckoutService(deps CheckoutDeps, policy CheckoutPolicy) *CheckoutService {
	return &CheckoutService{
		deps:           deps,
		policy:         policy,
		now:            time.Now,
		newOrderNumber: NewOrderNumber,
	}
}

// WithClock replaces the service's clock.
func (s *CheckoutService) WithClock(now func() time.Time) *CheckoutService {
	s.now = now
	return s
}

// NewOrderNumber returns a short human-readable order number such as CR-260103-7F3A9C.
func NewOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("CR-%s-%s", at.Format("060102"), suffix)
}

// pricedLine is a cart line priced from the catalog.
type pricedLine struct {
	variant  models.ProductVariant
	quantity int
}

// Submit validates and prices the cart, writes the order, books the slot and
// opens a payment session. Every failure is a *CheckoutError. Validation
// failures write nothing; later failures undo what was written.
func (s *CheckoutService) Submit(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if len(in.Items) == 0 {
		return nil, errEmptyCart()
	}

	in.Contact = s.prefillContact(in.Contact, in.User)
	windowID, fields := validateCheckoutFields(in)
	if len(fields) > 0 {
		return nil, errMissingFields(fields)
	}

	lines, err := s.priceLines(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	moneyLines := make([]money.Line, len(lines))
	custom := false
	for i, l := range lines {
		moneyLines[i] = money.Line{UnitPrice: l.variant.Price, Quantity: l.quantity}
		custom = custom || l.variant.Product.IsCustom
	}
	subtotal := money.SubtotalOf(moneyLines...)

	var zone *models.DeliveryZone
	if in.FulfillmentType == models.FulfillmentDelivery {
		zone, err = s.deps.Zones.Resolve(ctx, in.DeliveryAddress.Zip)
		if err != nil {
			return nil, errOrderPersistence(fmt.Errorf("resolve zone: %w", err))
		}
		if zone == nil {
			return nil, errServiceArea(strings.TrimSpace(in.DeliveryAddress.Zip))
		}
		if !MeetsMinimum(zone, subtotal) {
			return nil, errMinimumNotMet(zone.Name, AmountToMinimum(zone, subtotal))
		}
	}
	fee := DeliveryFee(zone, subtotal)

	if in.SubmittedSubtotal != subtotal.Cents() || in.SubmittedFee != fee {
		log.Printf("[Checkout] storefront estimate %s + %s differs from %s + %s; charging server amounts",
			in.SubmittedSubtotal, in.SubmittedFee, subtotal, fee)
	}

	slot, err := s.deps.Slots.FindAvailableSlot(ctx, in.Date, in.FulfillmentType, custom, windowID)
	if err != nil {
		if errors.Is(err, ErrSlotNotOffered) {
			return nil, errSlotUnavailable(err)
		}
		return nil, errOrderPersistence(fmt.Errorf("check slot: %w", err))
	}

	order := s.buildOrder(in, lines, subtotal, zone, fee, slot)

	if err := s.deps.Orders.Create(ctx, order); err != nil {
		return nil, errOrderPersistence(err)
	}

	if err := s.deps.Slots.BookSlot(ctx, slot.ID); err != nil {
		s.rollback(ctx, order, nil)
		if errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrSlotNotFound) {
			return nil, errSlotUnavailable(err)
		}
		return nil, errOrderPersistence(err)
	}

	session, err := s.deps.Payments.CreateCheckoutSession(ctx, s.paymentRequest(order))
	if err != nil {
		log.Printf("[Checkout] payment session failed for order %s: %v", order.OrderNumber, err)
		s.rollback(ctx, order, &slot.ID)
		return nil, errPaymentSession(err)
	}

	order.PaymentSessionID = session.ID
	if err := s.deps.Orders.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		log.Printf("[Checkout] failed to store payment session %s on order %s: %v", session.ID, order.OrderNumber, err)
	}

	if s.deps.Notifier != nil {
		s.deps.Notifier.OrderReceived(*order)
	}

	return &CheckoutResult{
		RedirectURL: session.URL,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
	}, nil
}

func (s *CheckoutService) prefillContact(c Contact, user *CurrentUser) Contact {
	c.Email = strings.TrimSpace(c.Email)
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Email == "" && user != nil {
		c.Email = user.Email
	}
	return c
}

func validateCheckoutFields(in CheckoutInput) (uuid.UUID, []string) {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require("contact.email", in.Contact.Email)
	require("contact.name", in.Contact.Name)
	require("contact.phone", in.Contact.Phone)
	if !in.FulfillmentType.Valid() {
		missing = append(missing, "fulfillment_type")
	}
	require("date", in.Date)

	var windowID uuid.UUID
	if strings.TrimSpace(in.WindowID) == "" {
		missing = append(missing, "window_id")
	} else if id, err := uuid.Parse(strings.TrimSpace(in.WindowID)); err != nil {
		missing = append(missing, "window_id")
	} else {
		windowID = id
	}

	if in.FulfillmentType == models.FulfillmentDelivery {
		addr := in.DeliveryAddress
		if addr == nil {
			addr = &Address{}
		}
		require("delivery_address.line1", addr.Line1)
		require("delivery_address.city", addr.City)
		require("delivery_address.state", addr.State)
		require("delivery_address.zip", addr.Zip)
	}

	for i, line := range in.Items {
		if line.VariantID == uuid.Nil {
			missing = append(missing, fmt.Sprintf("items[%d].variant_id", i))
		}
		if line.Quantity <= 0 || line.Quantity > MaxLineQuantity {
			missing = append(missing, fmt.Sprintf("items[%d].quantity", i))
		}
	}

	if in.Tip < 0 {
		missing = append(missing, "tip")
	}

	return windowID, missing
}

// priceLines re-reads every variant and checks it against the cart.
func (s *CheckoutService) priceLines(ctx context.Context, cart []CartLine) ([]pricedLine, error) {
	ids := make([]uuid.UUID, 0, len(cart))
	for _, line := range cart {
		ids = append(ids, line.VariantID)
	}

	variants, err := s.deps.Variants.VariantsByIDs(ctx, ids)
	if err != nil {
		return nil, errOrderPersistence(fmt.Errorf("load variants: %w", err))
	}
	byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	var (
		unavailable []string
		mismatched  []string
		lines       = make([]pricedLine, 0, len(cart))
	)
	for _, line := range cart {
		v, ok := byID[line.VariantID]
		if !ok || !v.IsAvailable || v.Product == nil || !v.Product.IsActive {
			unavailable = appendUnique(unavailable, variantLabel(v, ok, line.VariantID))
			continue
		}
		if v.Price != line.UnitPrice {
			mismatched = appendUnique(mismatched, variantLabel(v, ok, line.VariantID))
			continue
		}
		lines = append(lines, pricedLine{variant: v, quantity: line.Quantity})
	}

	if len(unavailable) > 0 {
		return nil, errItemUnavailable(unavailable)
	}
	if len(mismatched) > 0 {
		return nil, errPriceChanged(mismatched)
	}
	return lines, nil
}

func variantLabel(v models.ProductVariant, found bool, id uuid.UUID) string {
	if !found {
		return id.String()
	}
	if v.Product != nil && v.Product.Name != "" {
		return v.Product.Name
	}
	if v.Name != "" {
		return v.Name
	}
	return id.String()
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func (s *CheckoutService) buildOrder(in CheckoutInput, lines []pricedLine, subtotal money.Subtotal, zone *models.DeliveryZone, fee money.Cents, slot *models.TimeSlot) *models.Order {
	now := s.now()
	tax := subtotal.Cents().MulRate(s.policy.TaxRate)
	var discount money.Cents

	order := &models.Order{
		OrderNumber:     s.newOrderNumber(now),
		Status:          models.StatusReceived,
		ContactEmail:    in.Contact.Email,
		ContactName:     in.Contact.Name,
		ContactPhone:    in.Contact.Phone,
		FulfillmentType: in.FulfillmentType,
		FulfillmentDate: slot.Date,
		TimeSlotID:      &slot.ID,
		Subtotal:        subtotal.Cents(),
		DeliveryFee:     fee,
		TaxAmount:       tax,
		DiscountAmount:  discount,
		Tip:             in.Tip,
		Total:           subtotal.Cents() + fee + tax - discount + in.Tip,
		Currency:        s.policy.Currency,
		SpecialRequests: strings.TrimSpace(in.SpecialRequests),
		ReceivedAt:      now,
		History: []models.OrderStatusHistory{{
			Status:    models.StatusReceived,
			Actor:     "checkout",
			CreatedAt: now,
		}},
	}
	if in.User != nil {
		userID := in.User.ID
		order.UserID = &userID
	}
	if zone != nil {
		zoneID := zone.ID
		order.DeliveryZoneID = &zoneID
	}
	if in.FulfillmentType == models.FulfillmentDelivery && in.DeliveryAddress != nil {
		addr := in.DeliveryAddress
		order.DeliveryAddressLine = strings.TrimSpace(addr.Line1)
		order.DeliveryApartment = strings.TrimSpace(addr.Apartment)
		order.DeliveryCity = strings.TrimSpace(addr.City)
		order.DeliveryState = strings.TrimSpace(addr.State)
		order.DeliveryZip = strings.TrimSpace(addr.Zip)
		order.DeliveryNotes = strings.TrimSpace(addr.Notes)
	}

	for _, l := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   l.variant.ProductID,
			VariantID:   l.variant.ID,
			ProductName: l.variant.Product.Name,
			VariantName: l.variant.Name,
			UnitPrice:   l.variant.Price,
			Quantity:    l.quantity,
			LineTotal:   l.variant.Price * money.Cents(l.quantity),
		})
	}
	return order
}

func (s *CheckoutService) paymentRequest(order *models.Order) PaymentSessionRequest {
	req := PaymentSessionRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.ContactEmail,
		Currency:      order.Currency,
		SuccessURL:    fmt.Sprintf("%s/checkout/success?order_id=%s", s.policy.PublicSiteURL, order.ID),
		CancelURL:     fmt.Sprintf("%s/checkout/cancel?order_id=%s", s.policy.PublicSiteURL, order.ID),
	}

	for _, item := range order.Items {
		name := item.ProductName
		if item.VariantName != "" {
			name += " (" + item.VariantName + ")"
		}
		req.LineItems = append(req.LineItems, PaymentLineItem{Name: name, UnitAmount: item.UnitPrice, Quantity: item.Quantity})
	}
	if order.DeliveryFee > 0 {
		req.LineItems = append(req.LineItems, PaymentLineItem{Name: "Delivery fee", UnitAmount: order.DeliveryFee, Quantity: 1})
	}
	if order.TaxAmount > 0 {
		req.LineItems = append(req.LineItems, PaymentLineItem{Name: "Tax", UnitAmount: order.TaxAmount, Quantity: 1})
	}
	if order.Tip > 0 {
		req.LineItems = append(req.LineItems, PaymentLineItem{Name: "Tip", UnitAmount: order.Tip, Quantity: 1})
	}
	return req
}

// undoTimeout bounds rollback writes once the request itself is gone.
const undoTimeout = 5 * time.Second

// undoContext keeps ctx's values but not its cancellation, so undo writes
// still run after the request deadline that caused the failure.
func undoContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), undoTimeout)
}

// rollback releases the booked slot, when there is one, and deletes the order.
func (s *CheckoutService) rollback(ctx context.Context, order *models.Order, bookedSlot *uuid.UUID) {
	ctx, cancel := undoContext(ctx)
	defer cancel()

	if bookedSlot != nil {
		if err := s.deps.Slots.ReleaseSlot(ctx, *bookedSlot); err != nil {
			log.Printf("[Checkout] failed to release slot %s for order %s: %v", *bookedSlot, order.OrderNumber, err)
		}
	}
	if err := s.deps.Orders.Delete(ctx, order.ID); err != nil {
		log.Printf("[Checkout] failed to roll back order %s: %v", order.OrderNumber, err)
	}
}
