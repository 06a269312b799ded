package services

import (
	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

// FlowStep is a step of the fulfillment selection flow.
type FlowStep string

const (
	StepChoosingType FlowStep = "choosing_type"
	StepChoosingZone FlowStep = "choosing_zone"
	StepPickingSlot  FlowStep = "picking_slot"
	StepComplete     FlowStep = "complete"
)

// FlowState is the shopper's fulfillment selection. Zone is always nil for
// pickup. Start from NewFlow.
type FlowState struct {
	Step            FlowStep
	FulfillmentType models.FulfillmentType
	Zone            *models.DeliveryZone
	Date            string
	Slot            *models.TimeSlot
	Subtotal        money.Subtotal
}

// FlowEvent is an input to ReduceFlow.
type FlowEvent interface {
	apply(FlowState) FlowState
}

// SelectType picks pickup or delivery. Switching type drops zone, date and slot.
type SelectType struct {
	Type models.FulfillmentType
}

// ZoneResolved carries the result of resolving the shopper's ZIP. A nil Zone
// means the address is outside the service area.
type ZoneResolved struct {
	Zone *models.DeliveryZone
}

// SelectDate picks a calendar date and drops any slot picked for another date.
type SelectDate struct {
	Date string
}

// SelectSlot picks a slot on the selected date. A nil Slot clears the pick.
type SelectSlot struct {
	Slot *models.TimeSlot
}

// SubtotalChanged reports a new cart subtotal.
type SubtotalChanged struct {
	Subtotal money.Subtotal
}

func (e SelectType) apply(s FlowState) FlowState {
	if !e.Type.Valid() || e.Type == s.FulfillmentType {
		return s
	}
	return FlowState{FulfillmentType: e.Type, Subtotal: s.Subtotal}
}

func (e ZoneResolved) apply(s FlowState) FlowState {
	if s.FulfillmentType != models.FulfillmentDelivery {
		return s
	}
	s.Zone = e.Zone
	if e.Zone == nil {
		s.Slot = nil
	}
	return s
}

func (e SelectDate) apply(s FlowState) FlowState {
	if s.Step != StepPickingSlot && s.Step != StepComplete {
		return s
	}
	if e.Date != s.Date {
		s.Slot = nil
	}
	s.Date = e.Date
	return s
}

func (e SelectSlot) apply(s FlowState) FlowState {
	if s.Step != StepPickingSlot && s.Step != StepComplete {
		return s
	}
	if e.Slot == nil {
		s.Slot = nil
		return s
	}
	if s.Date == "" || e.Slot.Date != s.Date || !e.Slot.SlotType.Accepts(s.FulfillmentType) {
		return s
	}
	slot := *e.Slot
	s.Slot = &slot
	return s
}

func (e SubtotalChanged) apply(s FlowState) FlowState {
	s.Subtotal = e.Subtotal
	return s
}

// NewFlow returns the state at the start of the flow.
func NewFlow() FlowState {
	return settle(FlowState{})
}

// ReduceFlow applies event to state and returns the new state. Events that do
// not fit the current step leave the selection unchanged.
func ReduceFlow(state FlowState, event FlowEvent) FlowState {
	return settle(event.apply(state))
}

func settle(s FlowState) FlowState {
	switch {
	case !s.FulfillmentType.Valid():
		s.Step = StepChoosingType
	case s.FulfillmentType == models.FulfillmentDelivery && s.Zone == nil:
		s.Step = StepChoosingZone
	case s.Slot == nil || s.Date == "":
		s.Step = StepPickingSlot
	default:
		s.Step = StepComplete
	}
	return s
}

// SlotQuery returns the date and type the slot list must be fetched for, and
// false when the flow is not picking a slot.
func (s FlowState) SlotQuery() (string, models.FulfillmentType, bool) {
	if (s.Step != StepPickingSlot && s.Step != StepComplete) || s.Date == "" {
		return "", "", false
	}
	return s.Date, s.FulfillmentType, true
}

// FlowOutput is what the checkout page renders and gates submission on.
type FlowOutput struct {
	Step                 FlowStep               `json:"step"`
	FulfillmentType      models.FulfillmentType `json:"fulfillment_type"`
	Zone                 *models.DeliveryZone   `json:"zone"`
	Slot                 *models.TimeSlot       `json:"slot"`
	Date                 string                 `json:"date"`
	Subtotal             money.Subtotal         `json:"subtotal"`
	DeliveryFee          money.Cents            `json:"delivery_fee"`
	MeetsMinimum         bool                   `json:"meets_minimum"`
	AmountToMinimum      money.Cents            `json:"amount_to_minimum"`
	AmountToFreeDelivery *money.Cents           `json:"amount_to_free_delivery"`
	IsValid              bool                   `json:"is_valid"`
}

// Output derives the fee figures and validity from the state.
func (s FlowState) Output() FlowOutput {
	fees := QuoteFees(s.Zone, s.Subtotal)
	return FlowOutput{
		Step:                 s.Step,
		FulfillmentType:      s.FulfillmentType,
		Zone:                 s.Zone,
		Slot:                 s.Slot,
		Date:                 s.Date,
		Subtotal:             s.Subtotal,
		DeliveryFee:          fees.DeliveryFee,
		MeetsMinimum:         fees.MeetsMinimum,
		AmountToMinimum:      fees.AmountToMinimum,
		AmountToFreeDelivery: fees.AmountToFreeDelivery,
		IsValid:              s.Step == StepComplete && fees.MeetsMinimum,
	}
}
