package conversion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Qualifying payment event types. Anything else is acknowledged and skipped.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventCheckoutCompleted   = "checkout.session.completed"
)

// Event is the subset of a payment webhook payload the attributor reads.
type Event struct {
	Type string `json:"type"`
	Data struct {
		Object Object `json:"object"`
	} `json:"data"`
}

// Object is the subscription or checkout-session object carried by an event.
type Object struct {
	Metadata      map[string]string `json:"metadata"`
	CustomerEmail string            `json:"customer_email"`

	// Subscription shape: items carry the priced product.
	Items struct {
		Data []Item `json:"data"`
	} `json:"items"`

	// Checkout-session shapes: the product name can appear directly.
	DisplayItems []DisplayItem `json:"display_items"`
	LineItems    struct {
		Data []LineItem `json:"data"`
	} `json:"line_items"`
}

// Item is one subscription line with its product reference.
type Item struct {
	Price struct {
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
	} `json:"price"`
	Plan struct {
		Nickname string `json:"nickname"`
	} `json:"plan"`
}

// DisplayItem is the legacy checkout-session line shape.
type DisplayItem struct {
	Custom struct {
		Name string `json:"name"`
	} `json:"custom"`
}

// LineItem is the expanded checkout-session line shape.
type LineItem struct {
	Description string `json:"description"`
}

// ParseEvent decodes a raw webhook body.
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("conversion: parse event: %w", err)
	}
	return &ev, nil
}

// Qualifies reports whether the event type feeds the conversion ledger.
func (e *Event) Qualifies() bool {
	return e.Type == EventSubscriptionCreated || e.Type == EventCheckoutCompleted
}

// SubscriberWallet extracts the subscriber wallet from event metadata.
func (e *Event) SubscriberWallet() string {
	return e.Data.Object.Metadata["wallet_address"]
}

// SubscriberUsername extracts the subscriber username from event metadata.
func (e *Event) SubscriberUsername() string {
	return e.Data.Object.Metadata["username"]
}

// SubscriberEmail prefers the customer email over a metadata fallback.
func (e *Event) SubscriberEmail() string {
	if e.Data.Object.CustomerEmail != "" {
		return e.Data.Object.CustomerEmail
	}
	return e.Data.Object.Metadata["email"]
}

// TierOf derives the subscription tier. Product-name heuristics run first
// across the item shapes; an explicit metadata tier always wins.
func (e *Event) TierOf() Tier {
	tier := TierStandard
	obj := e.Data.Object

	if len(obj.Items.Data) > 0 {
		name := obj.Items.Data[0].Price.Product.Name
		if name == "" {
			name = obj.Items.Data[0].Plan.Nickname
		}
		if t, ok := tierFromName(name); ok {
			tier = t
		}
	}

	var direct string
	if len(obj.DisplayItems) > 0 {
		direct = obj.DisplayItems[0].Custom.Name
	}
	if direct == "" && len(obj.LineItems.Data) > 0 {
		direct = obj.LineItems.Data[0].Description
	}
	if t, ok := tierFromName(direct); ok {
		tier = t
	}

	if override := obj.Metadata["tier"]; override != "" {
		tier, _ = normalizeTier(override)
	}
	return tier
}

func tierFromName(name string) (Tier, bool) {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "pro"):
		return TierPro, true
	case strings.Contains(name, "standard"):
		return TierStandard, true
	default:
		return "", false
	}
}
