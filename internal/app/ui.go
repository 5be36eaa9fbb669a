package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ordervox/ordervox/internal/events"
	"github.com/ordervox/ordervox/pkg/types"
)

// uiNavigator implements session.Navigator by publishing navigation
// events for the frontend. It tracks the active view so the intent
// resolver sees the page the customer is on.
type uiNavigator struct {
	bus *events.Bus

	mu   sync.Mutex
	page string
}

func newUINavigator(bus *events.Bus) *uiNavigator {
	return &uiNavigator{bus: bus, page: "home"}
}

func (n *uiNavigator) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	n.page = target
	n.mu.Unlock()
	n.bus.Publish(events.Navigation, events.NavigationPayload{Target: target})
	return nil
}

func (n *uiNavigator) CurrentPage() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.page
}

// cartLine is one aggregated cart position.
type cartLine struct {
	Product   string   `json:"product"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// cartManager implements session.OrderManager with an in-memory cart.
// Checkout and cancel clear it; the surrounding commerce flow is the
// frontend's business.
type cartManager struct {
	bus *events.Bus
	nav *uiNavigator

	mu    sync.Mutex
	lines []cartLine
}

func newCartManager(bus *events.Bus, nav *uiNavigator) *cartManager {
	return &cartManager{bus: bus, nav: nav}
}

func (c *cartManager) AddItems(_ context.Context, items []types.OrderItem) error {
	c.mu.Lock()
	for _, item := range items {
		c.addLocked(item)
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

// addLocked merges the item into an existing line when product and
// modifiers match, otherwise appends a new line.
func (c *cartManager) addLocked(item types.OrderItem) {
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	for i := range c.lines {
		if c.lines[i].Product == item.Product && equalModifiers(c.lines[i].Modifiers, item.Modifiers) {
			c.lines[i].Quantity += qty
			return
		}
	}
	c.lines = append(c.lines, cartLine{
		Product:   item.Product,
		Quantity:  qty,
		Modifiers: append([]string(nil), item.Modifiers...),
	})
}

func (c *cartManager) ShowCart(ctx context.Context) error {
	return c.nav.Navigate(ctx, "cart")
}

func (c *cartManager) Checkout(ctx context.Context) error {
	if err := c.nav.Navigate(ctx, "checkout"); err != nil {
		return err
	}
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *cartManager) Cancel(context.Context) error {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *cartManager) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return ""
	}
	parts := make([]string, len(c.lines))
	for i, l := range c.lines {
		s := fmt.Sprintf("%dx %s", l.Quantity, l.Product)
		if len(l.Modifiers) > 0 {
			s += " (" + strings.Join(l.Modifiers, ", ") + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

// Lines returns a snapshot of the cart for the HTTP API.
func (c *cartManager) Lines() []cartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *cartManager) publish() {
	c.mu.Lock()
	count := 0
	for _, l := range c.lines {
		count += l.Quantity
	}
	c.mu.Unlock()
	c.bus.Publish(events.CartUpdated, events.CartPayload{Items: count, Summary: c.Summary()})
}

func equalModifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
