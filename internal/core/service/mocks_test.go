package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/campus-market/internal/core/domain"
)

// mockDB is an in-memory DatabaseRepository. CreateOrder holds the same
// contract as the real adapter: one atomic unit, nothing written on failure.
type mockDB struct {
	mu     sync.Mutex
	items  map[string]*domain.Item
	orders map[string]*domain.Order

	// createOrderErrs is drained one error per CreateOrder call before the
	// real logic runs; used to simulate transient conflicts.
	createOrderErrs []error
}

func newMockDB() *mockDB {
	return &mockDB{
		items:  make(map[string]*domain.Item),
		orders: make(map[string]*domain.Order),
	}
}

func (m *mockDB) addItem(item domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := item
	m.items[item.ID] = &copy
}

func (m *mockDB) itemStatus(itemID string) domain.ItemStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID].Status
}

func (m *mockDB) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockDB) GetItem(_ context.Context, itemID string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, nil
	}
	copy := *item
	return &copy, nil
}

func (m *mockDB) SetItemRemoved(_ context.Context, itemID, sellerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return domain.ErrItemUnavailable
	}
	if item.SellerID != sellerID {
		return domain.ErrUnauthorized
	}
	if item.Status == domain.ItemStatusAvailable {
		item.Status = domain.ItemStatusRemoved
	}
	return nil
}

func (m *mockDB) CreateOrder(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.createOrderErrs) > 0 {
		err := m.createOrderErrs[0]
		m.createOrderErrs = m.createOrderErrs[1:]
		return err
	}

	for _, line := range order.Lines {
		item, ok := m.items[line.ItemID]
		if !ok || item.Status != domain.ItemStatusAvailable {
			return fmt.Errorf("item %s: %w", line.ItemID, domain.ErrItemUnavailable)
		}
		if item.SellerID == order.BuyerID {
			return fmt.Errorf("item %s: %w", line.ItemID, domain.ErrSelfPurchase)
		}
	}

	stored := order
	m.orders[order.ID] = &stored
	for _, line := range order.Lines {
		m.items[line.ItemID].Status = domain.ItemStatusSold
	}
	return nil
}

func (m *mockDB) UpdateOrderStatus(_ context.Context, orderID, sellerID string, next domain.OrderStatus) (domain.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return "", domain.ErrOrderNotFound
	}

	sells := false
	for _, line := range order.Lines {
		if line.SellerID == sellerID {
			sells = true
			break
		}
	}
	if !sells {
		return "", domain.ErrUnauthorized
	}

	prior := order.Status
	if !domain.CanTransition(prior, next) {
		return "", fmt.Errorf("%s -> %s: %w", prior, next, domain.ErrInvalidTransition)
	}
	order.Status = next
	return prior, nil
}

func (m *mockDB) MarkOrderPaid(_ context.Context, orderID, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.BuyerID != buyerID {
		return domain.ErrUnauthorized
	}
	if order.Status != domain.OrderStatusPendingPayment {
		return fmt.Errorf("order is %s: %w", order.Status, domain.ErrInvalidTransition)
	}
	order.Status = domain.OrderStatusProcessing
	return nil
}

func (m *mockDB) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	copy := *order
	return &copy, nil
}

func (m *mockDB) ListBuyerOrders(_ context.Context, buyerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []domain.Order
	for _, order := range m.orders {
		if order.BuyerID == buyerID {
			orders = append(orders, *order)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *mockDB) ListSellerSales(_ context.Context, sellerID string) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sales []domain.Sale
	for _, order := range m.orders {
		for _, line := range order.Lines {
			if line.SellerID == sellerID {
				sales = append(sales, domain.Sale{
					OrderID:   order.ID,
					OrderDate: order.CreatedAt,
					Status:    order.Status,
					Line:      line,
					Contact:   order.Delivery,
				})
			}
		}
	}
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].OrderDate.After(sales[j].OrderDate)
	})
	return sales, nil
}

// mockCartStore keeps carts in a nested map.
type mockCartStore struct {
	mu    sync.Mutex
	carts map[string]map[string]domain.CartLine
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: make(map[string]map[string]domain.CartLine)}
}

func (m *mockCartStore) GetLine(_ context.Context, userID, itemID string) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.carts[userID][itemID]
	if !ok {
		return nil, nil
	}
	return &line, nil
}

func (m *mockCartStore) PutLine(_ context.Context, userID string, line domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carts[userID] == nil {
		m.carts[userID] = make(map[string]domain.CartLine)
	}
	m.carts[userID][line.ItemID] = line
	return nil
}

func (m *mockCartStore) RemoveLine(_ context.Context, userID, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID][itemID]; !ok {
		return false, nil
	}
	delete(m.carts[userID], itemID)
	return true, nil
}

func (m *mockCartStore) Lines(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lines []domain.CartLine
	for _, line := range m.carts[userID] {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].ItemID < lines[j].ItemID
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines, nil
}

func (m *mockCartStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *mockCartStore) size(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts[userID])
}

// mockCache mirrors the Redis SetNX idempotency behavior.
type mockCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockCache() *mockCache {
	return &mockCache{keys: make(map[string]bool)}
}

func (m *mockCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockCache) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// mockSink records enqueued events.
type mockSink struct {
	mu     sync.Mutex
	events []domain.MarketEvent
}

func (m *mockSink) Enqueue(event domain.MarketEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockSink) last() domain.MarketEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}
