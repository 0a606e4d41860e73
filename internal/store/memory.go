package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gallery-store/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps every table in maps keyed by incrementing ids.
// Transactions are serialised and applied copy-on-commit.
type MemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *memState
}

type memState struct {
	nextID map[string]int64

	users      map[int64]models.User
	products   map[int64]models.Product
	cartItems  map[int64]models.CartItem
	orders     map[int64]models.Order
	orderItems map[int64]models.OrderItem
	otps       map[int64]models.OtpCode
	events     map[string]models.ProcessedEvent
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		nextID:     map[string]int64{},
		users:      map[int64]models.User{},
		products:   map[int64]models.Product{},
		cartItems:  map[int64]models.CartItem{},
		orders:     map[int64]models.Order{},
		orderItems: map[int64]models.OrderItem{},
		otps:       map[int64]models.OtpCode{},
		events:     map[string]models.ProcessedEvent{},
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.nextID {
		c.nextID[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.orderItems {
		c.orderItems[k] = v
	}
	for k, v := range st.otps {
		c.otps[k] = v
	}
	for k, v := range st.events {
		c.events[k] = v
	}
	return c
}

func (st *memState) id(table string) int64 {
	st.nextID[table]++
	return st.nextID[table]
}

func (st *memState) userCart(userID int64) []models.CartItem {
	items := []models.CartItem{}
	for _, item := range st.cartItems {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (st *memState) findCartItem(userID, productID int64) (models.CartItem, bool) {
	for _, item := range st.cartItems {
		if item.UserID == userID && item.ProductID == productID {
			return item, true
		}
	}
	return models.CartItem{}, false
}

func (st *memState) clearCart(userID int64) {
	for id, item := range st.cartItems {
		if item.UserID == userID {
			delete(st.cartItems, id)
		}
	}
}

func (st *memState) productsByIDs(ids []int64) []models.Product {
	products := []models.Product{}
	seen := map[int64]bool{}
	for _, id := range ids {
		if p, ok := st.products[id]; ok && !seen[id] {
			seen[id] = true
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func sortOrdersNewestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// RunInTx runs fn against a private copy of the state and publishes it when fn succeeds
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(&memTx{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

// write applies fn to the live state while holding both locks so that it
// cannot interleave with a running transaction.
func (s *MemoryStore) write(fn func(st *memState) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *MemoryStore) read(fn func(st *memState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// GetUserByID retrieves a user by ID
func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var (
		user models.User
		ok   bool
	)
	s.read(func(st *memState) { user, ok = st.users[id] })
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var found *models.User
	s.read(func(st *memState) {
		for _, u := range st.users {
			if u.Username == username {
				u := u
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return found, nil
}

// CreateUser inserts a user
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.write(func(st *memState) error {
		for _, u := range st.users {
			if u.Username == user.Username {
				return fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
			}
		}
		user.ID = st.id("users")
		st.users[user.ID] = *user
		return nil
	})
}

// UpdateUser updates password and admin flag
func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	return s.write(func(st *memState) error {
		existing, ok := st.users[user.ID]
		if !ok {
			return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
		}
		existing.Password = user.Password
		existing.IsAdmin = user.IsAdmin
		st.users[user.ID] = existing
		return nil
	})
}

// GetProducts retrieves all products
func (s *MemoryStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	s.read(func(st *memState) {
		for _, p := range st.products {
			products = append(products, p)
		}
	})
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// GetProductByID retrieves a product by ID
func (s *MemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var (
		product models.Product
		ok      bool
	)
	s.read(func(st *memState) { product, ok = st.products[id] })
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs, skipping missing ones
func (s *MemoryStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	var products []models.Product
	s.read(func(st *memState) { products = st.productsByIDs(ids) })
	return products, nil
}

// CreateProduct inserts a product
func (s *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	return s.write(func(st *memState) error {
		product.ID = st.id("products")
		st.products[product.ID] = *product
		return nil
	})
}

// UpdateProduct overwrites every field of a product
func (s *MemoryStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	return s.write(func(st *memState) error {
		if _, ok := st.products[product.ID]; !ok {
			return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
		}
		st.products[product.ID] = *product
		return nil
	})
}

// DeleteProduct deletes a product. Cart lines referencing it are left in place.
func (s *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	return s.write(func(st *memState) error {
		delete(st.products, id)
		return nil
	})
}

// GetCartItems retrieves the cart lines of a user
func (s *MemoryStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	s.read(func(st *memState) { items = st.userCart(userID) })
	return items, nil
}

// AddCartItem inserts a cart line or adds quantity to the existing one. The resulting
// line may hold at most maxQuantity units.
func (s *MemoryStore) AddCartItem(ctx context.Context, userID, productID int64, quantity, maxQuantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := s.write(func(st *memState) error {
		if quantity > maxQuantity {
			return ErrQuantityLimit
		}
		existing, ok := st.findCartItem(userID, productID)
		if ok {
			if existing.Quantity > maxQuantity-quantity {
				return fmt.Errorf("cart item for product %d: %w", productID, ErrQuantityLimit)
			}
			existing.Quantity += quantity
			item = existing
		} else {
			item = models.CartItem{ID: st.id("cart_items"), UserID: userID, ProductID: productID, Quantity: quantity}
		}
		st.cartItems[item.ID] = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateCartItem overwrites the quantity of a cart line
func (s *MemoryStore) UpdateCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := s.write(func(st *memState) error {
		existing, ok := st.findCartItem(userID, productID)
		if !ok {
			return fmt.Errorf("cart item for product %d: %w", productID, ErrNotFound)
		}
		existing.Quantity = quantity
		st.cartItems[existing.ID] = existing
		item = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveCartItem deletes a cart line. Removing a missing line is not an error.
func (s *MemoryStore) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	return s.write(func(st *memState) error {
		if existing, ok := st.findCartItem(userID, productID); ok {
			delete(st.cartItems, existing.ID)
		}
		return nil
	})
}

// ClearCart deletes all cart lines of a user
func (s *MemoryStore) ClearCart(ctx context.Context, userID int64) error {
	return s.write(func(st *memState) error {
		st.clearCart(userID)
		return nil
	})
}

// CreateOTP stores a freshly issued code
func (s *MemoryStore) CreateOTP(ctx context.Context, otp *models.OtpCode) error {
	return s.write(func(st *memState) error {
		otp.ID = st.id("otp_codes")
		st.otps[otp.ID] = *otp
		return nil
	})
}

// GetOrders retrieves all orders, newest first
func (s *MemoryStore) GetOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	s.read(func(st *memState) {
		for _, o := range st.orders {
			orders = append(orders, o)
		}
	})
	sortOrdersNewestFirst(orders)
	return orders, nil
}

// GetOrderByID retrieves an order by ID
func (s *MemoryStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var (
		order models.Order
		ok    bool
	)
	s.read(func(st *memState) { order, ok = st.orders[id] })
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *MemoryStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	s.read(func(st *memState) {
		for _, o := range st.orders {
			if o.UserID == userID {
				orders = append(orders, o)
			}
		}
	})
	sortOrdersNewestFirst(orders)
	return orders, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *MemoryStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	s.read(func(st *memState) {
		for _, item := range st.orderItems {
			if item.OrderID == orderID {
				items = append(items, item)
			}
		}
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// UpdateOrderStatus updates order status
func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	return s.write(func(st *memState) error {
		order, ok := st.orders[orderID]
		if !ok {
			return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		order.Status = status
		st.orders[orderID] = order
		return nil
	})
}

// GetRevenueOverTime returns one point per UTC day in [from, to], zero-filled
func (s *MemoryStore) GetRevenueOverTime(ctx context.Context, from, to time.Time) ([]models.RevenuePoint, error) {
	byDay := map[string]decimal.Decimal{}
	s.read(func(st *memState) {
		for _, o := range st.orders {
			day := o.CreatedAt.UTC().Format("2006-01-02")
			byDay[day] = byDay[day].Add(o.TotalAmount)
		}
	})

	points := []models.RevenuePoint{}
	start := truncateDay(from)
	end := truncateDay(to)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		name := d.Format("2006-01-02")
		points = append(points, models.RevenuePoint{Name: name, Value: byDay[name]})
	}
	return points, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetOrderStatusBreakdown counts orders per status
func (s *MemoryStore) GetOrderStatusBreakdown(ctx context.Context) ([]models.StatusCount, error) {
	byStatus := map[string]int64{}
	s.read(func(st *memState) {
		for _, o := range st.orders {
			byStatus[o.Status]++
		}
	})

	counts := []models.StatusCount{}
	for status, n := range byStatus {
		counts = append(counts, models.StatusCount{Name: status, Value: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Name < counts[j].Name })
	return counts, nil
}

// GetAnalyticsSummary returns catalog and sales totals
func (s *MemoryStore) GetAnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error) {
	summary := &models.AnalyticsSummary{TotalRevenue: decimal.Zero}
	s.read(func(st *memState) {
		summary.TotalProducts = int64(len(st.products))
		summary.TotalOrders = int64(len(st.orders))
		for _, o := range st.orders {
			summary.TotalRevenue = summary.TotalRevenue.Add(o.TotalAmount)
		}
	})
	return summary, nil
}

// IsEventProcessed checks if an event has been processed
func (s *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var ok bool
	s.read(func(st *memState) { _, ok = st.events[eventID] })
	return ok, nil
}

// MarkEventProcessed marks an event as processed
func (s *MemoryStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	return s.write(func(st *memState) error {
		if _, ok := st.events[eventID]; !ok {
			st.events[eventID] = models.ProcessedEvent{EventID: eventID, EventType: eventType, ProcessedAt: time.Now().UTC()}
		}
		return nil
	})
}

// memTx operates on a private copy of the state
type memTx struct {
	state *memState
}

func (t *memTx) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return t.state.userCart(userID), nil
}

func (t *memTx) ClearCart(ctx context.Context, userID int64) error {
	t.state.clearCart(userID)
	return nil
}

func (t *memTx) GetProductsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error) {
	return t.state.productsByIDs(ids), nil
}

func (t *memTx) UpdateProductStock(ctx context.Context, productID int64, stock int, available bool) error {
	p, ok := t.state.products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	p.StockQuantity = stock
	p.IsAvailable = available
	t.state.products[productID] = p
	return nil
}

func (t *memTx) ConsumeOTP(ctx context.Context, userID int64, code, purpose string, now time.Time) (*models.OtpCode, error) {
	var match *models.OtpCode
	for _, otp := range t.state.otps {
		if otp.UserID != userID || otp.Purpose != purpose || otp.Code != code || otp.Used || !otp.ExpiresAt.After(now) {
			continue
		}
		if match == nil || otp.ID < match.ID {
			otp := otp
			match = &otp
		}
	}
	if match == nil {
		return nil, fmt.Errorf("otp for user %d: %w", userID, ErrNotFound)
	}

	verifiedAt := now
	match.Used = true
	match.VerifiedAt = &verifiedAt
	t.state.otps[match.ID] = *match
	return match, nil
}

func (t *memTx) ClaimVerifiedOTP(ctx context.Context, userID int64, purpose string, now time.Time) (*models.OtpCode, error) {
	var match *models.OtpCode
	for _, otp := range t.state.otps {
		if otp.UserID != userID || otp.Purpose != purpose || !otp.Used || otp.VerifiedAt == nil ||
			otp.OrderID != nil || !otp.ExpiresAt.After(now) {
			continue
		}
		if match == nil || otp.VerifiedAt.After(*match.VerifiedAt) ||
			(otp.VerifiedAt.Equal(*match.VerifiedAt) && otp.ID > match.ID) {
			otp := otp
			match = &otp
		}
	}
	if match == nil {
		return nil, fmt.Errorf("verified otp for user %d: %w", userID, ErrNotFound)
	}
	return match, nil
}

func (t *memTx) RedeemOTP(ctx context.Context, otpID, orderID int64) error {
	otp, ok := t.state.otps[otpID]
	if !ok || otp.OrderID != nil {
		return fmt.Errorf("otp %d: %w", otpID, ErrNotFound)
	}
	otp.OrderID = &orderID
	t.state.otps[otpID] = otp
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if _, ok := t.state.users[order.UserID]; !ok {
		return fmt.Errorf("user %d: %w", order.UserID, ErrNotFound)
	}
	order.ID = t.state.id("orders")
	t.state.orders[order.ID] = *order
	return nil
}

func (t *memTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if _, ok := t.state.orders[item.OrderID]; !ok {
		return fmt.Errorf("order %d: %w", item.OrderID, ErrNotFound)
	}
	item.ID = t.state.id("order_items")
	t.state.orderItems[item.ID] = *item
	return nil
}
