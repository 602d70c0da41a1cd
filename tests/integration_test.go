package tests

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/adapter/notify"
	"github.com/rl1809/campus-market/internal/adapter/storage"
	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/core/service"
)

type testEnv struct {
	redis      *redis.Client
	mysql      *sql.DB
	carts      *storage.RedisAdapter
	db         *storage.MySQLAdapter
	dispatcher *notify.Dispatcher
	cart       *service.CartService
	checkout   *service.CheckoutService
	status     *service.StatusService
	queries    *service.QueryService
	cleanup    func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/market?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	setupSchema(t, db)

	logger := zap.NewNop()
	cache := storage.NewRedisAdapter(rdb)
	repo := storage.NewMySQLAdapter(db)
	dispatcher := notify.NewDispatcher(&notify.LogNotifier{Logger: logger}, logger, 64)
	dispatcher.Start(1)

	env := &testEnv{
		redis:      rdb,
		mysql:      db,
		carts:      cache,
		db:         repo,
		dispatcher: dispatcher,
		cart:       service.NewCartService(repo, cache, logger),
		checkout:   service.NewCheckoutService(repo, cache, cache, dispatcher, logger, 3, 5*24*time.Hour),
		status:     service.NewStatusService(repo, dispatcher, logger),
		queries:    service.NewQueryService(repo),
		cleanup: func() {
			dispatcher.Close()
			rdb.Close()
			db.Close()
		},
	}
	return env
}

func setupSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id             VARCHAR(64) PRIMARY KEY,
			seller_id      VARCHAR(64) NOT NULL,
			title          VARCHAR(255) NOT NULL,
			description    TEXT NOT NULL,
			category       VARCHAR(64) NOT NULL,
			item_condition VARCHAR(32) NOT NULL,
			price          DECIMAL(10,2) NOT NULL,
			image_url      VARCHAR(255) NOT NULL,
			status         VARCHAR(16) NOT NULL,
			rating         INT NOT NULL DEFAULT 0,
			created_at     DATETIME NOT NULL,
			updated_at     DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id                VARCHAR(64) PRIMARY KEY,
			buyer_id          VARCHAR(64) NOT NULL,
			total             DECIMAL(10,2) NOT NULL,
			recipient_name    VARCHAR(255) NOT NULL,
			address_line      VARCHAR(255) NOT NULL,
			city              VARCHAR(128) NOT NULL,
			postcode          VARCHAR(32) NOT NULL,
			phone             VARCHAR(32) NOT NULL,
			status            VARCHAR(32) NOT NULL,
			estimated_arrival DATETIME NULL,
			created_at        DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_lines (
			order_id          VARCHAR(64) NOT NULL,
			item_id           VARCHAR(64) NOT NULL,
			seller_id         VARCHAR(64) NOT NULL,
			quantity          INT NOT NULL,
			price_at_purchase DECIMAL(10,2) NOT NULL,
			title_snapshot    VARCHAR(255) NOT NULL,
			image_snapshot    VARCHAR(255) NOT NULL,
			PRIMARY KEY (order_id, item_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema setup failed: %v", err)
		}
	}
}

func seedItem(t *testing.T, db *sql.DB, itemID, sellerID, price, status string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO items (id, seller_id, title, description, category, item_condition,
		                   price, image_url, status, rating, created_at, updated_at)
		VALUES (?, ?, 'Mini Fridge', 'works fine', 'appliances', 'used', ?, '', ?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE seller_id = VALUES(seller_id), price = VALUES(price),
		                        status = VALUES(status)`,
		itemID, sellerID, price, status)
	if err != nil {
		t.Fatalf("seed item failed: %v", err)
	}
}

var testDelivery = domain.DeliveryDetails{
	RecipientName: "Alex Buyer",
	AddressLine:   "12 College Walk",
	City:          "Cambridge",
	Postcode:      "CB2 1TN",
	Phone:         "07700900123",
}

func TestIntegration_FullPurchaseFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	buyerID := "it-buyer-" + uuid.New().String()
	seedItem(t, env.mysql, "it-flow-item-1", "it-seller-1", "45.00", "available")
	seedItem(t, env.mysql, "it-flow-item-2", "it-seller-2", "15.00", "available")

	// Build the cart from live listings.
	if _, err := env.cart.AddItem(ctx, buyerID, "it-flow-item-1"); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := env.cart.AddItem(ctx, buyerID, "it-flow-item-2"); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	orderID, err := env.checkout.CheckoutCart(ctx, buyerID, uuid.New().String(), testDelivery)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// The order exists with both lines and the snapshot total.
	order, err := env.queries.Order(ctx, orderID)
	if err != nil {
		t.Fatalf("Order query failed: %v", err)
	}
	if order == nil || len(order.Lines) != 2 {
		t.Fatalf("expected order with 2 lines, got %+v", order)
	}
	if got := order.Total.StringFixed(2); got != "60.00" {
		t.Errorf("expected total 60.00, got %s", got)
	}
	if order.Status != domain.OrderStatusPendingPayment {
		t.Errorf("expected pending_payment, got %s", order.Status)
	}
	if order.EstimatedArrival == nil {
		t.Error("cart checkout must set an estimated arrival")
	}

	// Both items flipped to sold, and the cart is empty.
	for _, itemID := range []string{"it-flow-item-1", "it-flow-item-2"} {
		item, _ := env.db.GetItem(ctx, itemID)
		if item.Status != domain.ItemStatusSold {
			t.Errorf("item %s: expected sold, got %s", itemID, item.Status)
		}
	}
	lines, _ := env.carts.Lines(ctx, buyerID)
	if len(lines) != 0 {
		t.Errorf("cart must be cleared after checkout, got %d lines", len(lines))
	}

	// Pay, ship, complete.
	card := domain.PaymentCard{
		Number:      "4111111111111111",
		ExpiryMonth: 12,
		ExpiryYear:  time.Now().Year() + 2,
		CVV:         "123",
	}
	if err := env.status.SubmitPayment(ctx, orderID, buyerID, card); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if err := env.status.UpdateStatus(ctx, orderID, "it-seller-1", domain.OrderStatusShipped); err != nil {
		t.Fatalf("ship failed: %v", err)
	}
	if err := env.status.UpdateStatus(ctx, orderID, "it-seller-2", domain.OrderStatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Each seller sees their own sale with the buyer's contact.
	sales, err := env.queries.SellerSales(ctx, "it-seller-1")
	if err != nil {
		t.Fatalf("SellerSales failed: %v", err)
	}
	found := false
	for _, sale := range sales {
		if sale.OrderID == orderID {
			found = true
			if sale.Contact.RecipientName != testDelivery.RecipientName {
				t.Errorf("sale missing delivery contact: %+v", sale.Contact)
			}
		}
	}
	if !found {
		t.Error("seller-1 cannot see the sale")
	}
}

func TestIntegration_FailedCheckoutLeavesNoResidue(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	buyerID := "it-buyer-" + uuid.New().String()
	seedItem(t, env.mysql, "it-rb-item-1", "it-seller-1", "45.00", "available")
	seedItem(t, env.mysql, "it-rb-item-2", "it-seller-2", "15.00", "available")

	if _, err := env.cart.AddItem(ctx, buyerID, "it-rb-item-1"); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := env.cart.AddItem(ctx, buyerID, "it-rb-item-2"); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	// The second item sells elsewhere after it entered the cart.
	if _, err := env.mysql.ExecContext(ctx,
		`UPDATE items SET status = 'sold' WHERE id = 'it-rb-item-2'`); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	requestID := uuid.New().String()
	_, err := env.checkout.CheckoutCart(ctx, buyerID, requestID, testDelivery)
	if !errors.Is(err, domain.ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got: %v", err)
	}

	// The still-available item survives, the cart survives, and the same
	// request id can replay after the buyer edits the cart.
	item, _ := env.db.GetItem(ctx, "it-rb-item-1")
	if item.Status != domain.ItemStatusAvailable {
		t.Errorf("expected item-1 still available, got %s", item.Status)
	}
	lines, _ := env.carts.Lines(ctx, buyerID)
	if len(lines) != 2 {
		t.Errorf("failed checkout must preserve the cart, got %d lines", len(lines))
	}

	if err := env.cart.RemoveItem(ctx, buyerID, "it-rb-item-2"); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if _, err := env.checkout.CheckoutCart(ctx, buyerID, requestID, testDelivery); err != nil {
		t.Fatalf("replay with same request id failed: %v", err)
	}
}

func TestIntegration_ConcurrentBuyNowSingleSale(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	seedItem(t, env.mysql, "it-race-item", "it-seller-1", "45.00", "available")
	env.mysql.ExecContext(ctx, `DELETE FROM order_lines WHERE item_id = 'it-race-item'`)

	const buyers = 20
	var wg sync.WaitGroup
	var sold, unavailable atomic.Int32

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			buyerID := "it-race-buyer-" + uuid.New().String()
			_, err := env.checkout.BuyNow(ctx, buyerID, uuid.New().String(), "it-race-item", testDelivery)
			switch {
			case err == nil:
				sold.Add(1)
			case errors.Is(err, domain.ErrItemUnavailable):
				unavailable.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if sold.Load() != 1 {
		t.Errorf("expected exactly 1 sale, got %d", sold.Load())
	}
	if unavailable.Load() != buyers-1 {
		t.Errorf("expected %d unavailable failures, got %d", buyers-1, unavailable.Load())
	}

	item, _ := env.db.GetItem(ctx, "it-race-item")
	if item.Status != domain.ItemStatusSold {
		t.Errorf("expected sold, got %s", item.Status)
	}
	var count int
	env.mysql.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_lines WHERE item_id = 'it-race-item'`).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 order line, got %d", count)
	}
}

func TestIntegration_DuplicateCheckoutRequest(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	buyerID := "it-buyer-" + uuid.New().String()
	seedItem(t, env.mysql, "it-dup-item", "it-seller-1", "45.00", "available")

	if _, err := env.cart.AddItem(ctx, buyerID, "it-dup-item"); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	requestID := uuid.New().String()
	if _, err := env.checkout.CheckoutCart(ctx, buyerID, requestID, testDelivery); err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	_, err := env.checkout.CheckoutCart(ctx, buyerID, requestID, testDelivery)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}
}
