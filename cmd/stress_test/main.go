package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
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

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/market?parseTime=true"
	redisAddr     = "localhost:6379"
	itemID        = "stress-test-item"
	sellerID      = "stress-test-seller"
	totalRequests = 50
)

// Hammers BuyNow on one listing with concurrent buyers; exactly one must win.
func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Reset previous runs
	db.ExecContext(ctx, `DELETE FROM order_lines WHERE item_id = ?`, itemID)
	db.ExecContext(ctx, `DELETE FROM orders WHERE id NOT IN (SELECT DISTINCT order_id FROM order_lines)`)
	_, err = db.ExecContext(ctx, `
		INSERT INTO items (id, seller_id, title, description, category, item_condition,
		                   price, image_url, status, rating, created_at, updated_at)
		VALUES (?, ?, 'Stress Test Bike', 'one careful owner', 'sports', 'used',
		        120.00, '', 'available', 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE status = 'available'`, itemID, sellerID)
	if err != nil {
		log.Fatalf("failed to seed item: %v", err)
	}

	logger := zap.NewNop()
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	dispatcher := notify.NewDispatcher(&notify.LogNotifier{Logger: logger}, logger, 128)
	dispatcher.Start(1)
	defer dispatcher.Close()

	checkout := service.NewCheckoutService(
		mysqlAdapter, redisAdapter, redisAdapter, dispatcher, logger, 3, 0)

	delivery := domain.DeliveryDetails{
		RecipientName: "Stress Tester",
		AddressLine:   "1 Campus Way",
		City:          "Testville",
		Postcode:      "0000",
	}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(buyer int) {
			defer wg.Done()

			_, err := checkout.BuyNow(ctx,
				fmt.Sprintf("buyer-%d", buyer), uuid.New().String(), itemID, delivery)
			switch {
			case err == nil:
				successCount.Add(1)
			case isSoldOut(err):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("buyer %d: unexpected error: %v", buyer, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()
	other := otherCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", other)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == 1 && soldOut == int32(totalRequests-1) {
		fmt.Println("PASS: exactly one buyer won the item")
	} else {
		fmt.Printf("FAIL: expected 1 success/%d sold out, got %d/%d\n",
			totalRequests-1, success, soldOut)
	}

	var status string
	db.QueryRowContext(ctx, `SELECT status FROM items WHERE id = ?`, itemID).Scan(&status)
	fmt.Printf("Final Item Status: %s\n", status)

	var orderCount int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_lines WHERE item_id = ?`, itemID).Scan(&orderCount)
	if status == string(domain.ItemStatusSold) && orderCount == 1 {
		fmt.Println("PASS: item sold exactly once")
	} else {
		fmt.Printf("FAIL: expected sold/1 line, got %s/%d\n", status, orderCount)
	}
}

func isSoldOut(err error) bool {
	return errors.Is(err, domain.ErrItemUnavailable)
}
