package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type noteRow struct {
	ID   int
	Note string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&noteRow{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&noteRow{Note: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&noteRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&noteRow{Note: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&noteRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&noteRow{Note: "lost"}).Error; err != nil {
				return err
			}
			panic("handler bug")
		})
	}()

	var count int64
	if err := db.Model(&noteRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_sellers_slug"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "idx_sellers_slug") {
		t.Fatal("expected pgconn unique violation to match")
	}
	if IsUniqueViolation(pgErr, "idx_sellers_user_id") {
		t.Fatal("expected mismatched constraint to be rejected")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505"}, "") {
		t.Fatal("expected pq unique violation to match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: sellers.slug"), "sellers.slug") {
		t.Fatal("expected sqlite unique message to match")
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatal("unexpected match for unrelated error")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "fk_orders_listing"}
	if !IsForeignKeyViolation(fmt.Errorf("delete listing: %w", pgErr), "fk_orders_listing") {
		t.Fatal("expected pgx foreign key violation to match")
	}
	if IsForeignKeyViolation(pgErr, "fk_listings_seller") {
		t.Fatal("constraint name mismatch should not match")
	}
	if !IsForeignKeyViolation(&pq.Error{Code: "23503"}, "") {
		t.Fatal("expected pq foreign key violation to match")
	}
	if IsForeignKeyViolation(&pq.Error{Code: "23505"}, "") {
		t.Fatal("unique violation is not a foreign key violation")
	}
	if !IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed"), "fk_orders_listing") {
		t.Fatal("expected sqlite message to match")
	}
	if IsForeignKeyViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
}
