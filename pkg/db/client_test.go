package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/freshlane/pkg/config"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
	"github.com/angelmondragon/freshlane/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:dbclient_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := FromGorm(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_PreservesTypedErrors(t *testing.T) {
	client := FromGorm(newTestDB(t))
	client.SetLockTimeout(time.Second)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "short")
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock to pass through, got %v", err)
	}
}

func TestWithTx_DeadlineBecomesTimeout(t *testing.T) {
	client := FromGorm(newTestDB(t))
	client.SetLockTimeout(20 * time.Millisecond)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		<-tx.Statement.Context.Done()
		return tx.Statement.Context.Err()
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	lockErr := fmt.Errorf("update: %w", &pgconn.PgError{Code: "55P03"})
	if !pkgerrors.IsCode(Classify(ctx, lockErr), pkgerrors.CodeTimeout) {
		t.Fatalf("lock_not_available should map to timeout")
	}
	deadlock := &pgconn.PgError{Code: "40P01"}
	if !pkgerrors.IsCode(Classify(ctx, deadlock), pkgerrors.CodeTimeout) {
		t.Fatalf("deadlock should map to timeout")
	}
	plain := errors.New("syntax error")
	if got := Classify(ctx, plain); got != plain {
		t.Fatalf("unrelated errors should pass through, got %v", got)
	}
	if Classify(ctx, nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_transaction_ref"}
	if !IsUniqueViolation(pgErr, "ux_payments_transaction_ref") {
		t.Fatalf("expected pg unique violation match")
	}
	if IsUniqueViolation(pgErr, "ux_other") {
		t.Fatalf("constraint name should be honoured")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: payments.transaction_ref"), "") {
		t.Fatalf("expected sqlite unique violation match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil is not a violation")
	}
}

func TestPing(t *testing.T) {
	client := FromGorm(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := FromGorm(conn)

	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "doomed"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := conn.Model(&testModel{}).Where("name = ?", "doomed").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("panic should roll back, found %d rows", count)
	}
}

func TestDialectorFor(t *testing.T) {
	if _, err := dialectorFor(config.DBConfig{}); err == nil {
		t.Fatal("missing DSN should fail")
	}
	if _, err := dialectorFor(config.DBConfig{DSN: "x", Driver: "mysql"}); err == nil {
		t.Fatal("unknown driver should fail")
	}
	d, err := dialectorFor(config.DBConfig{DSN: "file::memory:", Driver: "SQLite"})
	if err != nil || d.Name() != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %v %v", d, err)
	}
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json"})
	ql := newQueryLogger(logg, time.Millisecond)

	ql.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), "SELECT 1") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 2", 0 }, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast not-found lookups should be quiet, got %s", buf.String())
	}
}
