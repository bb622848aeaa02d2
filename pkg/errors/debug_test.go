package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPgxFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "55P03", Message: "could not obtain lock", TableName: "orders"}
	err := Wrap(CodeTimeout, fmt.Errorf("lock order: %w", pgErr), "transition order")

	d := Dump(err)
	if d.Code != CodeTimeout || !d.Retryable {
		t.Fatalf("unexpected code %s retryable %v", d.Code, d.Retryable)
	}
	if d.Postgres == nil || d.Postgres.Code != "55P03" || d.Postgres.Table != "orders" {
		t.Fatalf("pg fields missing: %+v", d.Postgres)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected chain of 3, got %d", len(d.Chain))
	}

	fields := d.LogFields()
	if fields["pg_code"] != "55P03" || fields["pg_table"] != "orders" {
		t.Fatalf("log fields missing pg data: %v", fields)
	}
	if _, ok := fields["pg_constraint"]; ok {
		t.Fatalf("empty constraint should be omitted")
	}
}

func TestDumpCapturesPqFields(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "ux_payments_transaction_ref"}

	d := Dump(err)
	if d.Postgres == nil || d.Postgres.Code != "23505" || d.Postgres.Constraint != "ux_payments_transaction_ref" {
		t.Fatalf("pq fields missing: %+v", d.Postgres)
	}
	if d.Code != "" {
		t.Fatalf("untyped error should not carry a code")
	}
	if _, ok := d.LogFields()["error_code"]; ok {
		t.Fatalf("untyped error should not log a code")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.Message != "" || d.Chain != nil || d.Postgres != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
