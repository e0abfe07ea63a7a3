package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
)

// stubTx satisfies pgx.Tx for the methods this test touches; the
// embedded interface covers the rest.
type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (s *stubTx) Commit(ctx context.Context) error   { s.committed = true; return nil }
func (s *stubTx) Rollback(ctx context.Context) error { s.rolledBack = true; return nil }

// TestPurpose: Validates that a nested RunInTx call joins the ambient
// transaction instead of opening a second one.
// Scope: Unit Test
// Expected: The callback runs with the ambient transaction as its
// querier, and the inner call neither commits nor rolls back a
// transaction it does not own. The nil pool makes any attempt to begin
// a second transaction fail the test immediately.
// Test Case ID: PG-01
func TestPostgres_RunInTx_JoinsAmbientTransaction(t *testing.T) {
	db := &DB{}
	tx := &stubTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	called := false
	err := db.RunInTx(ctx, func(ctx context.Context) error {
		called = true
		if got := db.q(ctx); got != querier(tx) {
			t.Errorf("q(ctx) = %v, want the ambient transaction", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() error = %v", err)
	}
	if !called {
		t.Fatal("callback was not invoked")
	}
	if tx.committed || tx.rolledBack {
		t.Errorf("inner call finished the ambient transaction: committed=%v rolledBack=%v",
			tx.committed, tx.rolledBack)
	}
}
