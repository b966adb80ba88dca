package session

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/x402x/swapctl/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "attempts.db"), filepath.Join(dir, "attempts.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveGetList(t *testing.T) {
	store := openTestStore(t)

	attempt := model.AttemptResult{
		AttemptID:  "att_0001",
		Mode:       "wrap",
		Network:    "mainnet",
		AmountIn:   "10",
		Phase:      "error",
		PhaseTrail: []string{"idle", "checkingNetwork", "approving", "error"},
		ErrorKind:  "user_rejected",
		ErrorText:  "Transaction cancelled by user",
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.Save(attempt); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get("att_0001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Mode != "wrap" || got.ErrorKind != "user_rejected" {
		t.Fatalf("unexpected attempt: %+v", got)
	}

	got.Phase = "success"
	got.ErrorKind = ""
	got.ErrorText = ""
	got.ExecuteTx = &model.TxRef{Hash: "0xexec"}
	got.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	if err := store.Save(got); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}

	succeeded, err := store.List("success", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(succeeded) != 1 {
		t.Fatalf("expected one succeeded attempt, got %d", len(succeeded))
	}
	if succeeded[0].ExecuteTx == nil || succeeded[0].ExecuteTx.Hash != "0xexec" {
		t.Fatalf("transaction reference lost: %+v", succeeded[0])
	}
}

func TestStoreGetMissingAttempt(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("att_missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestStoreRejectsEmptyID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(model.AttemptResult{}); err == nil {
		t.Fatal("expected error for missing attempt id")
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().UTC()
	for i, id := range []string{"att_a", "att_b", "att_c"} {
		attempt := model.AttemptResult{
			AttemptID:  id,
			Mode:       "swap",
			Network:    "base",
			Phase:      "success",
			StartedAt:  base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			FinishedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}
		if err := store.Save(attempt); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}
	all, err := store.List("", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(all))
	}
	if all[0].AttemptID != "att_c" {
		t.Fatalf("newest first expected att_c, got %s", all[0].AttemptID)
	}
}
