package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestSessionRepository(t *testing.T) {
	t.Run("Load Empty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		session, err := NewSessionRepository(db).Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session != nil {
			t.Errorf("expected nil session, got %+v", session)
		}
	})

	t.Run("Save And Load", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		in := &models.UserSession{Name: "Ada", Email: "ada@example.com", UID: "uid-1", Extra: map[string]any{"plan": "pro"}}
		if err := repo.Save(in); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		out, err := repo.Load()
		if err != nil {
			t.Fatalf("failed to load session: %v", err)
		}
		if out.UID != in.UID || out.Email != in.Email || out.Name != in.Name {
			t.Errorf("expected %+v, got %+v", in, out)
		}
		if out.Extra["plan"] != "pro" {
			t.Errorf("expected extra fields to round trip, got %v", out.Extra)
		}
		if out.Restored {
			t.Error("repository should not mark sessions restored")
		}
	})

	t.Run("Save Replaces", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		repo.Save(&models.UserSession{Name: "One", Email: "one@example.com", UID: "1"})
		repo.Save(&models.UserSession{Name: "Two", Email: "two@example.com", UID: "2"})

		var count int
		db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
		if count != 1 {
			t.Errorf("expected a single session row, got %d", count)
		}

		out, _ := repo.Load()
		if out.UID != "2" {
			t.Errorf("expected last writer to win, got %s", out.UID)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		repo.Save(&models.UserSession{Email: "a@b.co", UID: "1"})
		if err := repo.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if out, _ := repo.Load(); out != nil {
			t.Errorf("expected empty cache after clear, got %+v", out)
		}
		if err := repo.Clear(); err != nil {
			t.Errorf("clearing twice should not fail: %v", err)
		}
	})
}

func TestCredentialRepository(t *testing.T) {
	t.Run("Save And Latest", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		first := &models.Credential{UID: "u1", Email: "a@example.com", IDToken: "id-1", RefreshToken: "r-1", ExpiresAt: expires}
		if err := repo.Save(first); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}
		second := &models.Credential{UID: "u2", Email: "b@example.com", IDToken: "id-2", RefreshToken: "r-2", ExpiresAt: expires}
		if err := repo.Save(second); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		latest, err := repo.Latest()
		if err != nil {
			t.Fatalf("failed to load latest: %v", err)
		}
		if latest.UID != "u2" {
			t.Errorf("expected latest credential u2, got %s", latest.UID)
		}
		if !latest.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, latest.ExpiresAt)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		repo.Save(&models.Credential{UID: "u1", Email: "a@example.com", IDToken: "old", RefreshToken: "r"})
		repo.Save(&models.Credential{UID: "u1", Email: "a@example.com", IDToken: "new", RefreshToken: "r"})

		latest, _ := repo.Latest()
		if latest.IDToken != "new" {
			t.Errorf("expected updated token, got %s", latest.IDToken)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		repo.Save(&models.Credential{UID: "u1", Email: "a@example.com", RefreshToken: "r"})
		if err := repo.Delete("u1"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if latest, _ := repo.Latest(); latest != nil {
			t.Errorf("expected no credential, got %+v", latest)
		}
	})
}

func TestTransferRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		tr := models.NewTransfer("client_1", "a@example.com", "content.jpg", "style_1")
		if err := repo.Create(tr); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}
		if tr.ID() == "" {
			t.Fatal("transfer ID should be set after creation")
		}

		got, err := repo.Get(tr.ID())
		if err != nil {
			t.Fatalf("failed to get transfer: %v", err)
		}
		if got.ClientID() != "client_1" || got.Status() != models.TransferPending {
			t.Errorf("unexpected transfer %+v", got)
		}
		if got.CompletedAt() != nil {
			t.Error("pending transfer should have no completion time")
		}

		byClient, err := repo.GetByClientID("client_1")
		if err != nil {
			t.Fatalf("failed to get by client id: %v", err)
		}
		if byClient.ID() != tr.ID() {
			t.Errorf("expected %s, got %s", tr.ID(), byClient.ID())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		tr := models.NewTransfer("client_1", "a@example.com", "content.jpg", "style_1")
		repo.Create(tr)

		tr.Complete("/static/out.png")
		if err := repo.Update(tr); err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		got, _ := repo.Get(tr.ID())
		if got.Status() != models.TransferCompleted || got.ResultPath() != "/static/out.png" {
			t.Errorf("unexpected transfer after update %+v", got)
		}
		if got.CompletedAt() == nil {
			t.Error("expected completion time to persist")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		for i, email := range []string{"a@example.com", "a@example.com", "b@example.com"} {
			tr := models.NewTransfer(shared.NewClientID(), email, "c.jpg", "style_1")
			if i == 1 {
				tr.Complete("/x.png")
			}
			if err := repo.Create(tr); err != nil {
				t.Fatalf("failed to create: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 transfers, got %d", len(all))
		}

		mine, _ := repo.List(map[string]any{"email": "a@example.com"})
		if len(mine) != 2 {
			t.Errorf("expected 2 transfers for a@example.com, got %d", len(mine))
		}

		done, _ := repo.List(map[string]any{"status": models.TransferCompleted})
		if len(done) != 1 {
			t.Errorf("expected 1 completed transfer, got %d", len(done))
		}

		limited, _ := repo.List(map[string]any{"limit": 1})
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		tr := models.NewTransfer("client_1", "a@example.com", "c.jpg", "s")
		repo.Create(tr)

		if err := repo.Delete(tr.ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(tr.ID()); err == nil {
			t.Error("expected error getting deleted transfer")
		}
	})
}
