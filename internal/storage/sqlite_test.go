package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateUser(t *testing.T, s *Store, telegramID int64) User {
	t.Helper()
	u, err := s.GetOrCreateUser(telegramID, "tester", "Test")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	return u
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies the lookup indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_folders_identity", "idx_documents_user_name", "idx_sync_jobs_connection", "idx_file_operations_job"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

// TestGetOrCreateUser_Idempotent verifies that the same Telegram id always
// resolves to the same internal id, and profile fields are not overwritten.
func TestGetOrCreateUser_Idempotent(t *testing.T) {
	s := openTestStore(t)

	first, err := s.GetOrCreateUser(4242, "alice", "Alice")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected non-empty user id")
	}

	second, err := s.GetOrCreateUser(4242, "renamed", "Someone")
	if err != nil {
		t.Fatalf("GetOrCreateUser (second): %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id changed on second call: %q -> %q", first.ID, second.ID)
	}
	if second.Username != "alice" {
		t.Errorf("Username = %q, want original %q", second.Username, "alice")
	}

	got, err := s.GetUser(first.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.TelegramID != 4242 {
		t.Errorf("TelegramID = %d, want 4242", got.TelegramID)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetUser("does-not-exist")
	if err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListUsers(t *testing.T) {
	s := openTestStore(t)

	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("users in empty store = %d", len(users))
	}

	a := mustCreateUser(t, s, 101)
	b := mustCreateUser(t, s, 102)

	users, err = s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	seen := map[string]bool{users[0].ID: true, users[1].ID: true}
	if !seen[a.ID] || !seen[b.ID] {
		t.Errorf("users = %+v", users)
	}
}

// TestTasksRoundTrip creates tasks and verifies listing order and limit.
func TestTasksRoundTrip(t *testing.T) {
	s := openTestStore(t)
	u := mustCreateUser(t, s, 1)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		task := Task{
			ID:          fmt.Sprintf("task-%02d", i),
			UserID:      u.ID,
			Title:       fmt.Sprintf("Task %d", i),
			Description: "details",
			Priority:    "medium",
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.CreateTask(task); err != nil {
			t.Fatalf("CreateTask %d: %v", i, err)
		}
	}

	got, err := s.ListTasks(u.ID, 3)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d tasks, want 3", len(got))
	}
	// Newest first.
	if got[0].ID != "task-04" {
		t.Errorf("first task = %q, want %q", got[0].ID, "task-04")
	}
	if got[0].Priority != "medium" {
		t.Errorf("Priority = %q, want %q", got[0].Priority, "medium")
	}
}

// TestCalendarEventsWindow verifies the [from, to) range query and the
// open-ended end_time round-trip.
func TestCalendarEventsWindow(t *testing.T) {
	s := openTestStore(t)
	u := mustCreateUser(t, s, 2)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []CalendarEvent{
		{ID: "e-before", UserID: u.ID, Title: "yesterday", StartTime: day.Add(-2 * time.Hour), CreatedAt: day},
		{ID: "e-morning", UserID: u.ID, Title: "standup", Location: "office", StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour), CreatedAt: day},
		{ID: "e-evening", UserID: u.ID, Title: "dinner", StartTime: day.Add(19 * time.Hour), CreatedAt: day},
		{ID: "e-next", UserID: u.ID, Title: "tomorrow", StartTime: day.Add(25 * time.Hour), CreatedAt: day},
	}
	for _, e := range events {
		if err := s.CreateCalendarEvent(e); err != nil {
			t.Fatalf("CreateCalendarEvent %s: %v", e.ID, err)
		}
	}

	got, err := s.ListCalendarEvents(u.ID, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListCalendarEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].ID != "e-morning" || got[1].ID != "e-evening" {
		t.Errorf("order = [%q, %q], want [e-morning, e-evening]", got[0].ID, got[1].ID)
	}
	if got[0].EndTime.IsZero() {
		t.Error("e-morning EndTime should round-trip")
	}
	if !got[1].EndTime.IsZero() {
		t.Errorf("e-evening EndTime = %v, want zero (open-ended)", got[1].EndTime)
	}
}

// TestDueReminders verifies the due boundary, ordering, and that marking a
// reminder sent removes it from the due set.
func TestDueReminders(t *testing.T) {
	s := openTestStore(t)
	u := mustCreateUser(t, s, 3)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	reminders := []Reminder{
		{ID: "r-past", UserID: u.ID, Title: "overdue", RemindAt: now.Add(-time.Hour), CreatedAt: now},
		{ID: "r-exact", UserID: u.ID, Title: "right now", Message: "go", RemindAt: now, CreatedAt: now},
		{ID: "r-future", UserID: u.ID, Title: "later", RemindAt: now.Add(time.Hour), CreatedAt: now},
		{ID: "r-sent", UserID: u.ID, Title: "already sent", RemindAt: now.Add(-2 * time.Hour), Sent: true, CreatedAt: now},
	}
	for _, r := range reminders {
		if err := s.CreateReminder(r); err != nil {
			t.Fatalf("CreateReminder %s: %v", r.ID, err)
		}
	}

	due, err := s.ListDueReminders(now)
	if err != nil {
		t.Fatalf("ListDueReminders: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("got %d due reminders, want 2", len(due))
	}
	if due[0].ID != "r-past" || due[1].ID != "r-exact" {
		t.Errorf("order = [%q, %q], want [r-past, r-exact]", due[0].ID, due[1].ID)
	}
	if due[1].Message != "go" {
		t.Errorf("Message = %q, want %q", due[1].Message, "go")
	}

	if err := s.MarkReminderSent("r-past"); err != nil {
		t.Fatalf("MarkReminderSent: %v", err)
	}
	due, err = s.ListDueReminders(now)
	if err != nil {
		t.Fatalf("ListDueReminders (after mark): %v", err)
	}
	if len(due) != 1 || due[0].ID != "r-exact" {
		t.Errorf("after marking, due = %+v, want just r-exact", due)
	}
}

func TestMarkReminderSent_NotFound(t *testing.T) {
	s := openTestStore(t)

	if err := s.MarkReminderSent(uuid.New().String()); err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
