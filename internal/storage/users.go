package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateUser looks a user up by their stable Telegram id and creates a
// minimal record from the supplied profile fields when absent. The id is
// never reassigned once created.
func (s *Store) GetOrCreateUser(telegramID int64, username, firstName string) (User, error) {
	u, err := s.getUserByTelegramID(telegramID)
	if err == nil {
		return u, nil
	}
	if err != ErrNotFound {
		return User{}, err
	}

	u = User{
		ID:         uuid.New().String(),
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = s.db.Exec(`
		INSERT INTO users (id, telegram_id, username, first_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.TelegramID, u.Username, u.FirstName, formatTime(u.CreatedAt),
	)
	if err != nil {
		// A concurrent request may have created the row between lookup and insert.
		if existing, lookupErr := s.getUserByTelegramID(telegramID); lookupErr == nil {
			return existing, nil
		}
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

func (s *Store) getUserByTelegramID(telegramID int64) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, telegram_id, username, first_name, created_at
		FROM users WHERE telegram_id = ?`, telegramID,
	).Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUser returns a user by internal id.
func (s *Store) GetUser(id string) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, telegram_id, username, first_name, created_at
		FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// ListUsers returns every user, oldest first.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, telegram_id, username, first_name, created_at
		FROM users ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []User
	for rows.Next() {
		var u User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &createdAt); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// --- Tasks ---

func (s *Store) CreateTask(t Task) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, user_id, title, description, priority, done, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, t.Priority, t.Done, formatTime(t.CreatedAt),
	)
	return err
}

func (s *Store) ListTasks(userID string, limit int) ([]Task, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, description, priority, done, created_at
		FROM tasks WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Task
	for rows.Next() {
		var t Task
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &t.Done, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Calendar events ---

func (s *Store) CreateCalendarEvent(e CalendarEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO calendar_events (id, user_id, title, location, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Location, formatTime(e.StartTime), formatNullTime(e.EndTime), formatTime(e.CreatedAt),
	)
	return err
}

func (s *Store) ListCalendarEvents(userID string, from, to time.Time) ([]CalendarEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, location, start_time, end_time, created_at
		FROM calendar_events
		WHERE user_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC`,
		userID, formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CalendarEvent
	for rows.Next() {
		var e CalendarEvent
		var startTime, createdAt string
		var endTime sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Location, &startTime, &endTime, &createdAt); err != nil {
			return nil, err
		}
		if e.StartTime, err = parseTime(startTime); err != nil {
			return nil, err
		}
		if e.EndTime, err = parseTime(endTime.String); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// --- Reminders ---

func (s *Store) CreateReminder(r Reminder) error {
	_, err := s.db.Exec(`
		INSERT INTO reminders (id, user_id, title, message, remind_at, sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Title, r.Message, formatTime(r.RemindAt), r.Sent, formatTime(r.CreatedAt),
	)
	return err
}

// ListDueReminders returns unsent reminders whose remind_at is at or before now.
func (s *Store) ListDueReminders(now time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, message, remind_at, sent, created_at
		FROM reminders WHERE sent = 0 AND remind_at <= ?
		ORDER BY remind_at ASC`, formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Reminder
	for rows.Next() {
		var r Reminder
		var remindAt, createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Message, &remindAt, &r.Sent, &createdAt); err != nil {
			return nil, err
		}
		if r.RemindAt, err = parseTime(remindAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) MarkReminderSent(id string) error {
	res, err := s.db.Exec(`UPDATE reminders SET sent = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
