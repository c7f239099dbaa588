package pg

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roledash.org/internal/auth"
	"roledash.org/internal/messages"
)

var userCols = []string{"id", "name", "email", "password", "role", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	u := &auth.User{ID: "01J", Name: "A", Email: "a@gmail.com", Password: "hash", Role: auth.RoleUser, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery("insert into users").
		WithArgs(u.ID, u.Name, u.Email, u.Password, "user", now, now).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	assert.ErrorIs(t, store.Create(context.Background(), u), auth.ErrAlreadyExists)
}

func TestCreateReturnsTimestamps(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &auth.User{ID: "01J", Name: "A", Email: "a@gmail.com", Password: "hash", Role: auth.RoleAdmin}

	mock.ExpectQuery("insert into users").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	require.NoError(t, store.Create(context.Background(), u))
	assert.True(t, u.CreatedAt.Equal(created), "created_at not populated: %v", u.CreatedAt)
}

func TestFindByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from users where email = \\$1").
		WithArgs("a@gmail.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("01J", "A", "a@gmail.com", "plain", "editor", now, now))

	u, err := store.FindByEmail(context.Background(), "a@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEditor, u.Role)
	assert.Equal(t, "plain", u.Password)

	mock.ExpectQuery("select .* from users where email = \\$1").
		WithArgs("missing@gmail.com").
		WillReturnError(sql.ErrNoRows)
	_, err = store.FindByEmail(context.Background(), "missing@gmail.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUpdatePasswordMissingUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update users set password").
		WithArgs("01J", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.UpdatePassword(context.Background(), "01J", "hash"), auth.ErrNotFound)
}

func TestUpdateRoleReturnsUser(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("update users set role").
		WithArgs("01J", "admin").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("01J", "A", "a@gmail.com", "hash", "admin", now, now))

	u, err := store.UpdateRole(context.Background(), "01J", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, u.Role)

	mock.ExpectQuery("update users set role").
		WithArgs("nope", "admin").
		WillReturnRows(sqlmock.NewRows(userCols))
	_, err = store.UpdateRole(context.Background(), "nope", auth.RoleAdmin)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestListByRoleAndDeleteAll(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from users where role = \\$1").
		WithArgs("editor").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("01A", "E1", "e1@gmail.com", "h", "editor", now, now).
			AddRow("01B", "E2", "e2@gmail.com", "h", "editor", now, now))
	mock.ExpectExec("delete from users").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("delete from users").WillReturnResult(sqlmock.NewResult(0, 0))

	list, err := store.ListByRole(context.Background(), auth.RoleEditor)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := store.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestMessagesRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	m := &messages.Message{ID: "01M", SenderID: "01J", SenderName: "A", Email: "a@gmail.com", Body: "hi", CreatedAt: now}

	mock.ExpectExec("insert into messages").
		WithArgs(m.ID, m.SenderID, m.SenderName, m.Email, m.Body, m.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("select id, sender_id, sender_name, email, message, created_at\\s+from messages\\s+order by created_at desc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "sender_name", "email", "message", "created_at"}).
			AddRow(m.ID, m.SenderID, m.SenderName, m.Email, m.Body, m.CreatedAt))

	require.NoError(t, store.CreateMessage(context.Background(), m))
	list, err := store.ListMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hi", list[0].Body)
}
