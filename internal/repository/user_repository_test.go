package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return db, mock
}

func TestGormUserRepository_FindByUsername(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "points", "solve_count", "created_at", "updated_at"}).
		AddRow(1, "alice", "alice@example.com", "hashed", "user", 300, 3, now, now)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WithArgs("alice", 1).
		WillReturnRows(rows)

	user, err := repo.FindByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(1), user.ID)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, uint(300), user.Points)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormUserRepository_FindByUsername_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE username = \\?").
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByUsername("ghost")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

// The leaderboard ordering lives in SQL, so pin the generated clause: points
// descending, ties broken by the earlier last solve, never-solved rows last.
func TestGormUserRepository_TopByPoints_Ordering(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "username", "points"}).
		AddRow(2, "top", 500).
		AddRow(1, "runner-up", 300)

	mock.ExpectQuery("SELECT \\* FROM `users`.*ORDER BY points DESC, last_solve_at IS NULL, last_solve_at ASC, id ASC.*LIMIT").
		WillReturnRows(rows)

	users, err := repo.TopByPoints(10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "top", users[0].Username)

	require.NoError(t, mock.ExpectationsWereMet())
}
