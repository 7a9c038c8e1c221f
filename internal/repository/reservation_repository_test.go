package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-reservation/internal/model"
)

func newReservationMock(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReservationRepo(db), mock
}

func TestReservationRepoGetByID(t *testing.T) {
	repo, mock := newReservationMock(t)
	id, user, event := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(resCols).AddRow(id.String(), user.String(), event.String(), 3, "success", repoNow, repoNow))

	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, model.ReservationSuccess, got.Status)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(resCols))
	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrReservationNotFound)
}

func TestReservationRepoRejectsUnknownStatus(t *testing.T) {
	repo, mock := newReservationMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows(resCols).AddRow(uuid.NewString(), uuid.NewString(), uuid.NewString(), 1, "confirmed", repoNow, repoNow))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "unknown reservation status")
}

func TestReservationRepoListByUserEmpty(t *testing.T) {
	repo, mock := newReservationMock(t)
	user := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE user_id = ?")).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows(resCols))

	got, err := repo.ListByUser(context.Background(), user)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReservationRepoCreateAndUpdate(t *testing.T) {
	repo, mock := newReservationMock(t)
	res, err := model.NewReservation(uuid.New(), uuid.New(), 2, repoNow)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs(res.ID, res.UserID, res.EventID, 2, "pending", repoNow, repoNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), res))

	require.NoError(t, res.Cancel(repoNow))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET seats = ?, status = ?, updated_at = ? WHERE id = ?")).
		WithArgs(2, "canceled", repoNow, res.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepoDelete(t *testing.T) {
	repo, mock := newReservationMock(t)
	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reservations WHERE id = ?")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), id), model.ErrReservationNotFound)
}
