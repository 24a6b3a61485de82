package knowledge

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// flexibleSQL builds a whitespace-insensitive regex for mock matching.
func flexibleSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockedPGStore(t *testing.T) (*PGStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	mock.ExpectExec(flexibleSQL("CREATE TABLE IF NOT EXISTS field_knowledge")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store, err := NewPGStore(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func TestNewPGStore_PingFailurePropagates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pingErr := errors.New("database unavailable")
	mock.ExpectPing().WillReturnError(pingErr)

	_, err = NewPGStore(context.Background(), mock, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_FindReturnsNotFoundOnNoRows(t *testing.T) {
	store, mock := newMockedPGStore(t)

	mock.ExpectQuery(flexibleSQL("SELECT meta, cases, total, success, fail, updated")).
		WithArgs("input|email||").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Find(context.Background(), "input|email||")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_RecordResultInsertsNewEntry(t *testing.T) {
	store, mock := newMockedPGStore(t)
	field := emailField()
	fp := string(schemas.FingerprintOf(field))

	mock.ExpectQuery(flexibleSQL("SELECT meta, cases, total, success, fail, updated")).
		WithArgs(fp).
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectExec(flexibleSQL("INSERT INTO field_knowledge")).
		WithArgs(fp, pgxmock.AnyArg(), pgxmock.AnyArg(), 1, 1, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.RecordResult(context.Background(), field,
		schemas.TestCase{Payload: "user@example.com", Expected: schemas.OutcomeValid},
		schemas.ExecutionResult{Status: schemas.StatusApplied})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_RecordResultFoldsIntoExistingEntry(t *testing.T) {
	store, mock := newMockedPGStore(t)
	field := emailField()
	fp := string(schemas.FingerprintOf(field))

	existingMeta := []byte(`{"tag":"input","name":"email"}`)
	existingCases := []byte(`[{"payload":"user@example.com","description":"Valid","type":"valid"}]`)

	mock.ExpectQuery(flexibleSQL("SELECT meta, cases, total, success, fail, updated")).
		WithArgs(fp).
		WillReturnRows(pgxmock.NewRows([]string{"meta", "cases", "total", "success", "fail", "updated"}).
			AddRow(existingMeta, existingCases, 3, 2, 1, time.Now().UTC()))

	// Same payload: case list stays at one entry, total and fail advance.
	mock.ExpectExec(flexibleSQL("INSERT INTO field_knowledge")).
		WithArgs(fp, pgxmock.AnyArg(), pgxmock.AnyArg(), 4, 2, 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.RecordResult(context.Background(), field,
		schemas.TestCase{Payload: "user@example.com"},
		schemas.ExecutionResult{Status: schemas.StatusApplyFailed})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Clear(t *testing.T) {
	store, mock := newMockedPGStore(t)
	mock.ExpectExec(flexibleSQL("DELETE FROM field_knowledge")).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	require.NoError(t, store.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
