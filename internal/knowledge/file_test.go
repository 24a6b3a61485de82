package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

func emailField() schemas.ElementDescriptor {
	return schemas.ElementDescriptor{
		Tag: "input", Type: "email", Name: "email",
		Placeholder: "you@example.com", Selector: "input#email",
	}
}

func appliedResult(payload string) schemas.ExecutionResult {
	return schemas.ExecutionResult{Selector: "input#email", Payload: payload, Status: schemas.StatusApplied}
}

func TestFileStore_MissingFileIsEmptyStore(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "knowledge.json"), zap.NewNop())

	_, err := store.Find(context.Background(), schemas.FingerprintOf(emailField()))
	assert.ErrorIs(t, err, ErrNotFound)

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestFileStore_RecordResultCreatesEntry(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "knowledge.json"), zap.NewNop())
	field := emailField()
	tc := schemas.TestCase{Payload: "user@example.com", Description: "Valid", Expected: schemas.OutcomeValid}

	require.NoError(t, store.RecordResult(ctx, field, tc, appliedResult(tc.Payload)))

	entry, err := store.Find(ctx, schemas.FingerprintOf(field))
	require.NoError(t, err)
	assert.Equal(t, schemas.FieldMeta{Tag: "input", Name: "email", Placeholder: "you@example.com"}, entry.Meta)
	require.Len(t, entry.Cases, 1)
	assert.Equal(t, 1, entry.Stats.Total)
	assert.Equal(t, 1, entry.Stats.Success)
	assert.Equal(t, 0, entry.Stats.Fail)
	assert.False(t, entry.Updated.IsZero())
}

func TestFileStore_RecordResultIsAdditiveAndDedupsByPayload(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "knowledge.json"), zap.NewNop())
	field := emailField()
	tc := schemas.TestCase{Payload: "user@example.com", Expected: schemas.OutcomeValid}

	// Recording the same payload twice appends the case exactly once but
	// increments total twice.
	require.NoError(t, store.RecordResult(ctx, field, tc, appliedResult(tc.Payload)))
	require.NoError(t, store.RecordResult(ctx, field, tc, appliedResult(tc.Payload)))

	entry, err := store.Find(ctx, schemas.FingerprintOf(field))
	require.NoError(t, err)
	assert.Len(t, entry.Cases, 1)
	assert.Equal(t, 2, entry.Stats.Total)
	assert.Equal(t, 2, entry.Stats.Success)
}

func TestFileStore_NonAppliedStatusesCountAsFail(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "knowledge.json"), zap.NewNop())
	field := emailField()

	for _, status := range []schemas.ResultStatus{
		schemas.StatusFailedValidation,
		schemas.StatusNoValidation,
		schemas.StatusApplyFailed,
		schemas.StatusElementNotFound,
		schemas.StatusError,
	} {
		res := schemas.ExecutionResult{Selector: "input#email", Payload: string(status), Status: status}
		require.NoError(t, store.RecordResult(ctx, field, schemas.TestCase{Payload: string(status)}, res))
	}

	entry, err := store.Find(ctx, schemas.FingerprintOf(field))
	require.NoError(t, err)
	assert.Equal(t, 5, entry.Stats.Total)
	assert.Equal(t, 0, entry.Stats.Success)
	assert.Equal(t, 5, entry.Stats.Fail)
}

func TestFileStore_SaveCasesMergesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "knowledge.json"), zap.NewNop())
	field := emailField()

	first := []schemas.TestCase{
		{Payload: "", Description: "Empty", Expected: schemas.OutcomeInvalid},
		{Payload: "user@example.com", Description: "Valid", Expected: schemas.OutcomeValid},
	}
	second := []schemas.TestCase{
		{Payload: "user@example.com", Description: "Valid again", Expected: schemas.OutcomeValid},
		{Payload: "user+tag@example.com", Description: "Plus sign", Expected: schemas.OutcomeValid},
	}

	require.NoError(t, store.SaveCases(ctx, field, first))
	require.NoError(t, store.SaveCases(ctx, field, second))

	entry, err := store.Find(ctx, schemas.FingerprintOf(field))
	require.NoError(t, err)
	assert.Len(t, entry.Cases, 3)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "knowledge.json")
	field := emailField()

	first := NewFileStore(path, zap.NewNop())
	require.NoError(t, first.RecordResult(ctx, field,
		schemas.TestCase{Payload: "x"}, appliedResult("x")))

	reopened := NewFileStore(path, zap.NewNop())
	entry, err := reopened.Find(ctx, schemas.FingerprintOf(field))
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Stats.Total)
}

func TestFileStore_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path, zap.NewNop())
	_, err := store.Find(context.Background(), "input|||")
	assert.ErrorIs(t, err, ErrNotFound)

	// Writes still succeed and replace the corrupt file.
	require.NoError(t, store.RecordResult(context.Background(), emailField(),
		schemas.TestCase{Payload: "y"}, appliedResult("y")))
	_, err = store.Find(context.Background(), schemas.FingerprintOf(emailField()))
	assert.NoError(t, err)
}

func TestFileStore_Clear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "knowledge.json")
	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.RecordResult(ctx, emailField(),
		schemas.TestCase{Payload: "z"}, appliedResult("z")))

	require.NoError(t, store.Clear(ctx))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Clearing an already-absent store is not an error.
	assert.NoError(t, store.Clear(ctx))
}

func TestMemoryStore_MatchesFileSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(zap.NewNop())
	field := emailField()
	tc := schemas.TestCase{Payload: "user@example.com", Expected: schemas.OutcomeValid}

	require.NoError(t, store.RecordResult(ctx, field, tc, appliedResult(tc.Payload)))
	require.NoError(t, store.RecordResult(ctx, field, tc,
		schemas.ExecutionResult{Status: schemas.StatusApplyFailed, Payload: tc.Payload}))

	entry, err := store.Find(ctx, schemas.FingerprintOf(field))
	require.NoError(t, err)
	assert.Len(t, entry.Cases, 1)
	assert.Equal(t, 2, entry.Stats.Total)
	assert.Equal(t, 1, entry.Stats.Success)
	assert.Equal(t, 1, entry.Stats.Fail)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Find(ctx, schemas.FingerprintOf(field))
	assert.ErrorIs(t, err, ErrNotFound)
}
