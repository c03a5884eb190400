package weather

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, BatchReport{Fetched: 5, Inserted: 1, Modified: 3}))
	assert.Equal(t, "fetched=5, upserted/modified=4\n", buf.String())

	buf.Reset()
	require.NoError(t, Report(&buf, BatchReport{}))
	assert.Equal(t, "fetched=0, upserted/modified=0\n", buf.String())
}

func TestBatchReport_Err(t *testing.T) {
	assert.NoError(t, BatchReport{Fetched: 2, Inserted: 2}.Err())

	r := BatchReport{Skipped: []error{
		&FieldError{City: "London", Index: 1, Field: "timestamp", Reason: "is missing"},
		&WriteError{ID: "London|2025-08-01T00:00:00Z", City: "London", Err: errors.New("boom")},
	}}
	err := r.Err()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.Equal(t, 1, r.SkippedBy(ErrField))
	assert.Equal(t, 1, r.SkippedBy(ErrWrite))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(&FieldError{}))
	assert.False(t, IsFatal(&WriteError{Err: errors.New("x")}))
	assert.True(t, IsFatal(&SchemaError{Field: "data"}))
	assert.True(t, IsFatal(&ConnectionError{Err: errors.New("x")}))
	assert.True(t, IsFatal(&HTTPStatusError{StatusCode: 502}))
}
