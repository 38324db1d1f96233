package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyBatches_EmptyRows(t *testing.T) {
	n, err := CopyBatches(context.TODO(), nil, pgx.Identifier{"layer_points"}, []string{"seq"}, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyBatches_SplitsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ident := pgx.Identifier{"layer_points"}
	mock.ExpectCopyFrom(ident, []string{"seq"}).WillReturnResult(2)
	mock.ExpectCopyFrom(ident, []string{"seq"}).WillReturnResult(2)
	mock.ExpectCopyFrom(ident, []string{"seq"}).WillReturnResult(1)

	rows := [][]any{{0}, {1}, {2}, {3}, {4}}
	n, err := CopyBatches(context.Background(), mock, ident, []string{"seq"}, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyBatches_PartialFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ident := pgx.Identifier{"layer_points"}
	mock.ExpectCopyFrom(ident, []string{"seq"}).WillReturnResult(2)
	mock.ExpectCopyFrom(ident, []string{"seq"}).WillReturnError(fmt.Errorf("disk full"))

	n, err := CopyBatches(context.Background(), mock, ident, []string{"seq"}, [][]any{{0}, {1}, {2}}, 2)
	require.Error(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, err.Error(), "batch 2-3")
}
