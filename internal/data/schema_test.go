package data_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/testutil"
)

func TestVerifySerializable(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		require.NoError(t, store.VerifySerializable(ctx))
	})
}

func TestBootstrapRefusesPartialSchema(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		_, err := store.DB.ExecContext(ctx, "DROP TABLE properties")
		require.NoError(t, err)

		err = store.Bootstrap(ctx)
		require.ErrorIs(t, err, data.ErrSchemaPartial)

		// Recreate from scratch so the shared database is usable again.
		require.NoError(t, store.DropAll(ctx))
		require.NoError(t, store.Bootstrap(ctx))
	})
}
