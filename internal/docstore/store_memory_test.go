package docstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certflow/internal/docstore"
	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	"certflow/pkg/testutil"
)

func newFile(name string, data []byte) *docstore.File {
	return &docstore.File{
		ID:          domain.FileID(uuid.New()),
		Name:        name,
		ContentType: "application/pdf",
		Size:        int64(len(data)),
		UploadedBy:  domain.UserID(uuid.New()),
		Data:        data,
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewInMemoryStore()
	file := newFile("passport.pdf", []byte("pdf bytes"))
	require.NoError(t, store.Save(ctx, file))

	testutil.Then(t, "a saved file is readable by id", func(t *testing.T) {
		got, err := store.Get(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, file.Name, got.Name)
		assert.Equal(t, file.Data, got.Data)
	})

	testutil.Then(t, "reads never alias store-owned bytes", func(t *testing.T) {
		got, err := store.Get(ctx, file.ID)
		require.NoError(t, err)
		got.Data[0] = 'X'

		again, err := store.Get(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte("pdf bytes"), again.Data)
	})

	testutil.Then(t, "an unknown id is not found", func(t *testing.T) {
		_, err := store.Get(ctx, domain.FileID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryStoreListByIDs(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewInMemoryStore()
	first := newFile("contract.pdf", []byte("a"))
	second := newFile("protocol.pdf", []byte("b"))
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	testutil.When(t, "some requested ids are unknown", func(t *testing.T) {
		files, err := store.ListByIDs(ctx, []domain.FileID{
			second.ID,
			domain.FileID(uuid.New()),
			first.ID,
		})
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "protocol.pdf", files[0].Name)
		assert.Equal(t, "contract.pdf", files[1].Name)
	})
}

func TestInMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewInMemoryStore()
	file := newFile("draft.pdf", []byte("c"))
	require.NoError(t, store.Save(ctx, file))

	testutil.When(t, "the file exists", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, file.ID))
		_, err := store.Get(ctx, file.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	testutil.When(t, "the file is already gone", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, file.ID), sentinel.ErrNotFound)
	})
}
