package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"VoxNote/db"
	"VoxNote/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(sqlite.Open(filepath.Join(t.TempDir(), "voxnote.db")))
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(conn))
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, NewGormUserRepository(conn).Create(context.Background(), u))
	return u
}

func TestUncategorizedFolderIsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	store := NewGormNoteStore(conn)
	user := createUser(t, conn, "a@example.com")

	first, err := store.GetOrCreateUncategorizedFolder(ctx, user.ID)
	require.NoError(t, err)
	second, err := store.GetOrCreateUncategorizedFolder(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.UncategorizedFolderName, first.Name)

	var count int64
	require.NoError(t, conn.Model(&model.Folder{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUncategorizedFolderMatchesAnyCasing(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, conn, "b@example.com")

	lower := &model.Folder{UserID: user.ID, Name: "uncategorized"}
	require.NoError(t, NewGormFolderRepository(conn).Create(ctx, lower))

	got, err := NewGormNoteStore(conn).GetOrCreateUncategorizedFolder(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, lower.ID, got.ID)
}

func TestUncategorizedFolderIsPerUser(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	store := NewGormNoteStore(conn)
	a := createUser(t, conn, "a@example.com")
	b := createUser(t, conn, "b@example.com")

	fa, err := store.GetOrCreateUncategorizedFolder(ctx, a.ID)
	require.NoError(t, err)
	fb, err := store.GetOrCreateUncategorizedFolder(ctx, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, fa.ID, fb.ID)
}

func TestNoteStoreTransactionRollsBack(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	store := NewGormNoteStore(conn)
	user := createUser(t, conn, "c@example.com")

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx NoteStore) error {
		folder, err := tx.GetOrCreateUncategorizedFolder(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, tx.CreateNote(ctx, &model.Note{UserID: user.ID, FolderID: folder.ID, Title: "t"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var notes, folders int64
	conn.Model(&model.Note{}).Count(&notes)
	conn.Model(&model.Folder{}).Count(&folders)
	assert.Zero(t, notes)
	assert.Zero(t, folders)
}

func TestFolderCreateRejectsCaseInsensitiveDuplicate(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewGormFolderRepository(conn)
	user := createUser(t, conn, "d@example.com")

	require.NoError(t, repo.Create(ctx, &model.Folder{UserID: user.ID, Name: "Work"}))
	err := repo.Create(ctx, &model.Folder{UserID: user.ID, Name: "  work "})
	assert.ErrorIs(t, err, ErrFolderExists)

	other := createUser(t, conn, "e@example.com")
	assert.NoError(t, repo.Create(ctx, &model.Folder{UserID: other.ID, Name: "work"}))
}

func TestFolderRenameAndDeleteCascades(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	folders := NewGormFolderRepository(conn)
	notes := NewGormNoteRepository(conn)
	user := createUser(t, conn, "f@example.com")

	work := &model.Folder{UserID: user.ID, Name: "Work"}
	home := &model.Folder{UserID: user.ID, Name: "Home"}
	require.NoError(t, folders.Create(ctx, work))
	require.NoError(t, folders.Create(ctx, home))

	assert.ErrorIs(t, folders.Rename(ctx, work, "HOME"), ErrFolderExists)
	require.NoError(t, folders.Rename(ctx, work, "Office"))
	got, err := folders.GetByName(ctx, user.ID, "office")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Office", got.Name)

	store := NewGormNoteStore(conn)
	require.NoError(t, store.CreateNote(ctx, &model.Note{UserID: user.ID, FolderID: work.ID, Title: "a"}))
	require.NoError(t, store.CreateNote(ctx, &model.Note{UserID: user.ID, FolderID: home.ID, Title: "b"}))

	require.NoError(t, folders.Delete(ctx, work.ID))
	gone, err := folders.GetByID(ctx, work.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	remaining, err := notes.ListByFolder(ctx, home.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	orphans, err := notes.ListByFolder(ctx, work.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestNotePaginationAndToggles(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	store := NewGormNoteStore(conn)
	repo := NewGormNoteRepository(conn)
	user := createUser(t, conn, "g@example.com")
	folder, err := store.GetOrCreateUncategorizedFolder(ctx, user.ID)
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 5; i++ {
		n := &model.Note{UserID: user.ID, FolderID: folder.ID, Title: "n"}
		require.NoError(t, store.CreateNote(ctx, n))
		ids = append(ids, n.ID)
	}

	page, err := repo.ListByUser(ctx, user.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, int64(3), page.Pages)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Items, 2)

	pinned, err := repo.TogglePin(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	first, err := repo.ListByUser(ctx, user.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, ids[0], first.Items[0].ID, "pinned notes come first")

	unpinned, err := repo.TogglePin(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)

	archived, err := repo.ToggleArchive(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
}

func TestNoteUpdateIsPartial(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	store := NewGormNoteStore(conn)
	repo := NewGormNoteRepository(conn)
	user := createUser(t, conn, "h@example.com")
	folder, err := store.GetOrCreateUncategorizedFolder(ctx, user.ID)
	require.NoError(t, err)

	n := &model.Note{UserID: user.ID, FolderID: folder.ID, Title: "old", Summary: "keep"}
	require.NoError(t, store.CreateNote(ctx, n))

	title, color := "new", "#ffcc00"
	got, err := repo.Update(ctx, n.ID, model.NoteUpdate{Title: &title, Color: &color})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "keep", got.Summary)
	require.NotNil(t, got.Color)
	assert.Equal(t, color, *got.Color)

	require.NoError(t, repo.Delete(ctx, n.ID))
	missing, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserEmailIsUniqueCaseInsensitive(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewGormUserRepository(conn)

	require.NoError(t, repo.Create(ctx, &model.User{Email: "Alice@Example.com", PasswordHash: "x"}))
	err := repo.Create(ctx, &model.User{Email: "alice@example.com", PasswordHash: "y"})
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@example.com", got.Email)
}
