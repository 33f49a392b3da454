package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekurt/finassist/internal/database"
)

type fakeStore struct {
	uploads map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]types.Object, error) {
	var objects []types.Object
	for key := range f.uploads {
		k := key
		size := int64(len(f.uploads[key]))
		objects = append(objects, types.Object{Key: &k, Size: &size})
	}
	return objects, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.uploads, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func setupBackupDB(t *testing.T) (*database.DB, string) {
	t.Helper()

	dataDir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "portfolio.db"),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`INSERT INTO lots (symbol, quantity, unit_cost, acquired_at) VALUES ('THYAO', '10', '15', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)

	return db, dataDir
}

func TestCreateAndUpload_ShipsArchiveWithSnapshotAndMetadata(t *testing.T) {
	db, dataDir := setupBackupDB(t)
	store := newFakeStore()
	svc := NewBackupService(db, store, dataDir, zerolog.Nop())

	require.NoError(t, svc.CreateAndUpload(context.Background()))
	require.Len(t, store.uploads, 1)

	var archive []byte
	for _, data := range store.uploads {
		archive = data
	}

	gz, err := gzip.NewReader(bytes.NewReader(archive))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
	}
	assert.ElementsMatch(t, []string{"portfolio.db", "backup-metadata.json"}, names)
}

func TestRotateOldBackups_KeepsNewest(t *testing.T) {
	db, dataDir := setupBackupDB(t)
	store := newFakeStore()
	svc := NewBackupService(db, store, dataDir, zerolog.Nop())

	stamps := []string{
		"2026-08-20-030000",
		"2026-08-21-030000",
		"2026-08-22-030000",
		"2026-08-23-030000",
		"2026-08-24-030000",
	}
	for _, stamp := range stamps {
		store.uploads[backupPrefix+stamp+".tar.gz"] = []byte("x")
	}

	require.NoError(t, svc.RotateOldBackups(context.Background(), 3))

	assert.Len(t, store.uploads, 3)
	assert.Contains(t, store.uploads, backupPrefix+"2026-08-24-030000.tar.gz")
	assert.Contains(t, store.uploads, backupPrefix+"2026-08-23-030000.tar.gz")
	assert.Contains(t, store.uploads, backupPrefix+"2026-08-22-030000.tar.gz")
}

func TestListBackups_IgnoresForeignObjects(t *testing.T) {
	db, dataDir := setupBackupDB(t)
	store := newFakeStore()
	store.uploads["unrelated.txt"] = []byte("x")
	store.uploads[backupPrefix+"2026-08-24-030000.tar.gz"] = []byte("x")

	svc := NewBackupService(db, store, dataDir, zerolog.Nop())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, backupPrefix+"2026-08-24-030000.tar.gz", backups[0].Filename)
}
