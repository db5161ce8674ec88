package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.StoreFile = filepath.Join(t.TempDir(), "users.json")
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	return c
}

func TestNewApp_CorruptStoreStartsEmpty(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(c.StoreFile, []byte("{ broken"), 0o600))

	app, err := NewApp(context.Background(), c, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, app.store.Len())
}

func TestNewApp_LoadsLegacyFile(t *testing.T) {
	c := testConfig(t)
	legacy := `[{"id":1,"username":"alice","passwordParams":{"salt":"8f1c2e3d4b5a69788f1c2e3d4b5a6978","key":"abcd","cost":16384,"blockSize":8,"parallelization":1}}]`
	require.NoError(t, os.WriteFile(c.StoreFile, []byte(legacy), 0o600))

	app, err := NewApp(context.Background(), c, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, app.store.Len())
}

func TestNewApp_StorageError(t *testing.T) {
	c := testConfig(t)
	c.StorageBackend = "tape"

	_, err := NewApp(context.Background(), c, logging.NewNop())
	assert.ErrorContains(t, err, "storage init error")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	c := testConfig(t)

	app, err := NewApp(context.Background(), c, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}

	_, err = os.Stat(c.StoreFile)
	assert.True(t, os.IsNotExist(err), "nothing to persist, nothing written")
}

const aliceAndBrokenBob = `{"version": 1, "users": [
  {"id": 1, "username": "alice", "password_params": {"salt": "000102030405060708090a0b0c0d0e0f", "key": "aa", "cost": 16384, "block_size": 8, "parallelization": 1}},
  {"id": 2, "username": "bob", "password_params": {"salt": "000102030405060708090a0b0c0d0e0f", "key": "zz", "cost": 16384, "block_size": 8, "parallelization": 1}}
]}`

func TestApp_ShutdownKeepsPartlyCorruptStore(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(c.StoreFile, []byte(aliceAndBrokenBob), 0o600))

	app, err := NewApp(context.Background(), c, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, app.store.Len())

	require.NoError(t, app.shutdown())

	b, err := os.ReadFile(c.StoreFile)
	require.NoError(t, err)
	assert.Equal(t, aliceAndBrokenBob, string(b))
}

func TestApp_ShutdownWritesNewRecordsAndKeepsCorruptCopy(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(c.StoreFile, []byte(aliceAndBrokenBob), 0o600))
	ctx := context.Background()

	app, err := NewApp(ctx, c, logging.NewNop())
	require.NoError(t, err)

	carol := &models.CredentialRecord{
		UserName: "carol",
		Salt:     make([]byte, kdf.SaltLen),
		Key:      make([]byte, kdf.KeyLen),
		Cost:     kdf.DefaultTiers[kdf.TierFast],
	}
	stored, err := app.store.Insert(carol)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.ID, "bob's id is not reused")

	require.NoError(t, app.shutdown())

	b, err := os.ReadFile(c.StoreFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"alice"`)
	assert.Contains(t, string(b), `"carol"`)

	copies, err := filepath.Glob(c.StoreFile + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, copies, 1)
	b, err = os.ReadFile(copies[0])
	require.NoError(t, err)
	assert.Equal(t, aliceAndBrokenBob, string(b))
}

func TestNewApp_UnverifiableRecordIsSkipped(t *testing.T) {
	c := testConfig(t)
	legacy := `[{"id":1,"username":"alice","passwordParams":{"salt":"00ff","key":"abcd","cost":16384,"blockSize":8,"parallelization":1}}]`
	require.NoError(t, os.WriteFile(c.StoreFile, []byte(legacy), 0o600))
	ctx := context.Background()

	app, err := NewApp(ctx, c, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, app.store.Len())

	_, errKnown := app.userService.Login(ctx, "alice", "pw")
	_, errUnknown := app.userService.Login(ctx, "nobody", "pw")
	require.ErrorIs(t, errKnown, common.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errKnown.Error())

	_, err = app.userService.Register(ctx, "alice", "pw", kdf.TierFast)
	assert.ErrorIs(t, err, common.ErrUsernameTaken, "skipped account keeps its name")
}
