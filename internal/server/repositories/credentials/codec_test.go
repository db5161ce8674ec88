package credentials

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []*models.CredentialRecord {
	created := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	return []*models.CredentialRecord{
		{
			ID:        1,
			UserName:  "alice",
			Salt:      []byte("0123456789abcdef"),
			Key:       []byte("derived-key-alice"),
			Cost:      kdf.CostParams{N: 16384, R: 8, P: 1},
			CreatedAt: created,
		},
		{
			ID:        2,
			UserName:  "Alice",
			Salt:      []byte("fedcba9876543210"),
			Key:       []byte("derived-key-Alice"),
			Cost:      kdf.CostParams{N: 16384, R: 8, P: 50},
			CreatedAt: created.Add(time.Minute),
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := sampleRecords()

	b, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncode_StoresHexNotRawSecrets(t *testing.T) {
	b, err := Encode(sampleRecords())
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, hex.EncodeToString([]byte("derived-key-alice")))
	assert.NotContains(t, s, "derived-key-alice")
	assert.Contains(t, s, `"version": 1`)
}

func TestDecode_Empty(t *testing.T) {
	out, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = Decode([]byte("  \n"))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecode_Corrupt(t *testing.T) {
	tests := map[string]string{
		"not json":           `{ nope`,
		"wrong version":      `{"version": 7, "users": []}`,
		"bad salt hex":       `{"version": 1, "users": [{"id": 1, "username": "a", "password_params": {"salt": "zz", "key": "00"}}]}`,
		"bad key hex":        `{"version": 1, "users": [{"id": 1, "username": "a", "password_params": {"salt": "00", "key": "zz"}}]}`,
		"duplicate username": `{"version": 1, "users": [{"id": 1, "username": "a"}, {"id": 2, "username": "a"}]}`,
		"duplicate id":       `{"version": 1, "users": [{"id": 1, "username": "a"}, {"id": 1, "username": "b"}]}`,
		"empty username":     `{"version": 1, "users": [{"id": 1, "username": ""}]}`,
		"legacy not array":   `[1, 2`,
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(in))
			assert.ErrorIs(t, err, common.ErrStoreCorrupt)
		})
	}
}

func TestDecode_LegacyUsersJSON(t *testing.T) {
	in := `[
  {
    "id": 1,
    "username": "alice",
    "passwordParams": {
      "salt": "8f1c2e3d4b5a69788f1c2e3d4b5a6978",
      "key": "abcd",
      "cost": 16384,
      "blockSize": 8,
      "parallelization": 50
    }
  }
]`

	out, err := Decode([]byte(in))
	require.NoError(t, err)
	require.Len(t, out, 1)

	r := out[0]
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "alice", r.UserName)
	assert.Equal(t, []byte("8f1c2e3d4b5a69788f1c2e3d4b5a6978"), r.Salt, "legacy salt text is used verbatim")
	assert.Equal(t, []byte{0xab, 0xcd}, r.Key)
	assert.Equal(t, kdf.CostParams{N: 16384, R: 8, P: 50}, r.Cost)
}

func TestDecode_DropsUnusableRecords(t *testing.T) {
	salt := hex.EncodeToString([]byte("0123456789abcdef"))
	in := `{"version": 1, "users": [
  {"id": 1, "username": "alice", "password_params": {"salt": "` + salt + `", "key": "aa", "cost": 16384, "block_size": 8, "parallelization": 1}},
  {"id": 2, "username": "bob", "password_params": {"salt": "` + salt + `", "key": "zz", "cost": 16384, "block_size": 8, "parallelization": 1}},
  {"id": 3, "username": "carol", "password_params": {"salt": "00ff", "key": "aa", "cost": 16384, "block_size": 8, "parallelization": 1}},
  {"id": 4, "username": "dave", "password_params": {"salt": "` + salt + `", "key": "aa", "cost": 1000, "block_size": 8, "parallelization": 1}},
  {"id": 5, "username": "alice", "password_params": {"salt": "` + salt + `", "key": "bb", "cost": 16384, "block_size": 8, "parallelization": 1}},
  {"id": 6, "username": "erin", "password_params": {"salt": "` + salt + `", "key": "cc", "cost": 16384, "block_size": 8, "parallelization": 1}}
]}`

	out, err := Decode([]byte(in))
	require.ErrorIs(t, err, common.ErrStoreCorrupt)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Dropped, 4)
	assert.Equal(t, []string{"bob", "carol", "dave", "alice"}, de.Names)
	assert.Equal(t, int64(6), de.MaxID)

	require.Len(t, out, 2)
	assert.Equal(t, "alice", out[0].UserName)
	assert.Equal(t, []byte{0xaa}, out[0].Key, "first alice wins")
	assert.Equal(t, "erin", out[1].UserName)
}
