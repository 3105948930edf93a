package keycrypt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey("123456", PinSaltPrefix+"aabbcc")
	k2 := DeriveKey("123456", PinSaltPrefix+"aabbcc")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)

	// same secret, different purpose tag must not reuse the key
	k3 := DeriveKey("123456", VaultSaltPrefix+"aabbcc")
	assert.NotEqual(t, k1, k3)
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKey("secret", PinSaltPrefix+"0011")
	testCases := []struct {
		name  string
		value any
	}{
		{
			name:  "string",
			value: "wage genre lyrics stereo sword soccer",
		},
		{
			name:  "slice",
			value: []string{"a", "b", "c"},
		},
		{
			name: "map",
			value: map[string]any{
				"name":   "Casa",
				"target": 100.0,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			blob, err := Seal(key, tc.value)
			require.NoError(t, err)

			var out any
			require.NoError(t, Open(key, blob, &out))

			want, err := json.Marshal(tc.value)
			require.NoError(t, err)
			got, err := json.Marshal(out)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

func TestOpenWrongKeyFails(t *testing.T) {
	key1 := DeriveKey("123456", PinSaltPrefix+"salt-a")
	key2 := DeriveKey("123457", PinSaltPrefix+"salt-a")

	blob, err := Seal(key1, "mnemonic words here")
	require.NoError(t, err)

	var out string
	err = Open(key2, blob, &out)
	assert.ErrorIs(t, err, ErrDecryption)
	assert.Empty(t, out)
}

func TestOpenTamperedEnvelopeFails(t *testing.T) {
	key := DeriveKey("123456", PinSaltPrefix+"salt-a")
	blob, err := Seal(key, "mnemonic words here")
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(blob), &env))

	// single bit flip in the ciphertext
	tampered := env
	tampered.D = append(byteArray{}, env.D...)
	tampered.D[0] ^= 0x01
	buf, err := json.Marshal(tampered)
	require.NoError(t, err)
	var out string
	assert.ErrorIs(t, Open(key, string(buf), &out), ErrDecryption)

	// single bit flip in the nonce
	tampered = env
	tampered.IV = append(byteArray{}, env.IV...)
	tampered.IV[0] ^= 0x01
	buf, err = json.Marshal(tampered)
	require.NoError(t, err)
	assert.ErrorIs(t, Open(key, string(buf), &out), ErrDecryption)
}

func TestOpenGarbageBlobFails(t *testing.T) {
	key := DeriveKey("123456", PinSaltPrefix+"salt-a")
	var out string
	assert.ErrorIs(t, Open(key, "not json at all", &out), ErrDecryption)
	assert.ErrorIs(t, Open(key, `{"iv":[1,2],"d":[3,4]}`, &out), ErrDecryption)
}

func TestEnvelopeWireShape(t *testing.T) {
	key := DeriveKey("123456", PinSaltPrefix+"salt-a")
	blob, err := Seal(key, "payload")
	require.NoError(t, err)

	// the envelope must serialize both fields as integer arrays,
	// not base64, so web-client blobs stay compatible
	var raw map[string][]int
	require.NoError(t, json.Unmarshal([]byte(blob), &raw))
	assert.Len(t, raw, 2)
	assert.Len(t, raw["iv"], 12)
	assert.NotEmpty(t, raw["d"])
}

func TestFreshNoncePerSeal(t *testing.T) {
	key := DeriveKey("123456", PinSaltPrefix+"salt-a")
	b1, err := Seal(key, "same value")
	require.NoError(t, err)
	b2, err := Seal(key, "same value")
	require.NoError(t, err)
	assert.NotEqual(t, b1, b2)
}

func TestRandomPinSalt(t *testing.T) {
	s1, err := RandomPinSalt()
	require.NoError(t, err)
	s2, err := RandomPinSalt()
	require.NoError(t, err)
	assert.Len(t, s1, 32)
	assert.NotEqual(t, s1, s2)
}
