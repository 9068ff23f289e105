package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Small costs keep the test fast while exercising the real KDF.
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := h.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	h := NewHasher(testParams)

	first, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	second, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestShortPasswordRejected(t *testing.T) {
	h := NewHasher(testParams)

	_, err := h.Hash("short")
	assert.Error(t, err)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(testParams)

	cases := []struct {
		name    string
		encoded string
		want    error
	}{
		{"empty", "", ErrInvalidHash},
		{"not phc", "plainhash", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA", ErrIncompatible},
		{"bad params", "$argon2id$v=19$m=0,t=0,p=0$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt encoding", "$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA", ErrInvalidHash},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Verify("whatever-password", tc.encoded)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestZeroParamsFallBackToDefaults(t *testing.T) {
	h := NewHasher(Params{})
	assert.Equal(t, DefaultParams, h.params)
}
