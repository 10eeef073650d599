package oauth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	assert := assert.New(t)

	st := State{
		CSRF:     RandomToken(32),
		TxnID:    RandomToken(32),
		Provider: "google",
		IssuedAt: 1700000000,
	}
	decoded, err := DecodeState(st.Encode())
	assert.NoError(err)
	assert.Equal(st, decoded)
}

func TestStateWireFormat(t *testing.T) {
	assert := assert.New(t)

	// the short JSON keys are the wire contract
	encoded := State{CSRF: "c", TxnID: "t", Provider: "p", IssuedAt: 7}.Encode()
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	assert.NoError(err)
	assert.JSONEq(`{"s":"c","t":"t","p":"p","ts":7}`, string(raw))
}

func TestDecodeStateRejectsCorruptInput(t *testing.T) {
	require := require.New(t)

	good := State{CSRF: "c", TxnID: "t", Provider: "p", IssuedAt: 7}.Encode()

	cases := []string{
		"",
		"not base64url!!",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`["array"]`)),
		good[:len(good)-3],
	}
	for _, raw := range cases {
		st, err := DecodeState(raw)
		require.Error(err, "input %q", raw)
		// never a partial object
		require.Equal(State{}, st)
	}
}
