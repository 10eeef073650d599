package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keybridge-labs/keybridge/oauth"
	"github.com/keybridge-labs/keybridge/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checksumAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func (env *testEnv) linkWallet(t *testing.T, sessionID, walletToken string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth2/link-wallet", nil)
	req.Header.Set("Authorization", "Bearer "+sessionID)
	if walletToken != "" {
		req.Header.Set(WalletAuthHeader, "Bearer "+walletToken)
	}
	return env.do(req)
}

func TestLinkWallet(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	// the verifier vouches for a lowercase address; we store the checksum form
	env.verifier.tokens["proof-1"] = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

	rec := env.linkWallet(t, "not-a-session", "proof-1")
	requireErrorCode(t, rec, http.StatusUnauthorized, oauth.CodeUnauthorized)

	id := env.newSession(t, "google", "user-1")

	rec = env.linkWallet(t, id, "")
	requireErrorCode(t, rec, http.StatusBadRequest, oauth.CodeMissingWalletToken)

	rec = env.linkWallet(t, id, "bogus-proof")
	requireErrorCode(t, rec, http.StatusUnauthorized, oauth.CodeInvalidWalletToken)

	rec = env.linkWallet(t, id, "proof-1")
	require.Equal(http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		OK            bool   `json:"ok"`
		WalletAddress string `json:"wallet_address"`
		Token         string `json:"token"`
		LinkedAt      int64  `json:"linked_at"`
		Profile       struct {
			Provider string `json:"provider"`
			Sub      string `json:"sub"`
		} `json:"profile"`
	}
	decodeBody(t, rec, &body)
	assert.True(body.OK)
	assert.Equal(checksumAddr, body.WalletAddress)
	assert.Equal("proof-1", body.Token)
	assert.NotZero(body.LinkedAt)
	assert.Equal("google", body.Profile.Provider)
	assert.Equal("user-1", body.Profile.Sub)

	link, err := env.links.GetByIdentity(ctx, "google", "user-1")
	require.NoError(err)
	assert.Equal(checksumAddr, link.WalletAddress)

	// the wallet now shows up on /oauth2/me
	req := httptest.NewRequest(http.MethodGet, "/oauth2/me", nil)
	req.Header.Set("Authorization", "Bearer "+id)
	rec = env.do(req)
	require.Equal(http.StatusOK, rec.Code)
	var me meResponse
	decodeBody(t, rec, &me)
	require.NotNil(me.WalletAddress)
	assert.Equal(checksumAddr, *me.WalletAddress)
	require.NotNil(me.LinkedAt)
}

func TestLinkWalletEviction(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	env.verifier.tokens["proof-1"] = checksumAddr
	env.verifier.tokens["proof-2"] = checksumAddr

	firstID := env.newSession(t, "google", "user-1")
	secondID := env.newSession(t, "apple", "user-2")

	rec := env.linkWallet(t, firstID, "proof-1")
	require.Equal(http.StatusOK, rec.Code)

	// a second identity claiming the same wallet evicts the first link
	rec = env.linkWallet(t, secondID, "proof-2")
	require.Equal(http.StatusOK, rec.Code)

	_, err := env.links.GetByIdentity(ctx, "google", "user-1")
	assert.ErrorIs(err, wallet.ErrLinkNotFound)
	link, err := env.links.GetByIdentity(ctx, "apple", "user-2")
	require.NoError(err)
	assert.Equal(checksumAddr, link.WalletAddress)
}

func TestUnlinkWalletBySession(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	env := newTestEnv(t)

	env.verifier.tokens["proof-1"] = checksumAddr
	id := env.newSession(t, "google", "user-1")
	require.Equal(http.StatusOK, env.linkWallet(t, id, "proof-1").Code)

	req := httptest.NewRequest(http.MethodPost, "/oauth2/unlink-wallet-by-session", nil)
	req.Header.Set("Authorization", "Bearer "+id)
	rec := env.do(req)
	require.Equal(http.StatusOK, rec.Code)

	var body struct {
		OK      bool  `json:"ok"`
		Deleted int64 `json:"deleted"`
	}
	decodeBody(t, rec, &body)
	assert.True(body.OK)
	assert.EqualValues(1, body.Deleted)

	// already gone: still ok, zero deletions
	rec = env.do(req)
	require.Equal(http.StatusOK, rec.Code)
	decodeBody(t, rec, &body)
	assert.True(body.OK)
	assert.Zero(body.Deleted)
}

func TestUnlinkWalletByToken(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	env := newTestEnv(t)

	env.verifier.tokens["proof-1"] = checksumAddr
	id := env.newSession(t, "google", "user-1")
	require.Equal(http.StatusOK, env.linkWallet(t, id, "proof-1").Code)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/oauth2/unlink-wallet-by-token", nil))
	requireErrorCode(t, rec, http.StatusBadRequest, oauth.CodeMissingWalletToken)

	// the proof token can ride the Authorization header when x-wallet-auth
	// is absent
	req := httptest.NewRequest(http.MethodPost, "/oauth2/unlink-wallet-by-token", nil)
	req.Header.Set("Authorization", "Bearer proof-1")
	rec = env.do(req)
	require.Equal(http.StatusOK, rec.Code)

	var body struct {
		OK      bool  `json:"ok"`
		Deleted int64 `json:"deleted"`
	}
	decodeBody(t, rec, &body)
	assert.True(body.OK)
	assert.EqualValues(1, body.Deleted)

	_, err := env.links.GetByIdentity(context.Background(), "google", "user-1")
	assert.ErrorIs(err, wallet.ErrLinkNotFound)
}

func TestMeByToken(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	env := newTestEnv(t)

	env.verifier.tokens["proof-1"] = checksumAddr

	rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth2/me-by-token/google", nil))
	requireErrorCode(t, rec, http.StatusUnauthorized, oauth.CodeUnauthorized)

	// verified wallet with nothing linked
	req := httptest.NewRequest(http.MethodGet, "/oauth2/me-by-token/google", nil)
	req.Header.Set("Authorization", "Bearer proof-1")
	rec = env.do(req)
	require.Equal(http.StatusNotFound, rec.Code)

	var notFound struct {
		OK            bool   `json:"ok"`
		Error         string `json:"error"`
		WalletAddress string `json:"wallet_address"`
	}
	decodeBody(t, rec, &notFound)
	assert.False(notFound.OK)
	assert.Equal(oauth.CodeNoAccountLinked, notFound.Error)
	assert.Equal(checksumAddr, notFound.WalletAddress)

	id := env.newSession(t, "google", "user-1")
	require.Equal(http.StatusOK, env.linkWallet(t, id, "proof-1").Code)

	rec = env.do(req)
	require.Equal(http.StatusOK, rec.Code)
	var body struct {
		OK            bool   `json:"ok"`
		Sub           string `json:"sub"`
		WalletAddress string `json:"wallet_address"`
		Email         string `json:"email"`
	}
	decodeBody(t, rec, &body)
	assert.True(body.OK)
	assert.Equal("user-1", body.Sub)
	assert.Equal(checksumAddr, body.WalletAddress)
	assert.Equal("user-1@example.com", body.Email)

	// identity lookup is provider-scoped
	req = httptest.NewRequest(http.MethodGet, "/oauth2/me-by-token/apple", nil)
	req.Header.Set("Authorization", "Bearer proof-1")
	rec = env.do(req)
	require.Equal(http.StatusNotFound, rec.Code)
}
