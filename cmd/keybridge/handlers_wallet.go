package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/keybridge-labs/keybridge/oauth"
	"github.com/keybridge-labs/keybridge/wallet"

	"github.com/labstack/echo/v4"
)

// WalletAuthHeader carries the wallet-proof bearer token, kept separate from
// the Authorization header because both use the bearer scheme.
const WalletAuthHeader = "x-wallet-auth"

// verifyWalletToken delegates proof-of-control to the external wallet-auth
// system and normalizes the address it vouches for.
func (srv *Server) verifyWalletToken(c echo.Context, token string) (string, error) {
	address, err := srv.walletVerifier.Verify(c.Request().Context(), token)
	if errors.Is(err, wallet.ErrInvalidToken) {
		return "", oauth.Unauthorized(oauth.CodeInvalidWalletToken, "")
	} else if err != nil {
		return "", oauth.Upstream(oauth.CodeWalletVerifierDown, err.Error())
	}
	normalized, err := wallet.NormalizeAddress(address)
	if err != nil {
		return "", oauth.Validation(oauth.CodeInvalidWalletAddr, "")
	}
	return normalized, nil
}

// POST /oauth2/link-wallet
//
// Binds a verified wallet address to the current OAuth identity. A wallet
// already linked elsewhere is evicted first: last writer wins.
func (srv *Server) HandleLinkWallet(c echo.Context) error {
	ctx := c.Request().Context()
	id, rec, err := srv.authnSession(c)
	if err != nil {
		return err
	}
	if rec.User == nil || rec.User.Sub == "" {
		return oauth.Unauthorized(oauth.CodeNotLoggedIn, "")
	}

	walletToken := bearerToken(c.Request().Header.Get(WalletAuthHeader))
	if walletToken == "" {
		return oauth.Validation(oauth.CodeMissingWalletToken, "")
	}
	address, err := srv.verifyWalletToken(c, walletToken)
	if err != nil {
		return err
	}

	// evict any existing mapping for this address, whoever owns it
	if _, err := srv.links.DeleteByAddress(ctx, address); err != nil {
		return err
	}

	now := time.Now().Unix()
	link := wallet.Link{
		Provider:      rec.Provider,
		Sub:           rec.User.Sub,
		WalletAddress: address,
		ProofToken:    walletToken,
		LinkedAt:      now,
		Email:         rec.User.Email,
		Name:          rec.User.Name,
		Picture:       rec.User.Picture,
	}
	if err := srv.links.Upsert(ctx, &link); err != nil {
		return err
	}

	if err := srv.sessions.Put(ctx, id, rec); err != nil {
		return err
	}

	walletsLinked.Inc()
	return c.JSON(http.StatusOK, map[string]any{
		"ok":             true,
		"wallet_address": address,
		"token":          walletToken,
		"linked_at":      now,
		"profile": map[string]any{
			"provider": rec.Provider,
			"sub":      rec.User.Sub,
			"email":    rec.User.Email,
			"name":     rec.User.Name,
			"picture":  rec.User.Picture,
		},
	})
}

// POST /oauth2/unlink-wallet-by-session
func (srv *Server) HandleUnlinkWalletBySession(c echo.Context) error {
	ctx := c.Request().Context()
	id, rec, err := srv.authnSession(c)
	if err != nil {
		return err
	}
	if rec.User == nil || rec.User.Sub == "" {
		return oauth.Unauthorized(oauth.CodeNotLoggedIn, "")
	}

	deleted, err := srv.links.DeleteByIdentity(ctx, rec.Provider, rec.User.Sub)
	if err != nil {
		return err
	}

	if err := srv.sessions.Put(ctx, id, rec); err != nil {
		return err
	}

	walletsUnlinked.Inc()
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}

// POST /oauth2/unlink-wallet-by-token
//
// Severs a link by wallet-proof token alone; no session involved.
func (srv *Server) HandleUnlinkWalletByToken(c echo.Context) error {
	ctx := c.Request().Context()

	walletToken := bearerToken(c.Request().Header.Get(WalletAuthHeader))
	if walletToken == "" {
		walletToken = bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	}
	if walletToken == "" {
		return oauth.Validation(oauth.CodeMissingWalletToken, "")
	}

	address, err := srv.verifyWalletToken(c, walletToken)
	if err != nil {
		return err
	}

	deleted, err := srv.links.DeleteByAddress(ctx, address)
	if err != nil {
		return err
	}

	walletsUnlinked.Inc()
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}

// GET /oauth2/me-by-token/:provider
//
// Looks up the OAuth identity linked to the wallet a proof token controls.
func (srv *Server) HandleMeByToken(c echo.Context) error {
	ctx := c.Request().Context()
	providerName := c.Param("provider")

	walletToken := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if walletToken == "" {
		return oauth.Unauthorized(oauth.CodeUnauthorized, "")
	}

	address, err := srv.verifyWalletToken(c, walletToken)
	if err != nil {
		return err
	}

	link, err := srv.links.GetByAddress(ctx, providerName, address)
	if errors.Is(err, wallet.ErrLinkNotFound) {
		return c.JSON(http.StatusNotFound, map[string]any{
			"ok":             false,
			"error":          oauth.CodeNoAccountLinked,
			"wallet_address": address,
		})
	} else if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":             true,
		"sub":            link.Sub,
		"wallet_address": address,
		"token":          link.ProofToken,
		"linked_at":      link.LinkedAt,
		"email":          link.Email,
		"name":           link.Name,
		"picture":        link.Picture,
	})
}
