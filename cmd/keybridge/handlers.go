package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/keybridge-labs/keybridge/oauth"
	"github.com/keybridge-labs/keybridge/session"
	"github.com/keybridge-labs/keybridge/wallet"

	"github.com/labstack/echo/v4"
)

// ErrorBody is the uniform error response shape.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	var fe *oauth.FlowError
	if errors.As(err, &fe) {
		if fe.Status >= 500 {
			srv.logger.Warn("upstream failure", "code", fe.Code, "detail", fe.Detail)
		}
		c.JSON(fe.Status, ErrorBody{Error: fe.Code, Detail: fe.Detail})
		return
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, ErrorBody{Error: oauth.CodeInternalError, Detail: fmt.Sprintf("%s", he.Message)})
		return
	}
	srv.logger.Error("unhandled error", "err", err, "path", c.Path())
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: oauth.CodeInternalError})
}

// bearerToken extracts an RFC 6750 bearer credential from a header value.
func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// authnSession resolves the Authorization bearer to a live session. It
// returns a FlowError suitable for returning directly from a handler.
func (srv *Server) authnSession(c echo.Context) (string, *session.Record, error) {
	id := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if id == "" {
		return "", nil, oauth.Unauthorized(oauth.CodeUnauthorized, "")
	}
	rec, err := srv.sessions.Get(c.Request().Context(), id)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
		return "", nil, oauth.Unauthorized(oauth.CodeUnauthorized, "")
	} else if err != nil {
		return "", nil, err
	}
	return id, rec, nil
}

type GenericStatus struct {
	Daemon string `json:"daemon"`
	Status string `json:"status"`
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "keybridge"})
}

// GET /oauth2/start/:provider
//
// Begins an authorization-code flow: PKCE pair, CSRF token, and a pending
// transaction, then a redirect to the provider's authorize endpoint.
func (srv *Server) HandleStart(c echo.Context) error {
	ctx := c.Request().Context()
	providerName := c.Param("provider")
	cfg, ok := srv.providers.Get(providerName)
	if !ok {
		return oauth.Validation(oauth.CodeUnknownProvider, providerName)
	}

	pkce := oauth.NewPKCE()
	csrf := oauth.RandomToken(32)
	txnID := oauth.RandomToken(32)
	now := time.Now()

	txn := oauth.Transaction{
		Provider:     providerName,
		CodeVerifier: pkce.Verifier,
		CSRF:         csrf,
		CreatedAt:    now.Unix(),
		ReturnTo:     c.QueryParam("return_to"),
	}
	if err := srv.txns.Put(ctx, txnID, &txn); err != nil {
		return err
	}

	state := oauth.State{
		CSRF:     csrf,
		TxnID:    txnID,
		Provider: providerName,
		IssuedAt: now.Unix(),
	}

	authorizeURL, err := url.Parse(cfg.AuthorizeEndpoint)
	if err != nil {
		return err
	}
	q := authorizeURL.Query()
	q.Set("response_type", "code")
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", srv.redirectURI)
	q.Set("scope", cfg.Scope)
	q.Set("code_challenge", pkce.Challenge)
	q.Set("code_challenge_method", oauth.ChallengeMethod)
	q.Set("state", state.Encode())
	authorizeURL.RawQuery = q.Encode()

	flowsStarted.WithLabelValues(providerName).Inc()
	return c.Redirect(http.StatusFound, authorizeURL.String())
}

// GET /oauth2/callback/:provider
//
// Completes a code-exchange flow. The state's provider is authoritative when
// present (multiple start routes can share one callback); a transaction that
// recorded a different provider is rejected.
func (srv *Server) HandleCallback(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.QueryParam("code")
	stateRaw := c.QueryParam("state")
	if code == "" || stateRaw == "" {
		return oauth.Validation(oauth.CodeMissingCodeOrState, "")
	}

	state, err := oauth.DecodeState(stateRaw)
	if err != nil {
		return oauth.Validation(oauth.CodeInvalidState, "")
	}
	if state.CSRF == "" || state.TxnID == "" {
		return oauth.Validation(oauth.CodeInvalidStatePayload, "")
	}

	txn, err := srv.txns.Get(ctx, state.TxnID)
	if errors.Is(err, oauth.ErrTxnNotFound) {
		return oauth.Validation(oauth.CodeTransactionExpired, "")
	} else if err != nil {
		return err
	}

	// anti-forgery: compare against the transaction's stored csrf, never
	// just echo the query string
	if txn.CSRF != state.CSRF {
		return oauth.Validation(oauth.CodeCSRFMismatch, "")
	}

	effectiveProvider := state.Provider
	if effectiveProvider == "" {
		effectiveProvider = c.Param("provider")
	}
	cfg, ok := srv.providers.Get(effectiveProvider)
	if !ok {
		return oauth.Validation(oauth.CodeUnknownProvider, effectiveProvider)
	}
	if txn.Provider != "" && txn.Provider != effectiveProvider {
		return oauth.Validation(oauth.CodeProviderMismatch,
			fmt.Sprintf("expected %s, got %s", txn.Provider, effectiveProvider))
	}

	token, err := srv.oauthClient.ExchangeCode(ctx, cfg, code, srv.redirectURI, txn.CodeVerifier)
	if err != nil {
		loginsFailed.WithLabelValues(effectiveProvider, "code").Inc()
		return err
	}

	rec := session.Record{
		Provider:  effectiveProvider,
		CreatedAt: time.Now().Unix(),
		Token:     token,
	}

	// userinfo is best-effort; a provider outage here does not fail the login
	if accessToken, _ := token["access_token"].(string); accessToken != "" && cfg.UserinfoEndpoint != "" {
		userinfo, err := srv.oauthClient.FetchUserinfo(ctx, cfg, accessToken)
		if err != nil {
			srv.logger.Warn("userinfo fetch failed", "provider", effectiveProvider, "err", err)
		} else {
			rec.User = session.UserFromClaims(userinfo)
		}
	}

	sessionID := session.NewID()
	if err := srv.sessions.Put(ctx, sessionID, &rec); err != nil {
		return err
	}

	// single-use: the transaction never resolves again
	if err := srv.txns.Delete(ctx, state.TxnID); err != nil {
		srv.logger.Warn("transaction delete failed", "err", err)
	}

	loginsCompleted.WithLabelValues(effectiveProvider, "code").Inc()

	if !strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "application/json") {
		returnTo := txn.ReturnTo
		if returnTo == "" {
			returnTo = srv.returnTo
		}
		target := returnTo + "?session=" + url.QueryEscape(sessionID)
		return c.HTML(http.StatusOK, fmt.Sprintf(callbackHTML, strconv.Quote(target)))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":        true,
		"sessionId": sessionID,
		"user":      rec.User,
		"provider":  effectiveProvider,
	})
}

const callbackHTML = `<!doctype html>
<meta charset="utf-8">
<script>
  window.location.replace(%s);
</script>`

// POST /oauth2/login-with-idtoken/:provider
//
// Creates a session from a client-held OIDC ID token, verified against the
// provider's published keys. No server-to-provider token exchange.
func (srv *Server) HandleLoginWithIDToken(c echo.Context) error {
	ctx := c.Request().Context()
	providerName := c.Param("provider")
	cfg, ok := srv.providers.Get(providerName)
	if !ok || cfg.OIDC == nil {
		return oauth.Validation(oauth.CodeNonOIDCProvider, providerName)
	}

	var body struct {
		IDToken string `json:"idToken"`
		Nonce   string `json:"nonce"`
	}
	if err := c.Bind(&body); err != nil {
		return oauth.Validation("invalid_json", "")
	}
	if body.IDToken == "" {
		return oauth.Validation(oauth.CodeMissingIDToken, "")
	}
	if body.Nonce == "" {
		return oauth.Validation(oauth.CodeMissingNonce, "")
	}

	now := time.Now()
	claims, err := oauth.VerifyIDToken(ctx, cfg, srv.keysets, body.IDToken, body.Nonce, now)
	if err != nil {
		loginsFailed.WithLabelValues(providerName, "idtoken").Inc()
		return err
	}

	expiresIn := claims.Expiry - now.Unix()
	if expiresIn < 0 {
		expiresIn = 0
	}

	rec := session.Record{
		Provider:  providerName,
		CreatedAt: now.Unix(),
		Token: map[string]any{
			"id_token_hint": true,
			"expires_in":    expiresIn,
		},
		User: &session.User{
			Sub:           claims.Subject,
			Email:         claims.Email,
			Name:          claims.Name,
			Picture:       claims.Picture,
			EmailVerified: claims.EmailVerified,
		},
	}

	sessionID := session.NewID()
	if err := srv.sessions.Put(ctx, sessionID, &rec); err != nil {
		return err
	}

	loginsCompleted.WithLabelValues(providerName, "idtoken").Inc()
	return c.JSON(http.StatusOK, map[string]any{
		"ok":        true,
		"sessionId": sessionID,
		"user":      rec.User,
		"provider":  providerName,
	})
}

type meResponse struct {
	OK             bool          `json:"ok"`
	User           *session.User `json:"user"`
	Provider       string        `json:"provider"`
	TokenExpiresIn *int64        `json:"token_expires_in"`
	WalletAddress  *string       `json:"wallet_address"`
	Token          *string       `json:"token"`
	LinkedAt       *int64        `json:"linked_at"`
	Email          *string       `json:"email"`
}

// GET /oauth2/me
//
// Returns the current identity, joined with any wallet link. Every call
// refreshes the rolling TTL; ?rotate=1 additionally replaces the session id,
// signalled via the x-session-rotate header.
func (srv *Server) HandleMe(c echo.Context) error {
	ctx := c.Request().Context()
	id, rec, err := srv.authnSession(c)
	if err != nil {
		return err
	}

	wantRefresh := c.QueryParam("refresh") == "1" ||
		c.Request().Header.Get("x-refresh-userinfo") == "1"
	wantRotate := c.QueryParam("rotate") == "1"

	cfg, _ := srv.providers.Get(rec.Provider)

	// best-effort: a stale cached user is preferable to a failed request
	if wantRefresh && cfg != nil && cfg.UserinfoEndpoint != "" && rec.AccessToken() != "" {
		userinfo, err := srv.oauthClient.FetchUserinfo(ctx, cfg, rec.AccessToken())
		if err != nil {
			srv.logger.Warn("userinfo refresh failed", "provider", rec.Provider, "err", err)
		} else {
			rec.User = session.UserFromClaims(userinfo)
		}
	}

	resp := meResponse{
		OK:             true,
		User:           rec.User,
		Provider:       rec.Provider,
		TokenExpiresIn: rec.ExpiresIn(),
	}
	if rec.User != nil && rec.User.Sub != "" {
		link, err := srv.links.GetByIdentity(ctx, rec.Provider, rec.User.Sub)
		if err == nil {
			resp.WalletAddress = &link.WalletAddress
			resp.Token = &link.ProofToken
			resp.LinkedAt = &link.LinkedAt
			if link.Email != "" {
				resp.Email = &link.Email
			}
		} else if !errors.Is(err, wallet.ErrLinkNotFound) {
			return err
		}
	}

	newID, rotated := session.PlanRotation(id, wantRotate)
	if err := srv.sessions.Put(ctx, newID, rec); err != nil {
		return err
	}
	if rotated {
		if err := srv.sessions.Delete(ctx, id); err != nil {
			return err
		}
		sessionsRotated.Inc()
		c.Response().Header().Set(session.RotationHeader, newID)
	}

	return c.JSON(http.StatusOK, resp)
}

// POST /oauth2/logout
//
// Idempotent: always {ok:true}, whatever state the session is in. Provider
// token revocation is best-effort; the session key delete is unconditional.
func (srv *Server) HandleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	ok := map[string]any{"ok": true}

	id := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if id == "" {
		return c.JSON(http.StatusOK, ok)
	}

	rec, err := srv.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return c.JSON(http.StatusOK, ok)
	} else if errors.Is(err, session.ErrCorrupt) {
		// unparsable record: delete the key anyway
		if err := srv.sessions.Delete(ctx, id); err != nil {
			srv.logger.Warn("session delete failed", "err", err)
		}
		return c.JSON(http.StatusOK, ok)
	} else if err != nil {
		return err
	}

	revoke := c.QueryParam("revoke")
	if revoke != "access" && revoke != "refresh" && revoke != "both" {
		revoke = "access"
	}

	if cfg, ok := srv.providers.Get(rec.Provider); ok {
		if revoke == "access" || revoke == "both" {
			srv.tryRevoke(c, cfg, rec.AccessToken(), "access_token")
		}
		if revoke == "refresh" || revoke == "both" {
			srv.tryRevoke(c, cfg, rec.RefreshToken(), "refresh_token")
		}
	}

	if err := srv.sessions.Delete(ctx, id); err != nil {
		srv.logger.Warn("session delete failed", "err", err)
	}
	sessionsRevoked.Inc()
	return c.JSON(http.StatusOK, ok)
}

func (srv *Server) tryRevoke(c echo.Context, cfg *oauth.ProviderConfig, token, hint string) {
	if token == "" {
		return
	}
	if err := srv.oauthClient.Revoke(c.Request().Context(), cfg, token, hint); err != nil {
		srv.logger.Warn("token revocation failed", "hint", hint, "err", err)
	}
}
