package session

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	assert := assert.New(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		raw, err := base64.RawURLEncoding.DecodeString(id)
		require.NoError(t, err)
		assert.Len(raw, 48)
		assert.False(seen[id])
		seen[id] = true
	}
}

func TestPlanRotation(t *testing.T) {
	assert := assert.New(t)

	id, rotated := PlanRotation("current", false)
	assert.Equal("current", id)
	assert.False(rotated)

	id, rotated = PlanRotation("current", true)
	assert.True(rotated)
	assert.NotEqual("current", id)
	assert.NotEmpty(id)

	other, _ := PlanRotation("current", true)
	assert.NotEqual(id, other)
}

func TestRecordTokenHelpers(t *testing.T) {
	assert := assert.New(t)

	rec := &Record{Token: map[string]any{
		"access_token":  "at-1",
		"refresh_token": "rt-1",
		"expires_in":    float64(3600),
	}}
	assert.Equal("at-1", rec.AccessToken())
	assert.Equal("rt-1", rec.RefreshToken())
	require.NotNil(t, rec.ExpiresIn())
	assert.EqualValues(3600, *rec.ExpiresIn())

	// decoding a stored record yields float64 numbers; other shapes coerce too
	rec.Token["expires_in"] = int(120)
	assert.EqualValues(120, *rec.ExpiresIn())
	rec.Token["expires_in"] = json.Number("86400")
	assert.EqualValues(86400, *rec.ExpiresIn())
	rec.Token["expires_in"] = "soon"
	assert.Nil(rec.ExpiresIn())

	empty := &Record{}
	assert.Empty(empty.AccessToken())
	assert.Empty(empty.RefreshToken())
	assert.Nil(empty.ExpiresIn())
}

func TestUserFromClaims(t *testing.T) {
	assert := assert.New(t)

	u := UserFromClaims(map[string]any{
		"sub":            "user-1",
		"email":          "u1@example.com",
		"name":           "User One",
		"picture":        "https://img.example.com/u1.png",
		"email_verified": true,
	})
	require.NotNil(t, u)
	assert.Equal("user-1", u.Sub)
	assert.Equal("u1@example.com", u.Email)
	assert.Equal("User One", u.Name)
	require.NotNil(t, u.EmailVerified)
	assert.True(*u.EmailVerified)

	sparse := UserFromClaims(map[string]any{"sub": "user-2"})
	assert.Equal("user-2", sparse.Sub)
	assert.Empty(sparse.Email)
	assert.Nil(sparse.EmailVerified)

	assert.Nil(UserFromClaims(nil))
}
