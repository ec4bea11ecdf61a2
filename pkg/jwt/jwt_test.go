package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueValidateRoundTrip(t *testing.T) {
	m := NewManager("test-signing-key", "invitetree", time.Hour)
	actorID := uuid.New()

	tokenStr, err := m.Issue(actorID, RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, actorID.String(), claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "invitetree", claims.Issuer)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewManager("key-one", "invitetree", time.Hour)
	verifier := NewManager("key-two", "invitetree", time.Hour)

	tokenStr, err := issuer.Issue(uuid.New(), RoleUser)
	require.NoError(t, err)

	_, err = verifier.Validate(tokenStr)
	assert.Error(t, err)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	issuer := NewManager("shared-key", "someone-else", time.Hour)
	verifier := NewManager("shared-key", "invitetree", time.Hour)

	tokenStr, err := issuer.Issue(uuid.New(), RoleUser)
	require.NoError(t, err)

	_, err = verifier.Validate(tokenStr)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("test-signing-key", "invitetree", -time.Minute)

	tokenStr, err := m.Issue(uuid.New(), RoleUser)
	require.NoError(t, err)

	_, err = m.Validate(tokenStr)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewManager("test-signing-key", "invitetree", time.Hour)
	_, err := m.Validate("not.a.token")
	assert.Error(t, err)
}

func TestRoleIsAdmin(t *testing.T) {
	assert.False(t, RoleUser.IsAdmin())
	assert.True(t, RoleAdmin.IsAdmin())
	assert.True(t, RoleSuperAdmin.IsAdmin())
	assert.False(t, Role("intruder").IsAdmin())
}
