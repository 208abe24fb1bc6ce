package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyamichProjects/copaint/internal/auth"
)

func TestIssueValidateRoundtrip(t *testing.T) {
	svc, err := auth.NewService("test-secret", 1)
	require.NoError(t, err)

	token, memberID, err := svc.Issue("amy")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, memberID)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, memberID, claims.MemberID)
	assert.Equal(t, "amy", claims.Username)
}

func TestEachIssueMintsFreshMemberID(t *testing.T) {
	svc, err := auth.NewService("test-secret", 1)
	require.NoError(t, err)

	_, first, err := svc.Issue("amy")
	require.NoError(t, err)
	_, second, err := svc.Issue("amy")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	svc, err := auth.NewService("test-secret", 1)
	require.NoError(t, err)

	token, _, err := svc.Issue("amy")
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = svc.Validate(tampered)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateRejectsTokenSignedWithOtherSecret(t *testing.T) {
	issuer, err := auth.NewService("secret-one", 1)
	require.NoError(t, err)
	verifier, err := auth.NewService("secret-two", 1)
	require.NoError(t, err)

	token, _, err := issuer.Issue("amy")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, err := auth.NewService("test-secret", 1)
	require.NoError(t, err)

	_, err = svc.Validate("not.a.jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := auth.NewService("", 1)
	assert.Error(t, err)
}
