package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdavydov/node-laundry/internal/api"
)

func TestTokenIssuer_NilWhenAPIDisabled(t *testing.T) {
	a := &App{}
	assert.Nil(t, a.tokenIssuer())

	a.tokens = api.NewTokenProvider("s", time.Hour)
	issuer := a.tokenIssuer()
	require.NotNil(t, issuer)

	token, err := issuer.Sign("5001")
	require.NoError(t, err)
	claims, err := a.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "5001", claims.Subject)
}
