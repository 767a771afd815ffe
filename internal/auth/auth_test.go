package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dyndnsd/internal/config"
)

func TestNewTokenIsUniqueHex(t *testing.T) {
	a := NewToken()
	b := NewToken()

	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]+$", a)
	assert.NotEqual(t, a, b)
}

func TestResolveAccess(t *testing.T) {
	lc := NewLDAPClient(config.LDAPConfig{
		AdminGroup: "cn=dyn-admins,ou=groups,dc=example,dc=com",
		UserGroup:  "cn=dyn-users,ou=groups,dc=example,dc=com",
	})

	admin, allowed := lc.ResolveAccess([]string{"cn=dyn-admins,ou=groups,dc=example,dc=com"})
	assert.True(t, admin)
	assert.True(t, allowed)

	admin, allowed = lc.ResolveAccess([]string{"cn=dyn-users,ou=groups,dc=example,dc=com"})
	assert.False(t, admin)
	assert.True(t, allowed)

	admin, allowed = lc.ResolveAccess([]string{"cn=unrelated,ou=groups,dc=example,dc=com"})
	assert.False(t, admin)
	assert.False(t, allowed)

	admin, allowed = lc.ResolveAccess(nil)
	assert.False(t, admin)
	assert.False(t, allowed)
}
