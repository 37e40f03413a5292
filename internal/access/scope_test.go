package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScope(t *testing.T) {
	platform := Identity{Portal: PortalPlatform, Role: RoleAdmin}
	assert.True(t, ResolveScope(platform).IsUnrestricted())

	account := Identity{Portal: PortalAccount, Role: RoleManager, AccountID: "acc_1"}
	assert.Equal(t, ScopeFilter{AccountID: "acc_1"}, ResolveScope(account))

	agency := Identity{Portal: PortalAgency, Role: RoleUser, AccountID: "acc_1", AgencyID: "agc_1"}
	assert.Equal(t, ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"}, ResolveScope(agency))
}

func TestScopeFilterContains(t *testing.T) {
	accountScope := ScopeFilter{AccountID: "acc_1"}

	assert.True(t, accountScope.Contains(ScopeFilter{AccountID: "acc_1"}))
	assert.True(t, accountScope.Contains(ScopeFilter{AccountID: "acc_1", AgencyID: "agc_9"}))
	assert.False(t, accountScope.Contains(ScopeFilter{AccountID: "acc_2"}))
	// An account-bound scope never contains the "all accounts" target.
	assert.False(t, accountScope.Contains(ScopeFilter{}))

	agencyScope := ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"}
	assert.True(t, agencyScope.Contains(ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"}))
	assert.False(t, agencyScope.Contains(ScopeFilter{AccountID: "acc_1", AgencyID: "agc_2"}))
	assert.False(t, agencyScope.Contains(ScopeFilter{AccountID: "acc_1"}))

	unrestricted := ScopeFilter{}
	assert.True(t, unrestricted.Contains(ScopeFilter{}))
	assert.True(t, unrestricted.Contains(ScopeFilter{AccountID: "acc_7", AgencyID: "agc_3"}))
}

func TestNarrowFilterPlatformPassThrough(t *testing.T) {
	platform := Identity{Portal: PortalPlatform, Role: RoleUser}

	got, err := NarrowFilter(platform, ScopeFilter{AccountID: "acc_42"})
	require.NoError(t, err)
	assert.Equal(t, ScopeFilter{AccountID: "acc_42"}, got)

	got, err = NarrowFilter(platform, ScopeFilter{})
	require.NoError(t, err)
	assert.True(t, got.IsUnrestricted())
}

func TestNarrowFilterAccountIntersection(t *testing.T) {
	account := Identity{Portal: PortalAccount, Role: RoleAdmin, AccountID: "acc_1"}

	// No requested filter: pinned to own account.
	got, err := NarrowFilter(account, ScopeFilter{})
	require.NoError(t, err)
	assert.Equal(t, ScopeFilter{AccountID: "acc_1"}, got)

	// Narrowing to one of its agencies is allowed.
	got, err = NarrowFilter(account, ScopeFilter{AgencyID: "agc_5"})
	require.NoError(t, err)
	assert.Equal(t, ScopeFilter{AccountID: "acc_1", AgencyID: "agc_5"}, got)

	// Requesting another account is rejected, not substituted.
	_, err = NarrowFilter(account, ScopeFilter{AccountID: "acc_2"})
	assert.ErrorIs(t, err, ErrOutOfScope)
}

func TestNarrowFilterAgencyCannotWiden(t *testing.T) {
	agency := Identity{Portal: PortalAgency, Role: RoleAdmin, AccountID: "acc_1", AgencyID: "agc_1"}

	got, err := NarrowFilter(agency, ScopeFilter{})
	require.NoError(t, err)
	assert.Equal(t, ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"}, got)

	// Redundant self-filter is fine.
	got, err = NarrowFilter(agency, ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"})
	require.NoError(t, err)
	assert.Equal(t, ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"}, got)

	_, err = NarrowFilter(agency, ScopeFilter{AgencyID: "agc_2"})
	assert.ErrorIs(t, err, ErrOutOfScope)

	_, err = NarrowFilter(agency, ScopeFilter{AccountID: "acc_2"})
	assert.ErrorIs(t, err, ErrOutOfScope)
}

// Monotonicity: whatever a caller requests, the narrowed filter stays inside
// the resolved scope.
func TestNarrowFilterMonotonic(t *testing.T) {
	identities := []Identity{
		{Portal: PortalAccount, Role: RoleAdmin, AccountID: "acc_1"},
		{Portal: PortalAgency, Role: RoleManager, AccountID: "acc_1", AgencyID: "agc_1"},
	}
	requests := []ScopeFilter{
		{},
		{AccountID: "acc_1"},
		{AgencyID: "agc_1"},
		{AccountID: "acc_1", AgencyID: "agc_1"},
		{AccountID: "acc_2"},
		{AgencyID: "agc_9"},
	}

	for _, id := range identities {
		resolved := ResolveScope(id)
		for _, req := range requests {
			got, err := NarrowFilter(id, req)
			if err != nil {
				continue
			}
			assert.True(t, resolved.Contains(got),
				"narrowed filter %+v escaped resolved scope %+v", got, resolved)
		}
	}
}
