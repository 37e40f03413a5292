package tenancy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyarc/platform/internal/access"
)

func newAccount(id string) *Account {
	now := time.Now()
	return &Account{
		ID:           id,
		Name:         "Acme Education",
		ContactEmail: "ops@acme.test",
		Subscription: DefaultSubscriptionForPlan(PlanStarter),
		Billing:      AccountBilling{Cycle: CycleMonthly, Status: "current"},
		Settings:     DefaultSettings(),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newAgency(id, accountID string) *Agency {
	now := time.Now()
	return &Agency{
		ID:                     id,
		AccountID:              accountID,
		Name:                   "Agency " + id,
		CommissionSplitPercent: 20,
		IsActive:               true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func newUser(id, email, accountID, agencyID string) *User {
	now := time.Now()
	portal := access.PortalAccount
	if accountID == "" {
		portal = access.PortalPlatform
	} else if agencyID != "" {
		portal = access.PortalAgency
	}
	return &User{
		ID:        id,
		Email:     email,
		Name:      "User " + id,
		Portal:    portal,
		Role:      access.RoleManager,
		AccountID: accountID,
		AgencyID:  agencyID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	acc := newAccount("acc_1")
	require.NoError(t, store.CreateAccount(ctx, acc))

	got, err := store.GetAccount(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Education", got.Name)
	assert.Equal(t, PlanStarter, got.Subscription.Plan)

	got.Name = "Acme Global"
	require.NoError(t, store.UpdateAccount(ctx, got))

	again, err := store.GetAccount(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Global", again.Name)

	_, err = store.GetAccount(ctx, "acc_missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryStoreCopyOnRead(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, newAccount("acc_1")))

	got, err := store.GetAccount(ctx, "acc_1")
	require.NoError(t, err)
	got.Name = "mutated"

	fresh, err := store.GetAccount(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Education", fresh.Name)
}

func TestMemoryStoreAgencyScopeFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, newAccount("acc_1")))
	require.NoError(t, store.CreateAccount(ctx, newAccount("acc_2")))
	require.NoError(t, store.CreateAgency(ctx, newAgency("agc_1", "acc_1")))
	require.NoError(t, store.CreateAgency(ctx, newAgency("agc_2", "acc_1")))
	require.NoError(t, store.CreateAgency(ctx, newAgency("agc_3", "acc_2")))

	all, err := store.ListAgencies(ctx, access.ScopeFilter{}, 100)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := store.ListAgencies(ctx, access.ScopeFilter{AccountID: "acc_1"}, 100)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	one, err := store.ListAgencies(ctx, access.ScopeFilter{AccountID: "acc_1", AgencyID: "agc_2"}, 100)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "agc_2", one[0].ID)

	count, err := store.CountAgencies(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStoreCountSkipsInactive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAccount(ctx, newAccount("acc_1")))

	a := newAgency("agc_1", "acc_1")
	require.NoError(t, store.CreateAgency(ctx, a))
	require.NoError(t, store.CreateAgency(ctx, newAgency("agc_2", "acc_1")))

	a.IsActive = false
	require.NoError(t, store.UpdateAgency(ctx, a))

	count, err := store.CountAgencies(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStoreUserEmailUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateUser(ctx, newUser("usr_1", "a@acme.test", "acc_1", "")))

	err := store.CreateUser(ctx, newUser("usr_2", "a@acme.test", "acc_1", ""))
	assert.ErrorIs(t, err, ErrEmailTaken)

	require.NoError(t, store.CreateUser(ctx, newUser("usr_3", "b@acme.test", "acc_1", "")))
}

func TestAgencyValidate(t *testing.T) {
	a := newAgency("agc_1", "acc_1")
	require.NoError(t, a.Validate())

	a.CommissionSplitPercent = 101
	assert.ErrorIs(t, a.Validate(), ErrInvalidSplit)

	a.CommissionSplitPercent = -1
	assert.ErrorIs(t, a.Validate(), ErrInvalidSplit)

	b := newAgency("agc_2", "")
	assert.ErrorIs(t, b.Validate(), access.ErrInvalidHierarchy)
}

func TestUserValidateHierarchy(t *testing.T) {
	u := newUser("usr_1", "a@acme.test", "acc_1", "")
	require.NoError(t, u.Validate())

	// Agency portal requires both account and agency.
	u.Portal = access.PortalAgency
	assert.ErrorIs(t, u.Validate(), access.ErrInvalidHierarchy)

	u.AgencyID = "agc_1"
	require.NoError(t, u.Validate())

	// Platform users carry no tenant IDs.
	p := newUser("usr_2", "p@studyarc.test", "", "")
	require.NoError(t, p.Validate())
	p.AccountID = "acc_1"
	assert.ErrorIs(t, p.Validate(), access.ErrInvalidHierarchy)
}

func TestDefaultSubscriptionForPlan(t *testing.T) {
	trial := DefaultSubscriptionForPlan(PlanTrial)
	assert.Equal(t, SubscriptionTrialing, trial.Status)
	assert.Greater(t, trial.MaxUsers, 0)

	ent := DefaultSubscriptionForPlan(PlanEnterprise)
	assert.Equal(t, SubscriptionActive, ent.Status)
	assert.Greater(t, ent.MaxAgencies, trial.MaxAgencies)
}
