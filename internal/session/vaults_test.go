package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caveau-digitale/caveaud/internal/types"
)

func TestCreateVaultValidation(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()
	onboard(t, s, "123456")

	target := 100.0
	past := time.Now().UTC().AddDate(0, 0, -1)
	future := time.Now().UTC().AddDate(0, 1, 0)

	testCases := []struct {
		name        string
		req         types.VaultCreateRequest
		shouldError bool
	}{
		{
			name: "valid BY_AMOUNT",
			req: types.VaultCreateRequest{
				Name: "Casa", Currency: "USDC", Target: &target, UnlockMode: types.UnlockByAmount,
			},
			shouldError: false,
		},
		{
			name: "valid BOTH",
			req: types.VaultCreateRequest{
				Name: "Auto", Currency: "USDC", Target: &target,
				UnlockDate: &future, UnlockMode: types.UnlockBoth,
			},
			shouldError: false,
		},
		{
			name: "missing name",
			req: types.VaultCreateRequest{
				Currency: "USDC", Target: &target, UnlockMode: types.UnlockByAmount,
			},
			shouldError: true,
		},
		{
			name: "BY_DATE without date",
			req: types.VaultCreateRequest{
				Name: "Mare", Currency: "USDC", UnlockMode: types.UnlockByDate,
			},
			shouldError: true,
		},
		{
			name: "date in the past",
			req: types.VaultCreateRequest{
				Name: "Mare", Currency: "USDC", UnlockDate: &past, UnlockMode: types.UnlockByDate,
			},
			shouldError: true,
		},
		{
			name: "EITHER without target",
			req: types.VaultCreateRequest{
				Name: "Moto", Currency: "USDC", UnlockDate: &future, UnlockMode: types.UnlockEither,
			},
			shouldError: true,
		},
		{
			name: "unknown mode",
			req: types.VaultCreateRequest{
				Name: "Tech", Currency: "USDC", Target: &target, UnlockMode: "WHENEVER",
			},
			shouldError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := s.CreateVault(ctx, tc.req)
			if tc.shouldError {
				assert.Error(t, err)
				assert.Nil(t, v)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, v.ID)
				assert.Empty(t, v.Transactions)
			}
		})
	}
}

func TestDepositAssignsSyntheticHash(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()
	onboard(t, s, "123456")

	target := 100.0
	v, err := s.CreateVault(ctx, types.VaultCreateRequest{
		Name: "Casa", Currency: "USDC", Target: &target, UnlockMode: types.UnlockByAmount,
	})
	require.NoError(t, err)

	tx, err := s.Deposit(ctx, v.ID, types.DepositRequest{Amount: 40})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx.TxHash, "0x"))
	assert.Len(t, tx.TxHash, 66)

	// supplied hash is kept
	tx2, err := s.Deposit(ctx, v.ID, types.DepositRequest{Amount: 65, TxHash: "0xreal", OnChain: true})
	require.NoError(t, err)
	assert.Equal(t, "0xreal", tx2.TxHash)
	assert.True(t, tx2.OnChain)

	got, err := s.Vault(v.ID)
	require.NoError(t, err)
	assert.Len(t, got.Transactions, 2)
}

func TestDepositValidation(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()
	onboard(t, s, "123456")

	target := 100.0
	v, err := s.CreateVault(ctx, types.VaultCreateRequest{
		Name: "Casa", Currency: "USDC", Target: &target, UnlockMode: types.UnlockByAmount,
	})
	require.NoError(t, err)

	_, err = s.Deposit(ctx, v.ID, types.DepositRequest{Amount: 0})
	assert.Error(t, err)
	_, err = s.Deposit(ctx, v.ID, types.DepositRequest{Amount: -5})
	assert.Error(t, err)
	_, err = s.Deposit(ctx, "missing", types.DepositRequest{Amount: 1})
	assert.Error(t, err)
}

func TestReturnedVaultsAreDetachedCopies(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()
	onboard(t, s, "123456")

	target := 100.0
	v, err := s.CreateVault(ctx, types.VaultCreateRequest{
		Name: "Casa", Currency: "USDC", Target: &target, UnlockMode: types.UnlockByAmount,
	})
	require.NoError(t, err)
	_, err = s.Deposit(ctx, v.ID, types.DepositRequest{Amount: 40})
	require.NoError(t, err)

	// mutating returned records must not reach the ledger
	got, err := s.Vault(v.ID)
	require.NoError(t, err)
	got.Name = "scribbled"
	*got.Target = 1
	got.Transactions[0].Amount = 9999
	got.Transactions = append(got.Transactions, types.Transaction{ID: "fake", Amount: 1})

	list, err := s.Vaults()
	require.NoError(t, err)
	require.Len(t, list, 1)
	list[0].Name = "scribbled again"
	list[0].Transactions[0].Amount = -1

	fresh, err := s.Vault(v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Casa", fresh.Name)
	assert.Equal(t, 100.0, *fresh.Target)
	require.Len(t, fresh.Transactions, 1)
	assert.Equal(t, 40.0, fresh.Transactions[0].Amount)
}

func TestDepositsPersistAcrossSessions(t *testing.T) {
	s, store := newTestSession(t)
	ctx := context.Background()
	onboard(t, s, "123456")

	target := 100.0
	v, err := s.CreateVault(ctx, types.VaultCreateRequest{
		Name: "Casa", Currency: "USDC", Target: &target, UnlockMode: types.UnlockByAmount,
	})
	require.NoError(t, err)
	_, err = s.Deposit(ctx, v.ID, types.DepositRequest{Amount: 40})
	require.NoError(t, err)

	s2 := New(store)
	_, err = s2.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, s2.Unlock(ctx, "123456"))

	got, err := s2.Vault(v.ID)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, 40.0, got.Transactions[0].Amount)
}
