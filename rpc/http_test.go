package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"hivestake/core/types"
	"hivestake/native/colony"
	"hivestake/native/infusion"
	"hivestake/native/stake"
	"hivestake/state"
	"hivestake/storage"
)

type fakeCustodian struct {
	owners map[types.TokenKey][20]byte
}

func (f *fakeCustodian) OwnerOf(key types.TokenKey) ([20]byte, error) {
	owner, ok := f.owners[key]
	if !ok {
		return [20]byte{}, fmt.Errorf("unknown token")
	}
	return owner, nil
}

func (f *fakeCustodian) Transfer(key types.TokenKey, from, to [20]byte) error {
	f.owners[key] = to
	return nil
}

func (f *fakeCustodian) ForceTransfer(key types.TokenKey, to [20]byte) error {
	f.owners[key] = to
	return nil
}

// fakeIssuer settles every payout without quota limits.
type fakeIssuer struct {
	paid map[[20]byte]*big.Int
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{paid: make(map[[20]byte]*big.Int)}
}

func (f *fakeIssuer) Consume(addr [20]byte, amount *big.Int) error { return nil }

func (f *fakeIssuer) ConsumeUpTo(addr [20]byte, amount *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}

func (f *fakeIssuer) Refund(addr [20]byte, amount *big.Int) error { return nil }

func (f *fakeIssuer) Remaining(addr [20]byte) (*big.Int, string, error) {
	return nil, "2026-08-30", nil
}

func (f *fakeIssuer) Distribute(addr [20]byte, amount *big.Int) (*big.Int, *big.Int, error) {
	total, ok := f.paid[addr]
	if !ok {
		total = big.NewInt(0)
	}
	f.paid[addr] = new(big.Int).Add(total, amount)
	return new(big.Int).Set(amount), big.NewInt(0), nil
}

type fakeFungible struct{}

func (fakeFungible) Transfer(from, to [20]byte, amount *big.Int) error { return nil }

type rpcEnv struct {
	server    *Server
	manager   *state.Manager
	custodian *fakeCustodian
	issuer    *fakeIssuer
	now       int64
	owner     [20]byte
	key       types.TokenKey
}

func newRPCEnv(t *testing.T, authToken string, rateLimit uint64) *rpcEnv {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	env := &rpcEnv{
		manager:   manager,
		custodian: &fakeCustodian{owners: make(map[types.TokenKey][20]byte)},
		issuer:    newFakeIssuer(),
		now:       1_700_000_000,
		owner:     [20]byte{19: 1},
		key:       types.NewTokenKey(1, 42),
	}
	env.custodian.owners[env.key] = env.owner

	colonies := colony.NewRegistry()
	colonies.SetState(manager)

	staking := stake.NewEngine()
	staking.SetState(manager)
	staking.SetCustodian(env.custodian)
	staking.SetCustody([20]byte{19: 9})
	staking.SetIssuer(env.issuer)
	staking.SetColonyHook(colonies)
	staking.SetPauseView(manager)
	staking.SetNowFunc(func() int64 { return env.now })

	infuser := infusion.NewEngine()
	infuser.SetConfig(infusion.Config{Enabled: true})
	infuser.SetState(manager)
	infuser.SetPositions(staking)
	infuser.SetToken(fakeFungible{})
	infuser.SetIssuer(env.issuer)
	infuser.SetVault([20]byte{19: 8})
	infuser.SetPauseView(manager)
	infuser.SetNowFunc(func() int64 { return env.now })

	env.server = NewServer(Deps{
		Staking:         staking,
		Colonies:        colonies,
		Infusion:        infuser,
		Pauses:          manager,
		AuthToken:       authToken,
		RateLimitPerMin: rateLimit,
	})
	return env
}

type rpcResult struct {
	status int
	Result json.RawMessage
	Error  *RPCError
}

func (e *rpcEnv) call(t *testing.T, token, method string, params ...interface{}) rpcResult {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  rawParams,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	e.server.Router().ServeHTTP(recorder, req)

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return rpcResult{status: recorder.Code, Result: resp.Result, Error: resp.Error}
}

func (e *rpcEnv) token() tokenParam {
	return tokenOf(e.key)
}

func TestRPCStakeLifecycle(t *testing.T) {
	env := newRPCEnv(t, "secret", 6000)
	caller := encodeAddress(env.owner)

	resp := env.call(t, "secret", "stake_stake", stakeActionParams{Caller: caller, Token: env.token()})
	require.Nil(t, resp.Error)
	var position positionResult
	require.NoError(t, json.Unmarshal(resp.Result, &position))
	require.True(t, position.Staked)
	require.Equal(t, caller, position.Owner)

	// A day later the position has accrued a reward.
	env.now += 86_400
	resp = env.call(t, "", "stake_pendingReward", env.token())
	require.Nil(t, resp.Error)
	var pending claimResult
	require.NoError(t, json.Unmarshal(resp.Result, &pending))
	require.NotEqual(t, "0", pending.Amount)

	resp = env.call(t, "secret", "stake_claim", stakeActionParams{Caller: caller, Token: env.token()})
	require.Nil(t, resp.Error)
	var claimed claimResult
	require.NoError(t, json.Unmarshal(resp.Result, &claimed))
	require.Equal(t, pending.Amount, claimed.Amount)
	require.Equal(t, claimed.Amount, env.issuer.paid[env.owner].String())

	resp = env.call(t, "", "stake_account", addressParams{Address: caller})
	require.Nil(t, resp.Error)
	var account accountResult
	require.NoError(t, json.Unmarshal(resp.Result, &account))
	require.Equal(t, uint64(1), account.PositionCount)
	require.Equal(t, claimed.Amount, account.TotalClaimed)

	resp = env.call(t, "secret", "stake_unstake", stakeActionParams{Caller: caller, Token: env.token()})
	require.Nil(t, resp.Error)
	require.Equal(t, env.owner, env.custodian.owners[env.key])
}

func TestRPCRequiresAuthForWrites(t *testing.T) {
	env := newRPCEnv(t, "secret", 6000)
	caller := encodeAddress(env.owner)

	resp := env.call(t, "", "stake_stake", stakeActionParams{Caller: caller, Token: env.token()})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
	require.Equal(t, http.StatusUnauthorized, resp.status)

	resp = env.call(t, "wrong", "stake_stake", stakeActionParams{Caller: caller, Token: env.token()})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	// Read-only queries stay open.
	resp = env.call(t, "", "stake_position", env.token())
	require.Nil(t, resp.Error)
}

func TestRPCColonyFlow(t *testing.T) {
	env := newRPCEnv(t, "secret", 6000)
	caller := encodeAddress(env.owner)

	resp := env.call(t, "secret", "stake_stake", stakeActionParams{Caller: caller, Token: env.token()})
	require.Nil(t, resp.Error)

	resp = env.call(t, "secret", "colony_create", colonyCreateParams{Caller: caller, Name: "harvesters"})
	require.Nil(t, resp.Error)
	var created colonyInfoResult
	require.NoError(t, json.Unmarshal(resp.Result, &created))
	require.Equal(t, uint64(1), created.ID)
	require.True(t, created.Active)

	resp = env.call(t, "secret", "colony_join", colonyJoinParams{Caller: caller, Token: env.token(), ColonyID: created.ID})
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "colony_info", colonyIDParams{ColonyID: created.ID})
	require.Nil(t, resp.Error)
	var info colonyInfoResult
	require.NoError(t, json.Unmarshal(resp.Result, &info))
	require.Equal(t, uint64(1), info.MemberCount)

	resp = env.call(t, "secret", "colony_leave", colonyLeaveParams{Caller: caller, Token: env.token()})
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "colony_info", colonyIDParams{ColonyID: created.ID})
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &info))
	require.Equal(t, uint64(0), info.MemberCount)
}

func TestRPCInfusionFlow(t *testing.T) {
	env := newRPCEnv(t, "secret", 6000)
	caller := encodeAddress(env.owner)

	resp := env.call(t, "secret", "stake_stake", stakeActionParams{Caller: caller, Token: env.token()})
	require.Nil(t, resp.Error)

	deposit := new(big.Int).Mul(big.NewInt(800), big.NewInt(1_000_000_000_000_000_000))
	resp = env.call(t, "secret", "infusion_infuse", infuseParams{Caller: caller, Token: env.token(), Amount: deposit.String()})
	require.Nil(t, resp.Error)
	var record infusionRecordResult
	require.NoError(t, json.Unmarshal(resp.Result, &record))
	require.Equal(t, deposit.String(), record.Amount)
	require.True(t, record.Infused)

	resp = env.call(t, "", "infusion_stats", env.token())
	require.Nil(t, resp.Error)
	var stats infusionStatsResult
	require.NoError(t, json.Unmarshal(resp.Result, &stats))
	// 800 of a 1000 cap puts the deposit in the top tier.
	require.Equal(t, uint8(5), stats.Level)

	resp = env.call(t, "secret", "infusion_withdraw", infuseParams{Caller: caller, Token: env.token(), Amount: deposit.String()})
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &record))
	require.Equal(t, "0", record.Amount)
}

func TestRPCAdminPauseBlocksModule(t *testing.T) {
	env := newRPCEnv(t, "secret", 6000)
	caller := encodeAddress(env.owner)

	resp := env.call(t, "secret", "admin_pause", pauseParams{Module: "staking"})
	require.Nil(t, resp.Error)

	resp = env.call(t, "secret", "stake_stake", stakeActionParams{Caller: caller, Token: env.token()})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeModulePaused, resp.Error.Code)
	require.Equal(t, http.StatusServiceUnavailable, resp.status)

	resp = env.call(t, "secret", "admin_resume", pauseParams{Module: "staking"})
	require.Nil(t, resp.Error)

	resp = env.call(t, "secret", "stake_stake", stakeActionParams{Caller: caller, Token: env.token()})
	require.Nil(t, resp.Error)
}

func TestRPCMethodNotFound(t *testing.T) {
	env := newRPCEnv(t, "", 6000)
	resp := env.call(t, "", "stake_teleport")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
	require.Equal(t, http.StatusNotFound, resp.status)
}

func TestRPCRateLimit(t *testing.T) {
	env := newRPCEnv(t, "", 1)
	resp := env.call(t, "", "stake_position", env.token())
	require.Nil(t, resp.Error)

	resp = env.call(t, "", "stake_position", env.token())
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRateLimited, resp.Error.Code)
	require.Equal(t, http.StatusTooManyRequests, resp.status)
}
