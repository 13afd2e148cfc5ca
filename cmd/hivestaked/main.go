package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"hivestake/config"
	"hivestake/core/events"
	"hivestake/native/colony"
	"hivestake/native/fees"
	"hivestake/native/infusion"
	"hivestake/native/issuance"
	"hivestake/native/stake"
	"hivestake/observability"
	"hivestake/observability/logging"
	"hivestake/rpc"
	"hivestake/state"
	"hivestake/storage"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	logger := logging.Setup(logging.Options{
		Service: "hivestaked",
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	archive, err := storage.OpenOutcomeArchive(cfg.ArchiveFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to open outcome archive: %v", err))
	}
	defer func() { _ = archive.Close() }()

	emitter := events.MultiEmitter{archive, observability.Emitter{}}

	manager := state.NewManager(db)
	token := state.NewTokenLedger(db)
	custody := state.NewCustody(db)
	receipts := state.NewReceipts(db)

	node, err := buildEngines(cfg, manager, token, custody, receipts, emitter)
	if err != nil {
		logger.Error("Failed to assemble engines", slog.Any("error", err))
		os.Exit(1)
	}

	if err := seedPauses(cfg, manager); err != nil {
		logger.Error("Failed to seed pause state", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(rpc.Deps{
		Staking:         node.staking,
		Colonies:        node.colonies,
		Infusion:        node.infusion,
		Pauses:          manager,
		Logger:          logger,
		AuthToken:       os.Getenv(cfg.AuthTokenEnv),
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// engineSet bundles the assembled engines handed to the RPC server.
type engineSet struct {
	staking  *stake.Engine
	colonies *colony.Registry
	infusion *infusion.Engine
}

func buildEngines(cfg *config.Config, manager *state.Manager, token *state.TokenLedger, custody *state.Custody, receipts *state.Receipts, emitter events.Emitter) (*engineSet, error) {
	feeOperator, err := cfg.FeeOperator()
	if err != nil {
		return nil, fmt.Errorf("fee operator: %w", err)
	}
	feeConfigs, err := cfg.FeeConfigs()
	if err != nil {
		return nil, fmt.Errorf("fee configs: %w", err)
	}
	collector := fees.NewCollector()
	collector.SetToken(token)
	collector.SetOperator(feeOperator)
	collector.SetEmitter(emitter)
	for op, feeCfg := range feeConfigs {
		collector.SetConfig(op, feeCfg)
	}

	dailyCap, treasury, err := cfg.IssuanceLimits()
	if err != nil {
		return nil, fmt.Errorf("issuance limits: %w", err)
	}
	limiter := issuance.NewLimiter()
	limiter.SetState(manager)
	limiter.SetToken(token)
	limiter.SetMinter(token)
	limiter.SetTreasury(treasury)
	limiter.SetOperator(feeOperator)
	limiter.SetDailyCap(dailyCap)
	limiter.SetEmitter(emitter)

	colonies := colony.NewRegistry()
	colonies.SetState(manager)
	colonies.SetEmitter(emitter)
	colonies.SetPauseView(manager)
	colonies.SetCustodian(custody)
	colonies.SetForceOverride(cfg.Colony.ForceOverride)
	if cfg.Colony.RepairBudget > 0 {
		colonies.SetRepairBudget(int(cfg.Colony.RepairBudget))
	}

	stakeCfg, err := cfg.StakeConfig()
	if err != nil {
		return nil, fmt.Errorf("staking config: %w", err)
	}
	staking := stake.NewEngine()
	staking.SetConfig(stakeCfg)
	staking.SetState(manager)
	staking.SetEmitter(emitter)
	staking.SetPauseView(manager)
	staking.SetCustodian(custody)
	staking.SetCustody(custodyVault)
	staking.SetColonyHook(colonies)
	staking.SetFeeCharger(collector)
	staking.SetIssuer(limiter)
	staking.SetReceiptToken(receipts)

	infusionCfg, err := cfg.InfusionConfig()
	if err != nil {
		return nil, fmt.Errorf("infusion config: %w", err)
	}
	infuser := infusion.NewEngine()
	infuser.SetConfig(*infusionCfg)
	infuser.SetState(manager)
	infuser.SetPositions(staking)
	infuser.SetToken(token)
	infuser.SetCollector(collector)
	infuser.SetIssuer(limiter)
	infuser.SetBalanceAdjuster(staking)
	infuser.SetVault(infusionVault)
	infuser.SetPauseView(manager)
	infuser.SetEmitter(emitter)

	return &engineSet{staking: staking, colonies: colonies, infusion: infuser}, nil
}

// Module accounts. Custody holds staked tokens, the vault holds infusion
// deposits; neither has a private key.
var (
	custodyVault  = moduleAddress("hivestake/custody")
	infusionVault = moduleAddress("hivestake/vault")
)

func moduleAddress(label string) [20]byte {
	hash := ethcrypto.Keccak256([]byte(label))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

func seedPauses(cfg *config.Config, manager *state.Manager) error {
	toggles := map[string]bool{
		"staking":  cfg.Pauses.Staking,
		"infusion": cfg.Pauses.Infusion,
		"colony":   cfg.Pauses.Colony,
	}
	for module, paused := range toggles {
		if !paused {
			continue
		}
		if err := manager.SetPaused(module, true); err != nil {
			return err
		}
	}
	return nil
}
