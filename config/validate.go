package config

import (
	"fmt"
	"strings"

	"hivestake/native/fees"
)

var knownFeeOps = map[string]bool{
	fees.OpClaim:            true,
	fees.OpUnstake:          true,
	fees.OpInfusionEntry:    true,
	fees.OpInfusionHarvest:  true,
	fees.OpInfusionReinvest: true,
	fees.OpInfusionWithdraw: true,
}

// ValidateConfig rejects configurations the node cannot run with. Parse
// errors in amounts and addresses surface here rather than at wiring time.
func ValidateConfig(c *Config) error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("node: RPCAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("node: DataDir required")
	}
	if c.RateLimitPerMin == 0 {
		return fmt.Errorf("node: RateLimitPerMin must be positive")
	}
	if _, err := c.StakeConfig(); err != nil {
		return err
	}
	if _, err := c.InfusionConfig(); err != nil {
		return err
	}
	if c.Infusion.APRCeiling != 0 && c.Infusion.BaseAPR > c.Infusion.APRCeiling {
		return fmt.Errorf("infusion: BaseAPR exceeds APRCeiling")
	}
	if _, err := c.FeeOperator(); err != nil {
		return err
	}
	feeConfigs, err := c.FeeConfigs()
	if err != nil {
		return err
	}
	for op := range feeConfigs {
		if !knownFeeOps[op] {
			return fmt.Errorf("fees: unknown operation %q", op)
		}
	}
	if _, _, err := c.IssuanceLimits(); err != nil {
		return err
	}
	return nil
}
