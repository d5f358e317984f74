package runtime

import (
	"github.com/code-payments/square-program/pkg/config"
	"github.com/code-payments/square-program/pkg/config/env"
	"github.com/code-payments/square-program/pkg/config/memory"
	"github.com/code-payments/square-program/pkg/config/wrapper"
)

const (
	envConfigPrefix = "SQUARE_"

	ComputeUnitLimitConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_LIMIT"
	defaultComputeUnitLimit       = 200_000

	LamportsPerSignatureConfigEnvName = envConfigPrefix + "LAMPORTS_PER_SIGNATURE"
	defaultLamportsPerSignature       = 5_000

	LogCostConfigEnvName = envConfigPrefix + "LOG_COST"
	defaultLogCost       = 100

	MaxAirdropLamportsConfigEnvName = envConfigPrefix + "MAX_AIRDROP_LAMPORTS"
	defaultMaxAirdropLamports       = 10_000_000_000

	AirdropsPerSecondConfigEnvName = envConfigPrefix + "AIRDROPS_PER_SECOND"
	defaultAirdropsPerSecond       = 10

	RecentBlockhashCapacityConfigEnvName = envConfigPrefix + "RECENT_BLOCKHASH_CAPACITY"
	defaultRecentBlockhashCapacity       = 150
)

type conf struct {
	computeUnitLimit        config.Uint64
	lamportsPerSignature    config.Uint64
	logCost                 config.Uint64
	maxAirdropLamports      config.Uint64
	airdropsPerSecond       config.Uint64
	recentBlockhashCapacity config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			computeUnitLimit:        env.NewUint64Config(ComputeUnitLimitConfigEnvName, defaultComputeUnitLimit),
			lamportsPerSignature:    env.NewUint64Config(LamportsPerSignatureConfigEnvName, defaultLamportsPerSignature),
			logCost:                 env.NewUint64Config(LogCostConfigEnvName, defaultLogCost),
			maxAirdropLamports:      env.NewUint64Config(MaxAirdropLamportsConfigEnvName, defaultMaxAirdropLamports),
			airdropsPerSecond:       env.NewUint64Config(AirdropsPerSecondConfigEnvName, defaultAirdropsPerSecond),
			recentBlockhashCapacity: env.NewUint64Config(RecentBlockhashCapacityConfigEnvName, defaultRecentBlockhashCapacity),
		}
	}
}

// TestOverrides pins config values for tests. Zero values keep defaults.
type TestOverrides struct {
	ComputeUnitLimit     uint64
	LamportsPerSignature uint64
	LogCost              uint64
	MaxAirdropLamports   uint64
	AirdropsPerSecond    uint64
}

// WithManualTestOverrides returns configuration backed by in memory values.
func WithManualTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			computeUnitLimit:        memoryUint64(overrides.ComputeUnitLimit, defaultComputeUnitLimit),
			lamportsPerSignature:    memoryUint64(overrides.LamportsPerSignature, defaultLamportsPerSignature),
			logCost:                 memoryUint64(overrides.LogCost, defaultLogCost),
			maxAirdropLamports:      memoryUint64(overrides.MaxAirdropLamports, defaultMaxAirdropLamports),
			airdropsPerSecond:       memoryUint64(overrides.AirdropsPerSecond, defaultAirdropsPerSecond),
			recentBlockhashCapacity: memoryUint64(0, defaultRecentBlockhashCapacity),
		}
	}
}

func memoryUint64(override, defaultValue uint64) config.Uint64 {
	if override == 0 {
		override = defaultValue
	}
	return wrapper.NewUint64Config(memory.NewConfig(override), defaultValue)
}
