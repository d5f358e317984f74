package square

import (
	"github.com/code-payments/square-program/pkg/config"
	"github.com/code-payments/square-program/pkg/config/env"
	"github.com/code-payments/square-program/pkg/config/memory"
	"github.com/code-payments/square-program/pkg/config/wrapper"
)

const (
	envConfigPrefix = "SQUARE_"

	AirdropLamportsConfigEnvName = envConfigPrefix + "AIRDROP_LAMPORTS"
	defaultAirdropLamports       = 1_000_000_000

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"
)

type conf struct {
	airdropLamports config.Uint64
	commitment      config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			airdropLamports: env.NewUint64Config(AirdropLamportsConfigEnvName, defaultAirdropLamports),
			commitment:      env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
		}
	}
}

type testOverrides struct {
	airdropLamports uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	airdropLamports := overrides.airdropLamports
	if airdropLamports == 0 {
		airdropLamports = defaultAirdropLamports
	}

	return func() *conf {
		return &conf{
			airdropLamports: wrapper.NewUint64Config(memory.NewConfig(airdropLamports), defaultAirdropLamports),
			commitment:      wrapper.NewStringConfig(memory.NewConfig(defaultCommitment), defaultCommitment),
		}
	}
}
