package main

import (
	"github.com/code-payments/square-program/pkg/config"
	"github.com/code-payments/square-program/pkg/config/env"
)

const (
	envConfigPrefix = "SQUARE_"

	RPCEndpointConfigEnvName = envConfigPrefix + "RPC_ENDPOINT"
	defaultRPCEndpoint       = ""

	CLIConfigPathConfigEnvName = envConfigPrefix + "CLI_CONFIG_PATH"
	defaultCLIConfigPath       = ""

	ProgramKeypairPathConfigEnvName = envConfigPrefix + "PROGRAM_KEYPAIR_PATH"
	defaultProgramKeypairPath       = "dist/program/square-keypair.json"

	AccountSeedConfigEnvName = envConfigPrefix + "ACCOUNT_SEED"
	defaultAccountSeed       = "test1"

	AccountSpaceConfigEnvName = envConfigPrefix + "ACCOUNT_SPACE"
	defaultAccountSpace       = 4

	DatabaseURLConfigEnvName = envConfigPrefix + "DATABASE_URL"
	defaultDatabaseURL       = ""

	AccountCacheBudgetConfigEnvName = envConfigPrefix + "ACCOUNT_CACHE_BUDGET"
	defaultAccountCacheBudget       = 1 << 20

	NewRelicLicenseKeyConfigEnvName = envConfigPrefix + "NEW_RELIC_LICENSE_KEY"
	defaultNewRelicLicenseKey       = ""
)

type conf struct {
	rpcEndpoint        config.String
	cliConfigPath      config.String
	programKeypairPath config.String
	accountSeed        config.String
	accountSpace       config.Uint64
	databaseURL        config.String
	accountCacheBudget config.Uint64
	newRelicLicenseKey config.String
}

func withEnvConfigs() *conf {
	return &conf{
		rpcEndpoint:        env.NewStringConfig(RPCEndpointConfigEnvName, defaultRPCEndpoint),
		cliConfigPath:      env.NewStringConfig(CLIConfigPathConfigEnvName, defaultCLIConfigPath),
		programKeypairPath: env.NewStringConfig(ProgramKeypairPathConfigEnvName, defaultProgramKeypairPath),
		accountSeed:        env.NewStringConfig(AccountSeedConfigEnvName, defaultAccountSeed),
		accountSpace:       env.NewUint64Config(AccountSpaceConfigEnvName, defaultAccountSpace),
		databaseURL:        env.NewStringConfig(DatabaseURLConfigEnvName, defaultDatabaseURL),
		accountCacheBudget: env.NewUint64Config(AccountCacheBudgetConfigEnvName, defaultAccountCacheBudget),
		newRelicLicenseKey: env.NewStringConfig(NewRelicLicenseKeyConfigEnvName, defaultNewRelicLicenseKey),
	}
}
