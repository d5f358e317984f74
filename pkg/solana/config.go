package solana

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Environment string

const (
	EnvironmentDev   Environment = "https://api.devnet.solana.com"
	EnvironmentTest  Environment = "https://api.testnet.solana.com"
	EnvironmentProd  Environment = "https://api.mainnet-beta.solana.com"
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
)

// DefaultCLIConfigPath is where the Solana CLI keeps its config file,
// relative to the user's home directory.
var DefaultCLIConfigPath = filepath.Join(".config", "solana", "cli", "config.yml")

// DefaultKeypairPath is the CLI's default fee payer keypair, relative to the
// user's home directory.
var DefaultKeypairPath = filepath.Join(".config", "solana", "id.json")

// CLIConfig is the subset of the Solana CLI config file used to reach a
// cluster.
type CLIConfig struct {
	JSONRPCURL  string
	KeypairPath string
	Commitment  Commitment
}

// LoadCLIConfig reads a Solana CLI config file. An empty path resolves to
// DefaultCLIConfigPath under the home directory. Missing fields fall back
// to devnet, the default keypair location and confirmed commitment.
func LoadCLIConfig(path string) (*CLIConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve home directory")
	}

	if path == "" {
		path = filepath.Join(home, DefaultCLIConfigPath)
	}
	path = expandHome(path, home)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("json_rpc_url", string(EnvironmentDev))
	v.SetDefault("keypair_path", filepath.Join(home, DefaultKeypairPath))
	v.SetDefault("commitment", confirmationStatusConfirmed)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read cli config %s", path)
	}

	return &CLIConfig{
		JSONRPCURL:  v.GetString("json_rpc_url"),
		KeypairPath: expandHome(v.GetString("keypair_path"), home),
		Commitment:  CommitmentFromString(v.GetString("commitment")),
	}, nil
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
