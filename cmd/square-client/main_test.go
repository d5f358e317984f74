package main

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts/memory"
	"github.com/code-payments/square-program/pkg/testutil"
)

// setupLocal points the CLI config and program keypair at a temporary
// directory and returns the payer and program keypair paths.
func setupLocal(t *testing.T) (payerPath, programPath string) {
	dir := t.TempDir()
	payerPath = filepath.Join(dir, "id.json")
	programPath = filepath.Join(dir, "program", "square-keypair.json")

	cliConfigPath := filepath.Join(dir, "config.yml")
	contents := "json_rpc_url: http://127.0.0.1:8899\nkeypair_path: " + payerPath + "\n"
	require.NoError(t, os.WriteFile(cliConfigPath, []byte(contents), 0o600))

	t.Setenv(CLIConfigPathConfigEnvName, cliConfigPath)
	t.Setenv(ProgramKeypairPathConfigEnvName, programPath)
	t.Setenv(DatabaseURLConfigEnvName, "")

	return payerPath, programPath
}

func useLocal(t *testing.T) {
	previous := *local
	*local = true
	t.Cleanup(func() { *local = previous })
}

func TestLocalClient_ReusesKeys(t *testing.T) {
	ctx := context.Background()
	payerPath, programPath := setupLocal(t)
	conf := withEnvConfigs()
	store := memory.New()

	first, err := newLocalClient(ctx, conf, store)
	require.NoError(t, err)
	require.NoError(t, execute(ctx, conf, first, "ping"))

	payer, err := solana.LoadKeypair(payerPath)
	require.NoError(t, err)
	assert.Equal(t, payer.Public().(ed25519.PublicKey), first.Payer())

	program, err := solana.LoadKeypair(programPath)
	require.NoError(t, err)
	assert.Equal(t, program.Public().(ed25519.PublicKey), first.Program())

	// A later run over the same store addresses the same account.
	second, err := newLocalClient(ctx, conf, store)
	require.NoError(t, err)
	assert.Equal(t, first.Payer(), second.Payer())
	assert.Equal(t, first.Program(), second.Program())
	require.NoError(t, execute(ctx, conf, second, "get"))

	account, err := solana.CreateWithSeed(second.Payer(), defaultAccountSeed, second.Program())
	require.NoError(t, err)
	record, err := second.GetSquare(ctx, account)
	require.NoError(t, err)
	assert.EqualValues(t, 1, record.Square)

	require.NoError(t, execute(ctx, conf, second, "ping"))
	record, err = second.GetSquare(ctx, account)
	require.NoError(t, err)
	assert.EqualValues(t, 2, record.Square)
}

func TestLocalClient_LoadsExistingKeys(t *testing.T) {
	ctx := context.Background()
	payerPath, programPath := setupLocal(t)

	payer := testutil.GenerateSolanaKeypair(t)
	program := testutil.GenerateSolanaKeypair(t)
	for path, key := range map[string]ed25519.PrivateKey{payerPath: payer, programPath: program} {
		raw, err := solana.MarshalKeypair(key)
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
		require.NoError(t, os.WriteFile(path, raw, 0o600))
	}

	client, err := newLocalClient(ctx, withEnvConfigs(), memory.New())
	require.NoError(t, err)
	assert.Equal(t, payer.Public().(ed25519.PublicKey), client.Payer())
	assert.Equal(t, program.Public().(ed25519.PublicKey), client.Program())
}

func TestLoadOrCreateKeypair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "key.json")

	created, err := loadOrCreateKeypair(path)
	require.NoError(t, err)

	loaded, err := loadOrCreateKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, created, loaded)

	// A corrupt file is reported rather than replaced.
	require.NoError(t, os.WriteFile(path, []byte("not a keypair"), 0o600))
	_, err = loadOrCreateKeypair(path)
	assert.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a keypair", string(raw))
}

func TestRun_Local(t *testing.T) {
	ctx := context.Background()
	setupLocal(t)
	useLocal(t)
	conf := withEnvConfigs()

	require.NoError(t, run(ctx, conf, "ping"))

	err := run(ctx, conf, "square")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
