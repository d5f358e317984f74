package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	pg "github.com/code-payments/square-program/pkg/database/postgres"
	"github.com/code-payments/square-program/pkg/metrics"
	"github.com/code-payments/square-program/pkg/osutil"
	"github.com/code-payments/square-program/pkg/solana"
	"github.com/code-payments/square-program/pkg/solana/runtime"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts/cache"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts/memory"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts/postgres"
	"github.com/code-payments/square-program/pkg/solana/square"
)

const (
	appName = "square-client"

	// Covers a handful of transaction fees on top of the account's rent.
	feeHeadroom = 100_000

	maxCacheMemoryFraction = 0.25
)

var (
	local    = flag.Bool("local", false, "run against an in-process bank with the square program deployed")
	logLevel = flag.String("log-level", "info", "log level")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <ping|get>\n\n", appName)
	fmt.Fprintln(flag.CommandLine.Output(), "  ping\tcreate the square account if needed, then increment it")
	fmt.Fprintln(flag.CommandLine.Output(), "  get\tprint the current square")
	fmt.Fprintln(flag.CommandLine.Output())
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	configureLogger(*logLevel)
	log := logrus.StandardLogger().WithField("type", "cmd/square-client")

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf := withEnvConfigs()

	if licenseKey := conf.newRelicLicenseKey.Get(ctx); licenseKey != "" {
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(appName),
			newrelic.ConfigLicense(licenseKey),
		)
		if err != nil {
			log.WithError(err).Error("error connecting to new relic")
			os.Exit(1)
		}
		defer app.Shutdown(5 * time.Second)

		ctx = metrics.NewContext(ctx, app)
	}

	if err := run(ctx, conf, flag.Arg(0)); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, conf *conf, command string) error {
	client, err := newClient(ctx, conf)
	if err != nil {
		return err
	}
	return execute(ctx, conf, client, command)
}

func execute(ctx context.Context, conf *conf, client *square.Client, command string) error {
	seed := conf.accountSeed.Get(ctx)
	space := conf.accountSpace.Get(ctx)

	fmt.Printf("Program: %s\n", base58.Encode(client.Program()))
	fmt.Printf("Payer:   %s\n", base58.Encode(client.Payer()))

	switch command {
	case "ping":
		return ping(ctx, client, seed, space)
	case "get":
		account, err := solana.CreateWithSeed(client.Payer(), seed, client.Program())
		if err != nil {
			return errors.Wrap(err, "failed to derive account address")
		}
		return printSquare(ctx, client, account)
	default:
		return errors.Errorf("unknown command %q", command)
	}
}

func ping(ctx context.Context, client *square.Client, seed string, space uint64) error {
	balance, err := client.EnsureFunded(ctx, runtime.MinimumBalanceForRentExemption(space)+feeHeadroom)
	if err != nil {
		return err
	}
	fmt.Printf("Balance: %d lamports\n", balance)

	account, created, err := client.ConfigureAccount(ctx, seed, space)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Created account %s\n", base58.Encode(account))
	}

	result, err := client.Ping(ctx, account)
	if err != nil {
		return errors.Wrap(err, "ping failed")
	}

	fmt.Printf("Ping %s confirmed in slot %d\n", result.Signature, result.Slot)
	for _, line := range result.Logs {
		fmt.Printf("  %s\n", line)
	}

	return printSquare(ctx, client, account)
}

func printSquare(ctx context.Context, client *square.Client, account ed25519.PublicKey) error {
	record, err := client.GetSquare(ctx, account)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", base58.Encode(account))
	}

	fmt.Printf("Square of %s is %d\n", base58.Encode(account), record.Square)
	return nil
}

func newClient(ctx context.Context, conf *conf) (*square.Client, error) {
	if *local {
		store, err := newAccountStore(ctx, conf)
		if err != nil {
			return nil, err
		}
		return newLocalClient(ctx, conf, store)
	}

	cliConfig, err := solana.LoadCLIConfig(conf.cliConfigPath.Get(ctx))
	if err != nil {
		return nil, err
	}

	endpoint := conf.rpcEndpoint.Get(ctx)
	if endpoint == "" {
		endpoint = cliConfig.JSONRPCURL
	}

	payer, err := solana.LoadKeypair(cliConfig.KeypairPath)
	if err != nil {
		return nil, err
	}

	program, err := solana.LoadKeypair(conf.programKeypairPath.Get(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "program keypair not found, has the program been deployed?")
	}

	logrus.StandardLogger().WithField("endpoint", endpoint).Debug("using cluster")

	return square.NewClient(
		solana.New(endpoint),
		payer,
		program.Public().(ed25519.PublicKey),
		square.WithEnvConfigs(),
	), nil
}

// newLocalClient deploys the program to an in-process bank over store. The
// payer is the CLI config's keypair and the program id comes from the program
// keypair. Missing keypair files are generated and written, so runs sharing a
// durable store keep addressing the same square account.
func newLocalClient(ctx context.Context, conf *conf, store accounts.Store) (*square.Client, error) {
	bank, err := runtime.NewBank(ctx, store, runtime.WithEnvConfigs())
	if err != nil {
		return nil, err
	}

	program, err := loadOrCreateKeypair(conf.programKeypairPath.Get(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load program keypair")
	}
	programID := program.Public().(ed25519.PublicKey)

	if err := bank.Deploy(ctx, programID, "square", square.ProcessInstruction); err != nil {
		return nil, err
	}

	payerPath, err := localPayerPath(ctx, conf)
	if err != nil {
		return nil, err
	}
	payer, err := loadOrCreateKeypair(payerPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load payer keypair")
	}

	return square.NewClient(bank, payer, programID, square.WithEnvConfigs()), nil
}

func localPayerPath(ctx context.Context, conf *conf) (string, error) {
	cliConfig, err := solana.LoadCLIConfig(conf.cliConfigPath.Get(ctx))
	if err == nil {
		return cliConfig.KeypairPath, nil
	}

	home, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return "", errors.Wrap(homeErr, "failed to resolve home directory")
	}

	logrus.StandardLogger().WithError(err).Debug("cli config unavailable, using the default keypair")
	return filepath.Join(home, solana.DefaultKeypairPath), nil
}

// loadOrCreateKeypair reads the keypair at path, generating and saving a new
// one only when the file doesn't exist.
func loadOrCreateKeypair(path string) (ed25519.PrivateKey, error) {
	key, err := solana.LoadKeypair(path)
	if err == nil {
		return key, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	_, key, err = ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}

	raw, err := solana.MarshalKeypair(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, errors.Wrapf(err, "failed to write keypair %s", path)
	}

	logrus.StandardLogger().WithFields(logrus.Fields{
		"path":   path,
		"pubkey": base58.Encode(key.Public().(ed25519.PublicKey)),
	}).Info("generated keypair")
	return key, nil
}

func newAccountStore(ctx context.Context, conf *conf) (accounts.Store, error) {
	dsn := conf.databaseURL.Get(ctx)
	if dsn == "" {
		return memory.New(), nil
	}

	db, err := pg.Open(dsn, 0, 0)
	if err != nil {
		return nil, err
	}

	budget := conf.accountCacheBudget.Get(ctx)
	if limit := osutil.FractionOfMemory(maxCacheMemoryFraction); budget > limit {
		logrus.StandardLogger().WithFields(logrus.Fields{
			"budget": budget,
			"limit":  limit,
		}).Warn("account cache budget exceeds available memory, clamping")
		budget = limit
	}

	return cache.New(postgres.New(db), int(budget)), nil
}

func configureLogger(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", level).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(parsed)
	}

	logrus.SetOutput(os.Stderr)
}
