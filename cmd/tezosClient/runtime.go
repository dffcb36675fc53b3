package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalAws "github.com/Layr-Labs/tezos-client-go/internal/aws"
	"github.com/Layr-Labs/tezos-client-go/internal/keyGenerator"
	"github.com/Layr-Labs/tezos-client-go/internal/keyGenerator/awsKms"
	"github.com/Layr-Labs/tezos-client-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/tezos-client-go/pkg/clients/tezosNode"
	"github.com/Layr-Labs/tezos-client-go/pkg/config"
	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/keystore"
	"github.com/Layr-Labs/tezos-client-go/pkg/logger"
	"github.com/Layr-Labs/tezos-client-go/pkg/metrics"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/awsKmsSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/operationSigner/localSigner"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence/badger"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence/memory"
	"github.com/Layr-Labs/tezos-client-go/pkg/persistence/redis"
	"github.com/Layr-Labs/tezos-client-go/pkg/submission"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// environment holds everything one command invocation uses.
type environment struct {
	cfg    *config.ClientConfig
	logger *zap.Logger
	store  persistence.IClientPersistence
	node   *tezosNode.Client

	keystore *keystore.Keystore
	kms      *awsKmsSigner.AWSKMSSigner
	signer   operationSigner.IOperationSigner

	verifyForge bool
	lightKDF    bool

	registry      *prometheus.Registry
	metricsServer *metrics.Server
}

func parseClientConfig(c *cli.Context) *config.ClientConfig {
	return &config.ClientConfig{
		NodeURL:           c.String("node-url"),
		Chain:             config.ChainName(c.String("chain")),
		PollInterval:      c.Duration("poll-interval"),
		MaxPollAttempts:   c.Int("max-poll-attempts"),
		RequestsPerSecond: c.Float64("requests-per-second"),
		RequestTimeout:    c.Duration("request-timeout"),
		Persistence: config.PersistenceConfig{
			Type:          config.PersistenceType(c.String("persistence")),
			DataPath:      c.String("data-path"),
			RedisAddress:  c.String("redis-address"),
			RedisPassword: c.String("redis-password"),
			RedisDB:       c.Int("redis-db"),
		},
		KeystorePassword: c.String("keystore-password"),
		Signer:           config.SignerType(c.String("signer")),
		KMSKeyID:         c.String("kms-key-id"),
		KMSRegion:        c.String("kms-region"),
		MetricsAddress:   c.String("metrics-address"),
		Debug:            c.Bool("verbose"),
		Verbose:          c.Bool("verbose"),
	}
}

// newEnvironment wires the stores, node client and, when withSigner is set,
// the signer selected by the configuration.
func newEnvironment(c *cli.Context, withSigner bool) (*environment, error) {
	cfg := parseClientConfig(c)
	validate := cfg.ValidateReadOnly
	if withSigner {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	env := &environment{cfg: cfg, logger: l, verifyForge: c.Bool("verify-forge"), lightKDF: c.Bool("light-kdf")}

	env.store, err = openStore(&cfg.Persistence, l)
	if err != nil {
		env.Close()
		return nil, err
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = -1
	}
	env.node, err = tezosNode.NewClient(&tezosNode.ClientConfig{
		BaseURL:           cfg.NodeURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: rps,
	}, l)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to create node client: %w", err)
	}

	if withSigner {
		if err := env.initSigner(c.Context); err != nil {
			env.Close()
			return nil, err
		}
	}

	if cfg.MetricsAddress != "" {
		env.registry = prometheus.NewRegistry()
		env.metricsServer = metrics.NewServer(cfg.MetricsAddress, env.registry, l)
		go func() {
			if err := env.metricsServer.Start(); err != nil {
				l.Sugar().Errorw("Metrics server stopped", "error", err)
			}
		}()
	}
	return env, nil
}

func openStore(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.IClientPersistence, error) {
	switch cfg.Type {
	case config.PersistenceType_Badger:
		store, err := badger.NewBadgerPersistence(cfg.DataPath, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, nil
	case config.PersistenceType_Redis:
		store, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return store, nil
	default:
		return memory.NewMemoryPersistence(), nil
	}
}

func (env *environment) openKeystore() (*keystore.Keystore, error) {
	if env.keystore != nil {
		return env.keystore, nil
	}
	if env.cfg.KeystorePassword == "" {
		return nil, errors.New("keystore password is required")
	}
	ksCfg := &keystore.KeystoreConfig{Password: env.cfg.KeystorePassword}
	if env.lightKDF {
		ksCfg.Scrypt = keystore.LightScryptParams()
	}
	ks, err := keystore.NewKeystore(env.store, ksCfg, env.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}
	env.keystore = ks
	return ks, nil
}

func (env *environment) initSigner(ctx context.Context) error {
	switch env.cfg.Signer {
	case config.SignerType_KMS:
		awsCfg, err := internalAws.LoadAWSConfig(ctx, env.cfg.KMSRegion)
		if err != nil {
			return fmt.Errorf("failed to load aws config: %w", err)
		}
		if err := internalAws.VerifyCredentials(ctx, sts.NewFromConfig(awsCfg), env.logger); err != nil {
			return err
		}
		env.kms, err = awsKmsSigner.NewAWSKMSSignerFromConfig(awsCfg, env.cfg.KMSKeyID, env.logger)
		if err != nil {
			return fmt.Errorf("failed to create kms signer: %w", err)
		}
		env.signer = env.kms
	default:
		ks, err := env.openKeystore()
		if err != nil {
			return err
		}
		env.signer = localSigner.NewLocalSigner(ks, env.logger)
	}
	return nil
}

const (
	backendLocal = "local"
	backendKMS   = "kms"
)

// keyGenerator returns the provisioner for backend. KMS keys are tagged with
// the configured chain.
func (env *environment) keyGenerator(ctx context.Context, backend string) (keyGenerator.IKeyGenerator, error) {
	switch backend {
	case backendKMS:
		awsCfg, err := internalAws.LoadAWSConfig(ctx, env.cfg.KMSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		if err := internalAws.VerifyCredentials(ctx, sts.NewFromConfig(awsCfg), env.logger); err != nil {
			return nil, err
		}
		return awsKms.NewAWSKMSKeyGeneratorFromConfig(awsCfg, string(env.cfg.Chain), env.logger), nil
	case backendLocal, "":
		ks, err := env.openKeystore()
		if err != nil {
			return nil, err
		}
		return localKeyGenerator.NewLocalKeyGenerator(ks, env.logger), nil
	default:
		return nil, fmt.Errorf("unknown key backend %q", backend)
	}
}

// source returns --from, or the kms key's address when it is omitted.
func (env *environment) source(c *cli.Context) (string, error) {
	if from := c.String("from"); from != "" {
		return from, nil
	}
	if env.kms == nil {
		return "", errors.New("--from is required")
	}
	addr, err := env.kms.Address(c.Context)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

func (env *environment) pipeline() (*submission.Pipeline, error) {
	cfg := submission.DefaultConfig()
	cfg.PollInterval = env.cfg.PollInterval
	cfg.MaxPollAttempts = env.cfg.MaxPollAttempts
	cfg.VerifyForge = env.verifyForge
	cfg.Store = env.store
	if env.registry != nil {
		cfg.Metrics = metrics.NewSubmissionMetrics(env.registry)
	}
	expected, err := config.ExpectedChainID(env.cfg.Chain)
	if err != nil {
		return nil, err
	}
	cfg.ExpectedChainID = expected
	return submission.NewPipeline(env.node, env.signer, cfg, env.logger)
}

func (env *environment) Close() {
	if env.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = env.metricsServer.Shutdown(ctx)
		cancel()
	}
	if env.store != nil {
		if err := env.store.Close(); err != nil {
			env.logger.Sugar().Warnw("Failed to close store", "error", err)
		}
	}
	_ = env.logger.Sync()
}

func parseAddressFlag(c *cli.Context, name string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(c.String(name))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return addr, nil
}
