package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/tezos-client-go/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tezos-client",
		Usage: "Build, sign and submit Tezos manager operations",
		Description: `A command line client for Tezos nodes.

Each submission fetches fresh node state, forges the operation group,
signs it with a local keystore key or an AWS KMS key, preapplies and
injects it, then polls the mempool until the operation is included,
refused or the poll budget runs out. The operation hash is printed on
stdout; a timed out submission can be followed up with "status".`,
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "transfer",
				Usage: "Send tez to another account",
				Flags: append(sourceFlags(),
					&cli.StringFlag{Name: "to", Usage: "Destination address", Required: true},
					&cli.StringFlag{Name: "amount", Usage: "Amount in tez, e.g. 1.5", Required: true},
					&cli.Uint64Flag{Name: "gas-limit", Usage: "Gas limit (default 50000)"},
					&cli.Uint64Flag{Name: "storage-limit", Usage: "Storage limit (default: protocol maximum)"},
				),
				Action: transferCommand,
			},
			{
				Name:  "delegate",
				Usage: "Set or withdraw the delegate of an account",
				Flags: append(sourceFlags(),
					&cli.StringFlag{Name: "delegate", Usage: "Delegate address; omit to withdraw"},
				),
				Action: delegateCommand,
			},
			{
				Name:   "reveal",
				Usage:  "Publish the public key of an account",
				Flags:  sourceFlags(),
				Action: revealCommand,
			},
			{
				Name:  "status",
				Usage: "Wait for a previously injected operation",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Submission id from an earlier run"},
					&cli.StringFlag{Name: "hash", Usage: "Operation hash"},
				},
				Action: statusCommand,
			},
			{
				Name:   "submissions",
				Usage:  "List stored submissions",
				Action: submissionsCommand,
			},
			{
				Name:   "node-info",
				Usage:  "Show the node's version, chain and head",
				Action: nodeInfoCommand,
			},
			{
				Name:  "balance",
				Usage: "Show the balance of an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Usage: "Account address", Required: true},
				},
				Action: balanceCommand,
			},
			{
				Name:  "keys",
				Usage: "Manage keystore keys",
				Subcommands: []*cli.Command{
					{
						Name:  "import",
						Usage: "Import a base58 secret key (edsk/spsk/p2sk)",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "secret", Usage: "Secret key", Required: true},
							&cli.StringFlag{Name: "label", Usage: "Label for the key"},
						},
						Action: keysImportCommand,
					},
					{
						Name:  "generate",
						Usage: "Generate a new key",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "curve", Usage: "ed25519, secp256k1 or p256 (kms: secp256k1 or p256)", Value: "ed25519"},
							&cli.StringFlag{Name: "label", Usage: "Keystore label, or the KMS alias"},
							&cli.StringFlag{Name: "backend", Usage: "Where to create the key: local or kms", Value: backendLocal},
							&cli.StringFlag{Name: "name", Usage: "Name tag of a KMS key"},
						},
						Action: keysGenerateCommand,
					},
					{
						Name:  "kms-info",
						Usage: "Show the account controlled by a KMS key",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "key-id", Usage: "KMS key id or alias; defaults to --kms-key-id"},
						},
						Action: keysKMSInfoCommand,
					},
					{
						Name:   "list",
						Usage:  "List stored keys",
						Action: keysListCommand,
					},
					{
						Name:  "delete",
						Usage: "Delete a stored key",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "address", Usage: "Key address", Required: true},
						},
						Action: keysDeleteCommand,
					},
				},
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "node-url",
			Aliases: []string{"node"},
			Usage:   "Tezos node RPC url",
			Value:   config.DefaultNodeURL,
			EnvVars: []string{config.EnvNodeURL},
		},
		&cli.StringFlag{
			Name:    "chain",
			Usage:   fmt.Sprintf("Expected chain: %v", config.GetSupportedChainNames()),
			Value:   string(config.ChainName_Sandbox),
			EnvVars: []string{config.EnvChain},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "Wait before each mempool poll",
			Value:   config.DefaultPollInterval,
			EnvVars: []string{config.EnvPollInterval},
		},
		&cli.IntFlag{
			Name:    "max-poll-attempts",
			Usage:   "Mempool polls before giving up",
			Value:   config.DefaultMaxPollAttempts,
			EnvVars: []string{config.EnvMaxPollAttempts},
		},
		&cli.Float64Flag{
			Name:    "requests-per-second",
			Usage:   "Node request rate limit; 0 disables it",
			Value:   config.DefaultRequestsPerSecond,
			EnvVars: []string{config.EnvRequestsPerSecond},
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "Timeout for each node request",
			Value: config.DefaultRequestTimeout,
		},
		&cli.StringFlag{
			Name:    "persistence",
			Usage:   "Key and submission store: memory, badger or redis",
			Value:   string(config.PersistenceType_Memory),
			EnvVars: []string{config.EnvPersistenceType},
		},
		&cli.StringFlag{
			Name:    "data-path",
			Usage:   "Badger data directory",
			EnvVars: []string{config.EnvDataPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis host:port",
			EnvVars: []string{config.EnvRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvRedisPassword},
		},
		&cli.IntFlag{
			Name:  "redis-db",
			Usage: "Redis database number",
		},
		&cli.StringFlag{
			Name:    "keystore-password",
			Usage:   "Password protecting keystore keys",
			EnvVars: []string{config.EnvKeystorePassword},
		},
		&cli.BoolFlag{
			Name:  "light-kdf",
			Usage: "Use cheap scrypt parameters for newly stored keys (development only)",
		},
		&cli.StringFlag{
			Name:    "signer",
			Usage:   "Signer backend: local or kms",
			Value:   string(config.SignerType_Local),
			EnvVars: []string{config.EnvSigner},
		},
		&cli.StringFlag{
			Name:    "kms-key-id",
			Usage:   "AWS KMS key id or alias for the kms signer",
			EnvVars: []string{config.EnvKMSKeyID},
		},
		&cli.StringFlag{
			Name:    "kms-region",
			Usage:   "AWS region of the KMS key",
			EnvVars: []string{config.EnvKMSRegion},
		},
		&cli.BoolFlag{
			Name:  "verify-forge",
			Usage: "Compare the node's forged bytes with the local forger before signing",
		},
		&cli.StringFlag{
			Name:    "metrics-address",
			Usage:   "Serve prometheus metrics on this address while running",
			EnvVars: []string{config.EnvMetricsAddress},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable verbose logging",
			EnvVars: []string{config.EnvVerbose},
		},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "Source address; defaults to the kms key's address"},
		&cli.StringFlag{Name: "fee", Usage: "Fee in tez; estimated when omitted"},
	}
}
