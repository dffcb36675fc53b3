package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the client
const (
	EnvNodeURL           = "TEZOS_NODE_URL"
	EnvChain             = "TEZOS_CHAIN"
	EnvPollInterval      = "TEZOS_POLL_INTERVAL"
	EnvMaxPollAttempts   = "TEZOS_MAX_POLL_ATTEMPTS"
	EnvRequestsPerSecond = "TEZOS_REQUESTS_PER_SECOND"
	EnvPersistenceType   = "TEZOS_PERSISTENCE_TYPE"
	EnvDataPath          = "TEZOS_DATA_PATH"
	EnvRedisAddress      = "TEZOS_REDIS_ADDRESS"
	EnvRedisPassword     = "TEZOS_REDIS_PASSWORD"
	EnvKeystorePassword  = "TEZOS_KEYSTORE_PASSWORD"
	EnvSigner            = "TEZOS_SIGNER"
	EnvKMSKeyID          = "TEZOS_KMS_KEY_ID"
	EnvKMSRegion         = "TEZOS_KMS_REGION"
	EnvMetricsAddress    = "TEZOS_METRICS_ADDRESS"
	EnvVerbose           = "TEZOS_VERBOSE"
)

const (
	DefaultNodeURL           = "http://localhost:8732"
	DefaultPollInterval      = 2 * time.Second
	DefaultMaxPollAttempts   = 10
	DefaultRequestsPerSecond = 10
	DefaultRequestTimeout    = 30 * time.Second
)

type ChainName string

const (
	ChainName_Mainnet  ChainName = "mainnet"
	ChainName_Ghostnet ChainName = "ghostnet"
	// ChainName_Sandbox accepts whatever chain the node reports.
	ChainName_Sandbox ChainName = "sandbox"
)

var ChainNameToId = map[ChainName]string{
	ChainName_Mainnet:  "NetXdQprcVkpaWU",
	ChainName_Ghostnet: "NetXnHfVqm9iesp",
}

// GetSupportedChainNames returns the chain names the client knows.
func GetSupportedChainNames() []ChainName {
	return []ChainName{ChainName_Mainnet, ChainName_Ghostnet, ChainName_Sandbox}
}

// ExpectedChainID returns the chain id submissions must target, or nil when
// any chain is accepted.
func ExpectedChainID(name ChainName) (*crypto.ChainID, error) {
	if name == ChainName_Sandbox {
		return nil, nil
	}
	encoded, ok := ChainNameToId[name]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %q", name)
	}
	id, err := crypto.ParseChainID(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid chain id for %s: %w", name, err)
	}
	return &id, nil
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type SignerType string

const (
	SignerType_Local SignerType = "local"
	SignerType_KMS   SignerType = "kms"
)

type PersistenceConfig struct {
	Type          PersistenceType `json:"type"`
	DataPath      string          `json:"dataPath"`
	RedisAddress  string          `json:"redisAddress"`
	RedisPassword string          `json:"redisPassword"`
	RedisDB       int             `json:"redisDb"`
}

// ClientConfig is everything the command line client needs to reach a node,
// sign and track submissions.
type ClientConfig struct {
	NodeURL string    `json:"nodeUrl"`
	Chain   ChainName `json:"chain"`

	PollInterval      time.Duration `json:"pollInterval"`
	MaxPollAttempts   int           `json:"maxPollAttempts"`
	RequestsPerSecond float64       `json:"requestsPerSecond"`
	RequestTimeout    time.Duration `json:"requestTimeout"`

	Persistence      PersistenceConfig `json:"persistence"`
	KeystorePassword string            `json:"-"`

	Signer    SignerType `json:"signer"`
	KMSKeyID  string     `json:"kmsKeyId"`
	KMSRegion string     `json:"kmsRegion"`

	MetricsAddress string `json:"metricsAddress"`
	Debug          bool   `json:"debug"`
	Verbose        bool   `json:"verbose"`
}

func NewDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		NodeURL:           DefaultNodeURL,
		Chain:             ChainName_Sandbox,
		PollInterval:      DefaultPollInterval,
		MaxPollAttempts:   DefaultMaxPollAttempts,
		RequestsPerSecond: DefaultRequestsPerSecond,
		RequestTimeout:    DefaultRequestTimeout,
		Persistence:       PersistenceConfig{Type: PersistenceType_Memory},
		Signer:            SignerType_Local,
	}
}

// Validate reports every problem at once.
func (c *ClientConfig) Validate() error {
	allErrors := append(c.validateNodeAccess(), c.validateSigner()...)
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ValidateReadOnly checks what read-only commands need: the node, polling
// and persistence settings, but not the signer.
func (c *ClientConfig) ValidateReadOnly() error {
	if allErrors := c.validateNodeAccess(); len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (c *ClientConfig) validateNodeAccess() field.ErrorList {
	var allErrors field.ErrorList

	if c.NodeURL == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("nodeUrl"), "node url is required"))
	} else if u, err := url.Parse(c.NodeURL); err != nil || u.Scheme == "" || u.Host == "" {
		allErrors = append(allErrors, field.Invalid(field.NewPath("nodeUrl"), c.NodeURL, "must be an absolute http(s) url"))
	}

	if _, err := ExpectedChainID(c.Chain); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chain"), c.Chain, chainNames()))
	}

	if c.PollInterval <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("pollInterval"), c.PollInterval.String(), "must be positive"))
	}
	if c.MaxPollAttempts < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxPollAttempts"), c.MaxPollAttempts, "must be at least 1"))
	}
	if c.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), c.RequestsPerSecond, "must not be negative"))
	}

	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)
	return allErrors
}

func (c *ClientConfig) validateSigner() field.ErrorList {
	var allErrors field.ErrorList
	switch c.Signer {
	case SignerType_Local:
		if c.KeystorePassword == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("keystorePassword"), "keystore password is required for the local signer"))
		}
	case SignerType_KMS:
		if c.KMSKeyID == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("kmsKeyId"), "kms key id is required for the kms signer"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("signer"), c.Signer,
			[]string{string(SignerType_Local), string(SignerType_KMS)}))
	}
	return allErrors
}

func (p *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch p.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if p.DataPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataPath"), "data path is required for badger"))
		}
	case PersistenceType_Redis:
		if p.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redis address is required for redis"))
		}
		if p.RedisDB < 0 || p.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDb"), p.RedisDB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), p.Type, []string{
			string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis),
		}))
	}
	return allErrors
}

func chainNames() []string {
	names := GetSupportedChainNames()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
