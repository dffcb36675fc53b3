package tezosNode

import (
	"context"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
)

// INodeClient is the subset of the node RPC used to submit manager
// operations. Every method fails with *TransportError when the call fails.
type INodeClient interface {
	GetVersion(ctx context.Context) (*VersionInfo, error)
	GetConstants(ctx context.Context) (*Constants, error)
	GetProtocols(ctx context.Context) (*ProtocolInfo, error)
	GetHeadHash(ctx context.Context) (crypto.BlockHash, error)
	GetChainID(ctx context.Context) (crypto.ChainID, error)

	// GetCounter returns the current on-chain counter of address. The next
	// operation must use counter + 1.
	GetCounter(ctx context.Context, address crypto.Address) (uint64, error)
	// GetManagerKey returns nil when the account has not been revealed.
	GetManagerKey(ctx context.Context, address crypto.Address) (*crypto.PublicKey, error)
	GetBalance(ctx context.Context, address crypto.Address) (uint64, error)

	ForgeOperations(ctx context.Context, group *operation.OperationGroup) ([]byte, error)
	PreapplyOperations(
		ctx context.Context,
		protocol crypto.ProtocolHash,
		group *operation.OperationGroup,
		signature crypto.Signature,
	) ([]PreapplyResult, error)
	// InjectOperation submits the hex encoded signed operation.
	InjectOperation(ctx context.Context, signedHex string) (crypto.OperationHash, error)
	GetPendingOperationStatus(ctx context.Context, hash crypto.OperationHash) (PendingStatus, error)
}
