package main

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"github.com/Layr-Labs/tezos-client-go/pkg/submission"
	"github.com/urfave/cli/v2"
)

// exitTimedOut is the exit code of a submission that was injected but not
// seen included within the poll budget.
const exitTimedOut = 2

func transferCommand(c *cli.Context) error {
	env, err := newEnvironment(c, true)
	if err != nil {
		return err
	}
	defer env.Close()

	source, err := env.source(c)
	if err != nil {
		return err
	}
	pipeline, err := env.pipeline()
	if err != nil {
		return err
	}
	res, err := pipeline.Transfer(c.Context, &submission.TransferRequest{
		Source:       source,
		Destination:  c.String("to"),
		Amount:       c.String("amount"),
		Fee:          c.String("fee"),
		GasLimit:     c.Uint64("gas-limit"),
		StorageLimit: c.Uint64("storage-limit"),
	})
	return reportSubmission(c, res, err)
}

func delegateCommand(c *cli.Context) error {
	env, err := newEnvironment(c, true)
	if err != nil {
		return err
	}
	defer env.Close()

	source, err := env.source(c)
	if err != nil {
		return err
	}
	pipeline, err := env.pipeline()
	if err != nil {
		return err
	}
	res, err := pipeline.Delegate(c.Context, &submission.DelegationRequest{
		Source:   source,
		Delegate: c.String("delegate"),
		Fee:      c.String("fee"),
	})
	return reportSubmission(c, res, err)
}

func revealCommand(c *cli.Context) error {
	env, err := newEnvironment(c, true)
	if err != nil {
		return err
	}
	defer env.Close()

	source, err := env.source(c)
	if err != nil {
		return err
	}
	pipeline, err := env.pipeline()
	if err != nil {
		return err
	}
	res, err := pipeline.Reveal(c.Context, &submission.RevealRequest{
		Source: source,
		Fee:    c.String("fee"),
	})
	return reportSubmission(c, res, err)
}

// statusCommand resumes a stored submission by id, or polls a bare hash.
func statusCommand(c *cli.Context) error {
	id, hash := c.String("id"), c.String("hash")
	if (id == "") == (hash == "") {
		return errors.New("exactly one of --id or --hash is required")
	}

	env, err := newEnvironment(c, true)
	if err != nil {
		return err
	}
	defer env.Close()

	pipeline, err := env.pipeline()
	if err != nil {
		return err
	}
	var res *submission.Result
	if id != "" {
		res, err = pipeline.Resume(c.Context, id)
	} else {
		opHash, parseErr := crypto.ParseOperationHash(hash)
		if parseErr != nil {
			return fmt.Errorf("invalid --hash: %w", parseErr)
		}
		res, err = pipeline.AwaitConfirmation(c.Context, opHash)
	}
	return reportSubmission(c, res, err)
}

func submissionsCommand(c *cli.Context) error {
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	records, err := env.store.ListSubmissions()
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}
	for _, r := range records {
		fmt.Fprintf(c.App.Writer, "%s %s %s %s\n", r.ID, r.State, r.Source, r.OperationHash)
	}
	return nil
}

func nodeInfoCommand(c *cli.Context) error {
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	version, err := env.node.GetVersion(c.Context)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	chainID, err := env.node.GetChainID(c.Context)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	protocols, err := env.node.GetProtocols(c.Context)
	if err != nil {
		return fmt.Errorf("failed to get protocols: %w", err)
	}
	head, err := env.node.GetHeadHash(c.Context)
	if err != nil {
		return fmt.Errorf("failed to get head: %w", err)
	}
	constants, err := env.node.GetConstants(c.Context)
	if err != nil {
		return fmt.Errorf("failed to get constants: %w", err)
	}
	feeParams := constants.FeeParameters()

	w := c.App.Writer
	fmt.Fprintf(w, "version:    %d.%d (%s)\n", version.Version.Major, version.Version.Minor, version.NetworkVersion.ChainName)
	fmt.Fprintf(w, "chain id:   %s\n", chainID)
	fmt.Fprintf(w, "protocol:   %s\n", protocols.NextProtocol)
	fmt.Fprintf(w, "head:       %s\n", head)
	fmt.Fprintf(w, "gas limit:  %d per operation\n", constants.HardGasLimitPerOperation)
	fmt.Fprintf(w, "minimal fee: %d mutez + %d nanotez/byte + %d nanotez/gas\n",
		feeParams.MinimalFees, feeParams.MinimalNanotezPerByte, feeParams.MinimalNanotezPerGasUnit)
	return nil
}

func balanceCommand(c *cli.Context) error {
	addr, err := parseAddressFlag(c, "address")
	if err != nil {
		return err
	}
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	balance, err := env.node.GetBalance(c.Context, addr)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s\n", operation.FormatTez(balance))
	return nil
}

func keysImportCommand(c *cli.Context) error {
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	ks, err := env.openKeystore()
	if err != nil {
		return err
	}
	entry, err := ks.ImportString(c.String("secret"), c.String("label"))
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s\n", entry.Address)
	return nil
}

func keysGenerateCommand(c *cli.Context) error {
	curve, err := crypto.ParseCurve(c.String("curve"))
	if err != nil {
		return err
	}
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	gen, err := env.keyGenerator(c.Context, c.String("backend"))
	if err != nil {
		return err
	}
	key, err := gen.GenerateKey(c.Context, curve, c.String("name"), c.String("label"))
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s\n", key.Address)
	if c.String("backend") == backendKMS {
		fmt.Fprintf(c.App.ErrWriter, "kms key id: %s\n", key.KeyID)
	}
	return nil
}

// keysKMSInfoCommand prints the account and public key of an existing KMS key.
func keysKMSInfoCommand(c *cli.Context) error {
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	keyID := c.String("key-id")
	if keyID == "" {
		keyID = env.cfg.KMSKeyID
	}
	if keyID == "" {
		return errors.New("--key-id or --kms-key-id is required")
	}
	gen, err := env.keyGenerator(c.Context, backendKMS)
	if err != nil {
		return err
	}
	key, err := gen.GetKeyByID(c.Context, keyID)
	if err != nil {
		return fmt.Errorf("failed to read kms key: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s %s %s\n", key.Address, key.Curve(), key.PublicKey)
	return nil
}

func keysListCommand(c *cli.Context) error {
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	ks, err := env.openKeystore()
	if err != nil {
		return err
	}
	entries, err := ks.List()
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "%s %s %s %s\n", e.Address, e.Curve, e.PublicKey, e.Label)
	}
	return nil
}

func keysDeleteCommand(c *cli.Context) error {
	addr, err := parseAddressFlag(c, "address")
	if err != nil {
		return err
	}
	env, err := newEnvironment(c, false)
	if err != nil {
		return err
	}
	defer env.Close()

	ks, err := env.openKeystore()
	if err != nil {
		return err
	}
	return ks.Delete(addr)
}

// reportSubmission prints the operation hash on stdout and the outcome on
// stderr. A timeout exits with exitTimedOut so scripts can retry "status".
func reportSubmission(c *cli.Context, res *submission.Result, err error) error {
	if res == nil {
		return err
	}
	if !res.OperationHash.IsZero() {
		fmt.Fprintf(c.App.Writer, "%s\n", res.OperationHash)
	}
	fmt.Fprintf(c.App.ErrWriter, "submission %s: %s after %d polls\n", res.ID, res.State, res.Polls)
	for _, adj := range res.FeeAdjustments {
		fmt.Fprintf(c.App.ErrWriter, "raised %s fee from %s to %s tez\n",
			adj.Kind, operation.FormatTez(adj.From), operation.FormatTez(adj.To))
	}
	if submission.IsTimedOut(err) {
		return cli.Exit(fmt.Sprintf("not confirmed yet, run: status --id %s", res.ID), exitTimedOut)
	}
	return err
}
