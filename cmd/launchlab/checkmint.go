package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/launchpad"
	"solana-dao-lab/internal/solana"
	"solana-dao-lab/internal/token"
)

var errMintRejected = errors.New("mint would be rejected by initialize launch")

func newCheckMintCmd(a *app) *cobra.Command {
	var (
		mintArg     string
		daoArg      string
		launchArg   string
		rpcEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "check-mint",
		Short: "Check a cluster mint against the sale mint rules before launching",
		Long: `check-mint fetches --mint over RPC and reports every rule that launch
initialization would reject: mint authority must be the launch address, no
freeze authority, zero supply and 6 decimals.

Pass the launch address with --launch. --launch-dao is a shortcut that derives
the launch address from a DAO using this build's launchpad program id, so it
only matches launches of a cluster running that same program id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mint, err := domain.ParsePubkey(mintArg)
			if err != nil {
				return fmt.Errorf("--mint: %w", err)
			}
			launch, derived, err := resolveLaunch(launchArg, daoArg)
			if err != nil {
				return err
			}
			if derived {
				fmt.Fprintf(cmd.OutOrStdout(), "note     launch derived with launchpad program %s; pass --launch for a different deployment\n", launchpad.ProgramID)
			}

			endpoint := rpcEndpoint
			if endpoint == "" {
				endpoint = a.cfg.RPCEndpoint
			}
			if endpoint == "" {
				return errors.New("--rpc-endpoint (or rpc_endpoint in config) is required")
			}

			a.logger.Debug("checking mint",
				zap.String("mint", mint.String()),
				zap.String("launch", launch.String()),
				zap.String("rpc", endpoint),
			)
			reader := solana.NewRPCMintReader(solana.NewHTTPClient(endpoint))
			m, violations, err := checkMint(cmd.Context(), reader, mint, launch)
			if err != nil {
				return err
			}
			printMintCheck(cmd.OutOrStdout(), m, launch, violations)
			if len(violations) > 0 {
				return fmt.Errorf("%w: %d violation(s)", errMintRejected, len(violations))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&mintArg, "mint", "", "sale mint address (required)")
	flags.StringVar(&launchArg, "launch", "", "launch address the mint is checked against")
	flags.StringVar(&daoArg, "launch-dao", "", "DAO to derive the launch address from, using this build's launchpad program id")
	flags.StringVar(&rpcEndpoint, "rpc-endpoint", "", "Solana RPC endpoint (default from config)")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

// resolveLaunch returns the launch address to check against. derived is set
// when it comes from dao and the local launchpad.ProgramID.
func resolveLaunch(launchArg, daoArg string) (launch domain.Pubkey, derived bool, err error) {
	switch {
	case launchArg != "":
		if launch, err = domain.ParsePubkey(launchArg); err != nil {
			return domain.Pubkey{}, false, fmt.Errorf("--launch: %w", err)
		}
		return launch, false, nil
	case daoArg != "":
		dao, err := domain.ParsePubkey(daoArg)
		if err != nil {
			return domain.Pubkey{}, false, fmt.Errorf("--launch-dao: %w", err)
		}
		launch, _ = launchpad.LaunchAddress(dao)
		return launch, true, nil
	}
	return domain.Pubkey{}, false, errors.New("one of --launch or --launch-dao is required")
}

// checkMint reads mint and evaluates it as the sale mint of launch.
func checkMint(ctx context.Context, reader token.MintReader, mint, launch domain.Pubkey) (*domain.Mint, []error, error) {
	m, err := reader.GetMint(ctx, mint)
	if err != nil {
		return nil, nil, fmt.Errorf("read mint %s: %w", mint, err)
	}
	violations := launchpad.MintViolations(m, launch)
	if m.Decimals != launchpad.RequiredDecimals {
		violations = append(violations, fmt.Errorf("%w: mint %s has %d", launchpad.ErrInvalidMintDecimals, mint, m.Decimals))
	}
	return m, violations, nil
}

func printMintCheck(w io.Writer, m *domain.Mint, launch domain.Pubkey, violations []error) {
	fmt.Fprintf(w, "mint     %s\n", m.Address)
	fmt.Fprintf(w, "launch   %s\n", launch)
	fmt.Fprintf(w, "supply   %s\n", token.FormatAmount(m.Supply, m.Decimals))
	fmt.Fprintf(w, "decimals %d\n", m.Decimals)
	if len(violations) == 0 {
		fmt.Fprintln(w, "ok: mint can be used for this launch")
		return
	}
	for _, v := range violations {
		fmt.Fprintf(w, "FAIL: %v\n", v)
	}
}
