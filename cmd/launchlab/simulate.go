package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-dao-lab/internal/autocrat"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/launchpad"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/timelock"
	"solana-dao-lab/internal/token"
)

// scenario parameterizes one simulated launch followed by a timelocked payout.
// Amounts are base units of 6-decimal mints.
type scenario struct {
	Commitments    []uint64
	MinimumRaise   uint64
	MaximumRaise   uint64
	SlotsForLaunch uint64
	TimelockDelay  uint64
	Payout         uint64
}

type funderReport struct {
	Funder    domain.Pubkey
	Committed uint64
	Allocated uint64
	Claimed   bool
	Refunded  bool
}

type scenarioReport struct {
	DAO             domain.Pubkey
	Treasury        domain.Pubkey
	Launch          domain.Pubkey
	Outcome         string
	Committed       uint64
	TreasuryBalance uint64
	Funders         []funderReport

	Timelock         domain.Pubkey
	Batch            domain.Pubkey
	EnqueuedSlot     uint64
	ExecutableAt     uint64
	ExecutedSlot     uint64
	EarlyExecuteErr  error
	RecipientBalance uint64
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		commits  []string
		minRaise string
		maxRaise string
		payout   string
		window   uint64
		delay    uint64
		start    uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a launch and a timelocked treasury payout end to end",
		Long: `simulate creates a DAO, a sale mint and a launch, commits the given
amounts from fresh funders, then finalizes or refunds once the window closes.
A timelock batch then pays --payout from a timelock-controlled account after
the configured delay. Storage follows the serve settings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := scenario{SlotsForLaunch: window, TimelockDelay: delay}
			var err error
			for _, c := range commits {
				amt, perr := token.ParseUIAmount(c, launchpad.RequiredDecimals)
				if perr != nil {
					return fmt.Errorf("--commit %q: %w", c, perr)
				}
				sc.Commitments = append(sc.Commitments, amt)
			}
			if sc.MinimumRaise, err = token.ParseUIAmount(minRaise, launchpad.RequiredDecimals); err != nil {
				return fmt.Errorf("--minimum-raise: %w", err)
			}
			if sc.MaximumRaise, err = token.ParseUIAmount(maxRaise, launchpad.RequiredDecimals); err != nil {
				return fmt.Errorf("--maximum-raise: %w", err)
			}
			if sc.Payout, err = token.ParseUIAmount(payout, launchpad.RequiredDecimals); err != nil {
				return fmt.Errorf("--payout: %w", err)
			}

			ctx := cmd.Context()
			s, err := openStores(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer s.close()

			clock := ledger.NewManualClock(start)
			rt := newRuntime(s, clock, a.logger)
			report, err := runScenario(ctx, rt, clock, sc, a.logger)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&commits, "commit", []string{"250", "400", "600"}, "UI amount committed by each funder")
	flags.StringVar(&minRaise, "minimum-raise", "1000", "minimum raise (UI amount)")
	flags.StringVar(&maxRaise, "maximum-raise", "5000", "maximum raise (UI amount)")
	flags.StringVar(&payout, "payout", "100", "timelocked payout (UI amount)")
	flags.Uint64Var(&window, "window", 100, "funding window in slots")
	flags.Uint64Var(&delay, "delay", 50, "timelock delay in slots")
	flags.Uint64Var(&start, "start-slot", 1, "slot the simulation starts at")
	return cmd
}

// runScenario drives rt through one launch and one timelocked payout,
// advancing clock past the funding window and the timelock delay.
func runScenario(ctx context.Context, rt *ledger.Runtime, clock *ledger.ManualClock, sc scenario, logger *zap.Logger) (*scenarioReport, error) {
	tokens := token.NewClient(rt)
	reader := token.NewLedgerReader(rt)
	launches := launchpad.NewClient(rt, logger.Named("launchpad"))
	timelocks := timelock.NewClient(rt, logger.Named("timelock"))

	issuer := domain.NewRandomPubkey()
	usdc, err := tokens.CreateMint(ctx, launchpad.RequiredDecimals, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("funding mint: %w", err)
	}
	gov, err := tokens.CreateMint(ctx, launchpad.RequiredDecimals, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("governance mint: %w", err)
	}
	dao, err := autocrat.NewClient(rt).InitializeDAO(ctx, gov, usdc)
	if err != nil {
		return nil, err
	}

	launchAddr, _ := launchpad.LaunchAddress(dao.Address)
	sale, err := tokens.CreateMint(ctx, launchpad.RequiredDecimals, launchAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("sale mint: %w", err)
	}
	l, err := launches.InitializeLaunch(ctx, launchpad.InitializeLaunchParams{
		DAO:                dao.Address,
		Creator:            issuer,
		FundingMint:        usdc,
		SaleMint:           sale,
		MinimumRaiseAmount: sc.MinimumRaise,
		MaximumRaiseAmount: sc.MaximumRaise,
		SlotsForLaunch:     sc.SlotsForLaunch,
	})
	if err != nil {
		return nil, err
	}

	for _, amount := range sc.Commitments {
		funder := domain.NewRandomPubkey()
		ata, err := tokens.CreateAssociatedAccount(ctx, funder, usdc)
		if err != nil {
			return nil, err
		}
		if err := tokens.MintTo(ctx, usdc, ata, issuer, amount); err != nil {
			return nil, err
		}
		if err := launches.Commit(ctx, l.Address, funder, amount); err != nil {
			return nil, err
		}
	}

	clock.Set(l.FundingEndSlot)
	if l, err = launches.Launch(ctx, l.Address); err != nil {
		return nil, err
	}
	if l.CommittedAmount >= l.MinimumRaiseAmount {
		err = launches.Finalize(ctx, l.Address)
		if err == nil {
			var claims *launchpad.ClaimReport
			claims, err = launches.ClaimAll(ctx, l.Address)
			if err == nil && !claims.Complete() {
				err = fmt.Errorf("%d claims failed: %w", len(claims.Failed), claims.Failed[0].Err)
			}
		}
	} else {
		var refunds *launchpad.RefundReport
		refunds, err = launches.RefundAll(ctx, l.Address)
		if err == nil && !refunds.Complete() {
			err = fmt.Errorf("%d refunds failed: %w", len(refunds.Failed), refunds.Failed[0].Err)
		}
	}
	if err != nil {
		return nil, err
	}
	if l, err = launches.Launch(ctx, l.Address); err != nil {
		return nil, err
	}

	report := &scenarioReport{
		DAO:       dao.Address,
		Treasury:  dao.Treasury,
		Launch:    l.Address,
		Outcome:   l.State.String(),
		Committed: l.CommittedAmount,
	}
	if l.State == domain.LaunchStateFinalized {
		treasuryAccount, _ := token.AssociatedAddress(dao.Treasury, usdc)
		if report.TreasuryBalance, err = reader.Balance(ctx, treasuryAccount); err != nil {
			return nil, err
		}
	}
	records, err := launches.FundingRecords(ctx, l.Address)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		report.Funders = append(report.Funders, funderReport{
			Funder:    r.Funder,
			Committed: r.CommittedAmount,
			Allocated: r.TokensAllocated,
			Claimed:   r.Claimed,
			Refunded:  r.Refunded,
		})
	}

	if err := runPayout(ctx, rt, clock, tokens, reader, timelocks, issuer, usdc, sc, report); err != nil {
		return nil, err
	}
	return report, nil
}

// runPayout funds an account owned by a new timelock's signer and pays it out
// through an enqueued batch, trying once before the delay has elapsed.
func runPayout(
	ctx context.Context,
	rt *ledger.Runtime,
	clock *ledger.ManualClock,
	tokens *token.Client,
	reader *token.LedgerReader,
	timelocks *timelock.Client,
	issuer, usdc domain.Pubkey,
	sc scenario,
	report *scenarioReport,
) error {
	admin := domain.NewRandomPubkey()
	tl, err := timelocks.CreateTimelock(ctx, admin, timelock.CreateTimelockParams{
		RandomID:     true,
		Admin:        admin,
		Enqueuers:    []domain.Pubkey{admin},
		DelayInSlots: sc.TimelockDelay,
		MaxEnqueuers: 4,
	})
	if err != nil {
		return err
	}

	signer, _ := timelock.SignerAddress(tl.Address)
	budget, err := tokens.CreateAssociatedAccount(ctx, signer, usdc)
	if err != nil {
		return err
	}
	if err := tokens.MintTo(ctx, usdc, budget, issuer, sc.Payout); err != nil {
		return err
	}
	recipient, err := tokens.CreateAssociatedAccount(ctx, domain.NewRandomPubkey(), usdc)
	if err != nil {
		return err
	}

	ix := token.Transfer(budget, recipient, signer, sc.Payout)
	batch, err := timelocks.CreateTransactionBatch(ctx, tl.Address, admin, nil, timelock.RequiredCapacity(ix))
	if err != nil {
		return err
	}
	if _, err := timelocks.AddTransaction(ctx, batch, admin, ix); err != nil {
		return err
	}
	if err := timelocks.Enqueue(ctx, batch, admin); err != nil {
		return err
	}

	report.Timelock = tl.Address
	report.Batch = batch
	report.EnqueuedSlot = rt.Slot()
	report.ExecutableAt = report.EnqueuedSlot + sc.TimelockDelay

	if sc.TimelockDelay > 0 {
		report.EarlyExecuteErr = timelocks.Execute(ctx, batch)
		if !errors.Is(report.EarlyExecuteErr, timelock.ErrDelayNotElapsed) {
			return fmt.Errorf("early execute: want %v, got %v", timelock.ErrDelayNotElapsed, report.EarlyExecuteErr)
		}
	}

	clock.Set(report.ExecutableAt)
	if err := timelocks.Execute(ctx, batch); err != nil {
		return err
	}
	report.ExecutedSlot = rt.Slot()

	report.RecipientBalance, err = reader.Balance(ctx, recipient)
	return err
}

func printReport(w io.Writer, r *scenarioReport) error {
	ui := func(v uint64) string { return token.FormatAmount(v, launchpad.RequiredDecimals) }

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "dao\t%s\n", r.DAO)
	fmt.Fprintf(tw, "treasury\t%s\n", r.Treasury)
	fmt.Fprintf(tw, "launch\t%s\n", r.Launch)
	fmt.Fprintf(tw, "outcome\t%s\n", r.Outcome)
	fmt.Fprintf(tw, "committed\t%s\n", ui(r.Committed))
	fmt.Fprintf(tw, "treasury balance\t%s\n", ui(r.TreasuryBalance))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "funder\tcommitted\tallocated\tclaimed\trefunded")
	for _, f := range r.Funders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", f.Funder, ui(f.Committed), ui(f.Allocated), f.Claimed, f.Refunded)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "timelock\t%s\n", r.Timelock)
	fmt.Fprintf(tw, "batch\t%s\n", r.Batch)
	fmt.Fprintf(tw, "enqueued at\t%d\n", r.EnqueuedSlot)
	fmt.Fprintf(tw, "executable at\t%d\n", r.ExecutableAt)
	if r.EarlyExecuteErr != nil {
		fmt.Fprintf(tw, "early execute\trejected: %v\n", r.EarlyExecuteErr)
	}
	fmt.Fprintf(tw, "executed at\t%d\n", r.ExecutedSlot)
	fmt.Fprintf(tw, "payout received\t%s\n", ui(r.RecipientBalance))
	return tw.Flush()
}
