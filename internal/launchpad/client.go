package launchpad

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"solana-dao-lab/internal/autocrat"
	"solana-dao-lab/internal/domain"
	"solana-dao-lab/internal/ledger"
	"solana-dao-lab/internal/observability"
	"solana-dao-lab/internal/token"
)

// InitializeLaunchParams describes a new launch.
type InitializeLaunchParams struct {
	DAO                domain.Pubkey
	Creator            domain.Pubkey
	FundingMint        domain.Pubkey
	SaleMint           domain.Pubkey
	MinimumRaiseAmount uint64
	MaximumRaiseAmount uint64
	SlotsForLaunch     uint64
}

func (p InitializeLaunchParams) instruction() *domain.Instruction {
	treasury, _ := autocrat.TreasuryAddress(p.DAO)
	return InitializeLaunch(p.Creator, p.DAO, treasury, p.FundingMint, p.SaleMint, InitializeLaunchArgs{
		MinimumRaiseAmount: p.MinimumRaiseAmount,
		MaximumRaiseAmount: p.MaximumRaiseAmount,
		SlotsForLaunch:     p.SlotsForLaunch,
	})
}

// FunderFailure is a funder whose refund or claim bundle failed.
type FunderFailure struct {
	Funder domain.Pubkey
	Err    error
}

// RefundReport is the outcome of RefundAll.
type RefundReport struct {
	Refunded []domain.Pubkey
	Failed   []FunderFailure
}

// Complete reports whether every outstanding funder was refunded.
func (r *RefundReport) Complete() bool { return len(r.Failed) == 0 }

// ClaimReport is the outcome of ClaimAll.
type ClaimReport struct {
	Claimed []domain.Pubkey
	Failed  []FunderFailure
}

// Complete reports whether every unclaimed funder was paid.
func (r *ClaimReport) Complete() bool { return len(r.Failed) == 0 }

// Client drives launches. Each call is one bundle unless stated otherwise.
type Client struct {
	rt     *ledger.Runtime
	logger *zap.Logger
}

// NewClient creates a launchpad client. A nil logger disables logging.
func NewClient(rt *ledger.Runtime, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rt: rt, logger: logger}
}

// InitializeLaunch creates the launch for p.DAO. The sale mint authority must
// already be the launch address.
func (c *Client) InitializeLaunch(ctx context.Context, p InitializeLaunchParams) (*domain.Launch, error) {
	if _, err := c.rt.Submit(ctx, []domain.Pubkey{p.Creator}, p.instruction()); err != nil {
		return nil, fmt.Errorf("initialize launch: %w", err)
	}
	return c.LaunchForDAO(ctx, p.DAO)
}

// InitializeLaunchWithAuthorityHandoff moves the sale mint authority from
// mintAuthority to the launch and initializes the launch in the same bundle.
// If initialization fails the authority stays with mintAuthority.
func (c *Client) InitializeLaunchWithAuthorityHandoff(ctx context.Context, p InitializeLaunchParams, mintAuthority domain.Pubkey) (*domain.Launch, error) {
	launch, _ := LaunchAddress(p.DAO)
	_, err := c.rt.Submit(ctx, []domain.Pubkey{p.Creator, mintAuthority},
		token.SetAuthority(p.SaleMint, mintAuthority, token.AuthorityMintTokens, &launch),
		p.instruction(),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize launch with authority handoff: %w", err)
	}
	return c.LaunchForDAO(ctx, p.DAO)
}

// Commit moves amount of the funding mint from funder's associated account into escrow.
func (c *Client) Commit(ctx context.Context, launch, funder domain.Pubkey, amount uint64) error {
	l, err := c.Launch(ctx, launch)
	if err != nil {
		return err
	}
	if _, err := c.rt.Submit(ctx, []domain.Pubkey{funder}, Commit(l, funder, amount)); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	observability.RecordFundsCommitted(amount)
	return nil
}

// Finalize pays the raise to the DAO treasury and mints the sale into the
// launch's sale vault. Funders then collect their share with Claim.
func (c *Client) Finalize(ctx context.Context, launch domain.Pubkey) error {
	l, err := c.Launch(ctx, launch)
	if err != nil {
		return err
	}
	if _, err := c.rt.Submit(ctx, nil, Finalize(l)); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	observability.RecordLaunchSettled("finalized")
	c.logger.Info("launch finalized",
		zap.String("launch", launch.String()),
		zap.String("raised", token.FormatAmount(l.CommittedAmount, RequiredDecimals)),
	)
	return nil
}

// Refund returns one funder's commitment. The launch must already be refunding.
func (c *Client) Refund(ctx context.Context, launch, funder domain.Pubkey) error {
	l, err := c.Launch(ctx, launch)
	if err != nil {
		return err
	}
	_, err = c.rt.Submit(ctx, nil, Refund(l, funder))
	observability.RecordRefund(err)
	if err != nil {
		return fmt.Errorf("refund %s: %w", funder, err)
	}
	return nil
}

// RefundAll moves an under-subscribed launch to REFUNDED, then refunds every
// outstanding funder in its own bundle. A failed refund does not stop the
// others; calling RefundAll again retries only the funders still outstanding.
func (c *Client) RefundAll(ctx context.Context, launch domain.Pubkey) (*RefundReport, error) {
	l, err := c.Launch(ctx, launch)
	if err != nil {
		return nil, err
	}
	switch l.State {
	case domain.LaunchStateFinalized:
		return nil, fmt.Errorf("refund all: %w", ErrAlreadyFinalized)
	case domain.LaunchStateOpen:
		if _, err := c.rt.Submit(ctx, nil, StartRefund(launch)); err != nil {
			return nil, fmt.Errorf("start refund: %w", err)
		}
		observability.RecordLaunchSettled("refunded")
	}

	records, err := c.FundingRecords(ctx, launch)
	if err != nil {
		return nil, err
	}
	report := &RefundReport{}
	for _, rec := range records {
		if rec.Refunded {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.Refund(ctx, launch, rec.Funder); err != nil {
			c.logger.Warn("refund failed",
				zap.String("launch", launch.String()),
				zap.String("funder", rec.Funder.String()),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, FunderFailure{Funder: rec.Funder, Err: err})
			continue
		}
		report.Refunded = append(report.Refunded, rec.Funder)
	}
	return report, nil
}

// Claim pays funder's sale allocation from a finalized launch, creating the
// funder's associated sale account if needed.
func (c *Client) Claim(ctx context.Context, launch, funder domain.Pubkey) error {
	l, err := c.Launch(ctx, launch)
	if err != nil {
		return err
	}
	_, err = c.rt.Submit(ctx, nil,
		token.CreateAssociatedAccount(funder, l.SaleMint),
		Claim(l, funder),
	)
	observability.RecordClaim(err)
	if err != nil {
		return fmt.Errorf("claim %s: %w", funder, err)
	}
	return nil
}

// ClaimAll pays every unclaimed funder of a finalized launch, each in its own
// bundle. A funder whose claim fails is reported and skipped; the rest are
// still paid.
func (c *Client) ClaimAll(ctx context.Context, launch domain.Pubkey) (*ClaimReport, error) {
	l, err := c.Launch(ctx, launch)
	if err != nil {
		return nil, err
	}
	if l.State != domain.LaunchStateFinalized {
		return nil, fmt.Errorf("claim all: %w", ErrInvalidLaunchState)
	}

	records, err := c.FundingRecords(ctx, launch)
	if err != nil {
		return nil, err
	}
	report := &ClaimReport{}
	for _, rec := range records {
		if rec.Claimed || rec.Refunded {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.Claim(ctx, launch, rec.Funder); err != nil {
			c.logger.Warn("claim failed",
				zap.String("launch", launch.String()),
				zap.String("funder", rec.Funder.String()),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, FunderFailure{Funder: rec.Funder, Err: err})
			continue
		}
		report.Claimed = append(report.Claimed, rec.Funder)
	}
	return report, nil
}

// Launch reads a committed launch.
func (c *Client) Launch(ctx context.Context, address domain.Pubkey) (*domain.Launch, error) {
	acct, err := c.rt.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acct.Owner != ProgramID {
		return nil, fmt.Errorf("%w: %s is not a launch", ledger.ErrInvalidAccountData, address)
	}
	return DecodeLaunch(address, acct.Data)
}

// LaunchForDAO reads the launch derived from dao.
func (c *Client) LaunchForDAO(ctx context.Context, dao domain.Pubkey) (*domain.Launch, error) {
	address, _ := LaunchAddress(dao)
	return c.Launch(ctx, address)
}

// FundingRecord reads funder's record for launch.
func (c *Client) FundingRecord(ctx context.Context, launch, funder domain.Pubkey) (*domain.FundingRecord, error) {
	address, _ := FundingRecordAddress(launch, funder)
	acct, err := c.rt.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeFundingRecord(address, acct.Data)
}

// FundingRecords returns every funding record of launch in address order.
func (c *Client) FundingRecords(ctx context.Context, launch domain.Pubkey) ([]*domain.FundingRecord, error) {
	accts, err := c.rt.AccountsByOwner(ctx, ProgramID)
	if err != nil {
		return nil, err
	}
	return filterFundingRecords(accts, launch)
}

// IsNotFound reports whether err means the launch or record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ledger.ErrAccountNotFound)
}
