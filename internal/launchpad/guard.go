package launchpad

import (
	"fmt"

	"solana-dao-lab/internal/domain"
)

// MintViolations evaluates every sale mint requirement against launch and
// returns the failures in check order: mint authority, freeze authority, supply.
func MintViolations(m *domain.Mint, launch domain.Pubkey) []error {
	var errs []error
	if m.MintAuthority == nil || *m.MintAuthority != launch {
		got := "none"
		if m.MintAuthority != nil {
			got = m.MintAuthority.String()
		}
		errs = append(errs, fmt.Errorf("%w: mint %s authority %s, want %s", ErrConstraintMintMintAuthority, m.Address, got, launch))
	}
	if m.FreezeAuthority != nil {
		errs = append(errs, fmt.Errorf("%w: mint %s freeze authority %s", ErrFreezeAuthoritySet, m.Address, m.FreezeAuthority))
	}
	if m.Supply != 0 {
		errs = append(errs, fmt.Errorf("%w: mint %s supply %d", ErrSupplyNonZero, m.Address, m.Supply))
	}
	return errs
}

// CheckMint returns the first sale mint violation, or nil.
func CheckMint(m *domain.Mint, launch domain.Pubkey) error {
	if errs := MintViolations(m, launch); len(errs) > 0 {
		return errs[0]
	}
	return nil
}
