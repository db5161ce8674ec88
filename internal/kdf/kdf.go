package kdf

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/scrypt"
)

const (
	// KeyLen is the derived key length stored with every record.
	KeyLen = 64
	// SaltLen is the length of freshly generated salts.
	SaltLen = 16

	// MinN is the lowest CPU/memory cost accepted by Derive.
	MinN = 1 << 10
	// MinSaltLen is the shortest salt accepted by Derive.
	MinSaltLen = 16
)

// CostParams are the scrypt cost parameters recorded per credential so that
// old records stay verifiable when defaults change.
type CostParams struct {
	N int // CPU/memory cost, power of two
	R int // block size
	P int // parallelism
}

// Validate reports whether c is a safe, well-formed parameter set.
func (c CostParams) Validate() error {
	switch {
	case c.N < MinN:
		return fmt.Errorf("%w: N=%d below floor %d", common.ErrDerivation, c.N, MinN)
	case c.N&(c.N-1) != 0:
		return fmt.Errorf("%w: N=%d is not a power of two", common.ErrDerivation, c.N)
	case c.R < 1 || c.P < 1:
		return fmt.Errorf("%w: r=%d p=%d must be positive", common.ErrDerivation, c.R, c.P)
	case uint64(c.R)*uint64(c.P) >= 1<<30:
		return fmt.Errorf("%w: r*p too large", common.ErrDerivation)
	}
	return nil
}

func (c CostParams) String() string {
	return fmt.Sprintf("N=%d,r=%d,p=%d", c.N, c.R, c.P)
}

// Tier is a named preset of cost parameters.
type Tier string

const (
	TierFast Tier = "fast"
	TierSlow Tier = "slow"
)

// DefaultTiers holds the presets exposed to callers. Both tiers share the
// same base cost and differ only in parallelism.
var DefaultTiers = map[Tier]CostParams{
	TierFast: {N: 16384, R: 8, P: 1},
	TierSlow: {N: 16384, R: 8, P: 50},
}

// ParseTier maps a tier name to a Tier. Matching is case-insensitive.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFast:
		return TierFast, nil
	case TierSlow:
		return TierSlow, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownTier, s)
}

// Derive runs scrypt over password and salt. The result is deterministic for
// identical inputs. Invalid parameters fail with an error wrapping
// common.ErrDerivation; weaker parameters are never substituted.
func Derive(password, salt []byte, cost CostParams, keyLen int) ([]byte, error) {
	if keyLen <= 0 {
		return nil, fmt.Errorf("%w: key length %d", common.ErrDerivation, keyLen)
	}
	if len(salt) < MinSaltLen {
		return nil, fmt.Errorf("%w: salt length %d below %d", common.ErrDerivation, len(salt), MinSaltLen)
	}
	if err := cost.Validate(); err != nil {
		return nil, err
	}

	key, err := scrypt.Key(password, salt, cost.N, cost.R, cost.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDerivation, err)
	}
	return key, nil
}
