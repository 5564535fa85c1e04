package invite

import (
	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
	"github.com/davemagnier/youmio-invite/stats"
)

// Re-export the common entity types so callers holding an Engine don't have
// to import every subpackage.

// InviteCode is re-exported from the code package.
type InviteCode = code.InviteCode

// Claim is re-exported from the claim package.
type Claim = claim.Claim

// Conversion is re-exported from the conversion package.
type Conversion = conversion.Conversion

// ConversionResult is re-exported from the conversion package.
type ConversionResult = conversion.Result

// Stats is re-exported from the stats package.
type Stats = stats.Stats
