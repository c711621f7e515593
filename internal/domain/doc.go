// Package domain models coastal flood hazard derived from the ocean state.
//
// # Physical Model
//
// Wave run-up follows the Stockdon et al. (2006) empirical formulation for
// the 2% exceedance level (R2%):
//
//	L0     = g·T² / (2π)                         deep-water wavelength
//	setup  = 0.35·β·sqrt(H0·L0)
//	swash  = sqrt(H0·L0·(0.563·β² + 0.004))
//	R2     = 1.1·(setup + swash/2)
//
// H0 is the deep-water significant wave height in metres, T the peak period
// in seconds and β the foreshore beach slope (tan θ). Non-positive H0 or L0
// yields zero run-up rather than an error. See [StockdonRunup].
//
// # Risk Tiers
//
// Global risk compares run-up against a single threshold (the lowest sea wall):
//
//	margin < 0    CRITICAL
//	margin < 1.0  HIGH
//	otherwise     SAFE
//
// Sector risk refines this into four tiers with a 0-100 score:
//
//	margin < 0          CRITICAL   min(100, 88 + 12·|m|)
//	0   <= margin < 0.5 HIGH       68 + 40·(0.5 - m)
//	0.5 <= margin < 1.5 MODERATE   30 + 25·(1.5 - m)
//	margin >= 1.5       LOW        max(5, 28 - 5·m)
//
// Road flooding depth is max(0, runup - elevation):
//
//	0        DRY      passable
//	< 0.15 m WET      passable
//	< 0.30 m SHALLOW  impassable
//	>= 0.30  FLOODED  impassable
//
// # Action Window
//
// The time left before the lowest wall is overtopped assumes a linear rise of
// 0.1 m/hour. A non-positive margin means the breach already happened and the
// window is zero and urgent. See [ComputeActionWindow].
//
// # Snapshot
//
// A [Snapshot] aggregates every derived value for one tick. All of its fields
// are computed from the same [OceanState]; it is never mutated after assembly.
package domain
