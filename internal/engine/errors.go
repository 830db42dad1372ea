package engine

import "errors"

// Rejection reasons are distinguishable sentinel errors so callers can
// branch with errors.Is. Wrapped errors keep these in the chain.
var (
	// ErrPositionExists is returned when an account tries to open a
	// second position while one is still active.
	ErrPositionExists = errors.New("account already has an active position")

	// ErrNoActivePosition is returned for close/liquidate/pnl calls
	// against an account without an active position.
	ErrNoActivePosition = errors.New("no active position for account")

	// ErrCollateralOutOfRange is returned when the collateral amount is
	// outside [MinCollateral, MaxCollateral].
	ErrCollateralOutOfRange = errors.New("collateral out of range")

	// ErrLeverageOutOfRange is returned when size/collateral is outside
	// [MinLeverage, MaxLeverage].
	ErrLeverageOutOfRange = errors.New("leverage out of range")

	// ErrNotLiquidatable is returned when a liquidation targets a
	// position above the liquidation threshold.
	ErrNotLiquidatable = errors.New("position is not liquidatable")

	// ErrInvalidLimit is returned for a scan limit outside (0, MaxScanLimit].
	ErrInvalidLimit = errors.New("scan limit out of range")

	// ErrInvalidBatchSize is returned for a batch size outside (0, MaxBatchSize].
	ErrInvalidBatchSize = errors.New("batch size out of range")

	// ErrNotOwner is returned when a pool operation is called by anyone
	// but the pool owner.
	ErrNotOwner = errors.New("caller is not the pool owner")

	// ErrInsufficientPoolBalance is returned when the pool cannot cover
	// a withdrawal or payout.
	ErrInsufficientPoolBalance = errors.New("insufficient pool balance")
)
