package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/config"
	"ammPool/internal/pool"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reserveIn, err := pool.ParseAmount(cfg.ReserveIn)
	if err != nil {
		return fmt.Errorf("reserve-in: %w", err)
	}
	reserveOut, err := pool.ParseAmount(cfg.ReserveOut)
	if err != nil {
		return fmt.Errorf("reserve-out: %w", err)
	}
	amountIn, err := pool.ParseAmount(cfg.AmountIn)
	if err != nil {
		return fmt.Errorf("amount-in: %w", err)
	}
	fee, ok := new(big.Rat).SetString(strings.TrimSpace(cfg.Fee))
	if !ok || fee.Sign() < 0 || fee.Cmp(big.NewRat(1, 1)) > 0 {
		return fmt.Errorf("%w: %q", pool.ErrInvalidFeeRate, cfg.Fee)
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return fmt.Errorf("%w: reserves must be positive", pool.ErrInsufficientReserve)
	}

	out, err := pool.SwapOutput(reserveIn, reserveOut, amountIn, fee)
	if err != nil {
		return err
	}

	logger.Debug("quote",
		zap.String("reserve_in", pool.FormatAmount(reserveIn)),
		zap.String("reserve_out", pool.FormatAmount(reserveOut)),
		zap.String("amount_in", pool.FormatAmount(amountIn)),
		zap.String("fee", pool.FormatAmount(fee)),
	)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "amount_out: %s\n", pool.FormatAmount(out))
	spot := new(big.Rat).Quo(reserveIn, reserveOut)
	fmt.Fprintf(w, "spot_price: %s\n", pool.FormatAmount(spot))
	if out.Sign() > 0 {
		effective := new(big.Rat).Quo(amountIn, out)
		impact := new(big.Rat).Quo(effective, spot)
		impact.Sub(impact, big.NewRat(1, 1))
		fmt.Fprintf(w, "effective_price: %s\n", pool.FormatAmount(effective))
		fmt.Fprintf(w, "price_impact: %s\n", pool.FormatAmount(impact))
	}
	return nil
}
