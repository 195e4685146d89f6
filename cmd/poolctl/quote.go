package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"liquidityPool/internal/config"
	"liquidityPool/internal/pool"
)

type quoteResult struct {
	AmountIn   string `json:"amount_in"`
	ReserveIn  string `json:"reserve_in"`
	ReserveOut string `json:"reserve_out"`
	AmountOut  string `json:"amount_out"`
	FeeBps     uint64 `json:"fee_bps"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	reserveInRaw, _ := cmd.Flags().GetString("reserve-in")
	reserveOutRaw, _ := cmd.Flags().GetString("reserve-out")
	amountInRaw, _ := cmd.Flags().GetString("amount-in")

	result, err := quote(amountInRaw, reserveInRaw, reserveOutRaw)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func quote(amountInRaw, reserveInRaw, reserveOutRaw string) (quoteResult, error) {
	amountIn, err := config.ParseAmount(amountInRaw)
	if err != nil {
		return quoteResult{}, fmt.Errorf("amount-in: %w", err)
	}
	reserveIn, err := config.ParseAmount(reserveInRaw)
	if err != nil {
		return quoteResult{}, fmt.Errorf("reserve-in: %w", err)
	}
	reserveOut, err := config.ParseAmount(reserveOutRaw)
	if err != nil {
		return quoteResult{}, fmt.Errorf("reserve-out: %w", err)
	}

	amountOut, err := pool.QuoteOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return quoteResult{}, err
	}
	return quoteResult{
		AmountIn:   amountIn.Dec(),
		ReserveIn:  reserveIn.Dec(),
		ReserveOut: reserveOut.Dec(),
		AmountOut:  amountOut.Dec(),
		FeeBps:     pool.FeeNumerator,
	}, nil
}
