package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/monkfishlabs/koi-cli/internal/errors"
	"github.com/monkfishlabs/koi-cli/internal/id"
	"github.com/monkfishlabs/koi-cli/internal/koi"
)

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote <asset> <amount-sol>",
		Short: "Price buying an asset with SOL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := id.ParseAmount(args[1])
			if err != nil {
				return err
			}
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("quote")
			if err != nil {
				return err
			}

			ctx, cancel := s.commandContext()
			defer cancel()
			asset, err := s.resolveAsset(ctx, args[0])
			if err != nil {
				return err
			}
			quote, err := gateway.Quote(ctx, asset.Address, amount, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"asset": asset,
				"quote": quote,
			})
		},
	}
	return cmd
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap <asset> <amount-sol>",
		Short: "Market-buy an asset with SOL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := id.ParseAmount(args[1])
			if err != nil {
				return err
			}
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("swap")
			if err != nil {
				return err
			}
			if err := s.checkCooldown(meta.UserID, "swap"); err != nil {
				return err
			}

			ctx, cancel := s.commandContext()
			defer cancel()
			asset, err := s.resolveAsset(ctx, args[0])
			if err != nil {
				return err
			}
			swap, err := gateway.Swap(ctx, asset.Address, amount, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"asset": asset,
				"swap":  swap,
			})
		},
	}
	return cmd
}

func (s *runtimeState) newAlgoCommand() *cobra.Command {
	root := &cobra.Command{Use: "algo", Short: "Trading algorithm commands"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List available trading algorithms",
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("algos")
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext()
			defer cancel()
			algos, err := gateway.Algos(ctx, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), algos.Algos)
		},
	}
	root.AddCommand(list)

	var req koi.CadenceSwapRequest
	var buyAsset string
	var amountArg string
	cadence := &cobra.Command{
		Use:   "cadence",
		Short: "Submit a swap through the cadence trader route",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := id.ParseAmount(amountArg)
			if err != nil {
				return err
			}
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("swap")
			if err != nil {
				return err
			}
			if !req.DryRun {
				if err := s.checkCooldown(meta.UserID, "swap"); err != nil {
					return err
				}
			}

			ctx, cancel := s.commandContext()
			defer cancel()
			asset, err := s.resolveAsset(ctx, buyAsset)
			if err != nil {
				return err
			}
			req.BuyToken = asset.Address
			req.Amount = amount
			resp, err := gateway.CadenceSwap(ctx, req, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"asset":  asset,
				"result": resp,
			})
		},
	}
	cadence.Flags().StringVar(&req.SellToken, "sell", "SOL", "Token to sell")
	cadence.Flags().StringVar(&buyAsset, "buy", "", "Asset to buy (symbol, symbol:chain, or address)")
	cadence.Flags().StringVar(&amountArg, "amount", "", "Amount of the sell token")
	cadence.Flags().StringVar(&req.Blockchain, "blockchain", "solana", "Execution chain")
	cadence.Flags().StringVar(&req.PublicWallet, "wallet", "", "Public wallet override")
	cadence.Flags().BoolVar(&req.DryRun, "dry-run", false, "Simulate without executing")
	cadence.Flags().IntVar(&req.SlippageBps, "slippage-bps", 0, "Slippage tolerance in basis points")
	cadence.Flags().Float64Var(&req.PriorityFee, "priority-fee", 0, "Priority fee in SOL")
	_ = cadence.MarkFlagRequired("buy")
	_ = cadence.MarkFlagRequired("amount")
	root.AddCommand(cadence)

	return root
}

func (s *runtimeState) newWalletCommand() *cobra.Command {
	root := &cobra.Command{Use: "wallet", Short: "Custodial wallet commands"}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create the custodial wallet for the user",
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("wallet")
			if err != nil {
				return err
			}
			if err := s.checkCooldown(meta.UserID, "wallet create"); err != nil {
				return err
			}
			ctx, cancel := s.commandContext()
			defer cancel()
			resp, err := gateway.WalletCreate(ctx, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), resp)
		},
	}
	root.AddCommand(create)

	var chain string
	deposit := &cobra.Command{
		Use:   "deposit",
		Short: "Show the deposit address for a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("wallet")
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext()
			defer cancel()
			resp, err := gateway.WalletDepositAddress(ctx, chain, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), resp)
		},
	}
	deposit.Flags().StringVar(&chain, "chain", "sol", "Chain for the deposit address")
	root.AddCommand(deposit)

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show wallet balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("wallet")
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext()
			defer cancel()
			resp, err := gateway.WalletBalance(ctx, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), resp.Balances)
		},
	}
	root.AddCommand(balance)

	return root
}

func (s *runtimeState) newAllocationsCommand() *cobra.Command {
	root := &cobra.Command{Use: "allocations", Short: "Algorithm allocation commands"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the user's algorithm allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("allocations")
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext()
			defer cancel()
			resp, err := gateway.Allocations(ctx, meta)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), resp.Allocations)
		},
	}
	root.AddCommand(list)

	root.AddCommand(s.newAllocationChangeCommand("enable", "Allocate SOL to an algorithm"))
	root.AddCommand(s.newAllocationChangeCommand("disable", "Withdraw an allocation from an algorithm"))

	return root
}

func (s *runtimeState) newAllocationChangeCommand(action, short string) *cobra.Command {
	var algoID string
	var amountArg string
	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if algoID == "" {
				return clierr.New(clierr.CodeUsage, "--algo is required")
			}
			amount, err := id.ParseAmount(amountArg)
			if err != nil {
				return err
			}
			gateway, err := s.requireGateway()
			if err != nil {
				return err
			}
			meta, err := s.callerMeta("allocations")
			if err != nil {
				return err
			}
			if err := s.checkCooldown(meta.UserID, "allocations "+action); err != nil {
				return err
			}

			ctx, cancel := s.commandContext()
			defer cancel()
			var resp koi.AllocationChangeResponse
			if action == "enable" {
				resp, err = gateway.AllocationsEnable(ctx, algoID, amount, meta)
			} else {
				resp, err = gateway.AllocationsDisable(ctx, algoID, amount, meta)
			}
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), resp)
		},
	}
	cmd.Flags().StringVar(&algoID, "algo", "", "Algorithm id")
	cmd.Flags().StringVar(&amountArg, "amount", "", "Amount of SOL")
	_ = cmd.MarkFlagRequired("algo")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newTokenCommand() *cobra.Command {
	root := &cobra.Command{Use: "token", Short: "Token directory commands"}

	var force bool
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the local token directory from the public list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			if force {
				s.directory.ForceRefresh(ctx, s.settings.DirectoryTTL)
			} else {
				s.directory.EnsureFresh(ctx, s.settings.DirectoryTTL)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"entries": s.directory.Size(),
			})
		},
	}
	refresh.Flags().BoolVar(&force, "force", false, "Refresh even if the directory is fresh")
	root.AddCommand(refresh)

	lookup := &cobra.Command{
		Use:   "lookup <symbol>",
		Short: "Look up a symbol in the local token directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			s.directory.EnsureFresh(ctx, s.settings.DirectoryTTL)
			address, ok := s.directory.Lookup(args[0])
			if !ok {
				address, ok = s.directory.SearchExternal(ctx, args[0])
			}
			if !ok {
				return clierr.New(clierr.CodeUnknown, "symbol not found in token directory")
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"symbol":  args[0],
				"address": address,
			})
		},
	}
	root.AddCommand(lookup)

	price := &cobra.Command{
		Use:   "price <asset>",
		Short: "Show public market prices for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext()
			defer cancel()
			asset, err := s.resolveAsset(ctx, args[0])
			if err != nil {
				return err
			}
			pairs, ok := s.market.TokenPairs(ctx, asset.Address)
			if !ok {
				return clierr.New(clierr.CodeUnavailable, "no market data found for asset")
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"asset": asset,
				"pairs": pairs,
			})
		},
	}
	root.AddCommand(price)

	return root
}
