// Command valutahub is the currency trading CLI: accounts, wallets, trades
// and the exchange rate pipeline behind them.
//
// Usage:
//
//	valutahub register --username alice
//	valutahub buy BTC 0.01
//	valutahub rate BTC USD
//	valutahub daemon --config config.yaml
//
// The ExchangeRate-API fiat source needs the EXCHANGERATE_API_KEY
// environment variable; without it the remaining sources still run.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valutahub/valutahub/config"
	"github.com/valutahub/valutahub/internal/aggregator"
	"github.com/valutahub/valutahub/internal/domain"
	"github.com/valutahub/valutahub/internal/rates"
	"github.com/valutahub/valutahub/internal/scheduler"
	"github.com/valutahub/valutahub/internal/services/audit"
	"github.com/valutahub/valutahub/internal/services/auth"
	"github.com/valutahub/valutahub/internal/services/ledger"
	"github.com/valutahub/valutahub/internal/services/trade"
	"github.com/valutahub/valutahub/internal/sources"
	"github.com/valutahub/valutahub/internal/storage/portfolios"
	"github.com/valutahub/valutahub/internal/storage/ratecache"
	"github.com/valutahub/valutahub/internal/storage/tradelog"
	"github.com/valutahub/valutahub/internal/storage/users"
)

type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *domain.Registry

	cache      *ratecache.Store
	portfolios *portfolios.Store
	users      *users.Store
	sessions   *users.SessionStore

	auth    *auth.Service
	rates   *rates.Service
	auditor *audit.Auditor
}

var a *app

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "valutahub",
	Short:         "Currency trading platform: wallets, trades and live exchange rates",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}

		a = &app{
			cfg:        cfg,
			logger:     logger,
			registry:   domain.NewRegistry(),
			cache:      ratecache.NewStore(cfg.RatesPath, cfg.HistoryPath),
			portfolios: portfolios.NewStore(cfg.PortfoliosPath),
			users:      users.NewStore(cfg.UsersPath),
			sessions:   users.NewSessionStore(cfg.SessionPath),
			auditor:    audit.New(logger),
		}
		a.auth = auth.NewService(a.users, a.sessions, a.portfolios, logger)
		a.rates = rates.NewService(a.cache, a.registry, cfg.CacheTTL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a != nil && a.logger != nil {
			a.logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to yaml config")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(currenciesCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(daemonCmd)
}

// --- Account commands ---

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account with an empty portfolio",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, err := passwordFlagOrPrompt(cmd)
		if err != nil {
			return err
		}

		user, err := a.auth.Register(username, password)
		a.auditor.Record(audit.Entry{Action: "register", Username: username}, err)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s (id %d). You can log in now.\n", user.Username, user.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and make this account the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, err := passwordFlagOrPrompt(cmd)
		if err != nil {
			return err
		}

		sess, err := a.auth.Login(username, password)
		a.auditor.Record(audit.Entry{Action: "login", Username: username}, err)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s.\n", sess.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := a.auth.Logout()
		a.auditor.Record(audit.Entry{Action: "logout"}, err)
		if err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{registerCmd, loginCmd} {
		cmd.Flags().String("username", "", "account username")
		cmd.Flags().String("password", "", "account password (prompted when omitted)")
		cmd.MarkFlagRequired("username")
	}
}

// passwordFlagOrPrompt reads --password, falling back to a masked
// interactive prompt.
func passwordFlagOrPrompt(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}
	input := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&password)
	if err := input.Run(); err != nil {
		return "", err
	}
	return password, nil
}

// --- Trade commands ---

var buyCmd = &cobra.Command{
	Use:   "buy [currency] [amount]",
	Short: "Buy a currency with USD at the cached rate",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return runTrade("buy", args) },
}

var sellCmd = &cobra.Command{
	Use:   "sell [currency] [amount]",
	Short: "Sell a currency for USD at the cached rate",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return runTrade("sell", args) },
}

func runTrade(action string, args []string) error {
	sess, err := a.auth.CurrentUser()
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return domain.ErrInvalidAmount
	}

	journal, err := tradelog.NewJournal(a.cfg.TradeLogDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	coordinator := trade.NewCoordinator(a.portfolios, a.cache, a.registry, journal, a.logger)

	var res *trade.Result
	if action == "buy" {
		res, err = coordinator.Buy(*sess, args[0], amount)
	} else {
		res, err = coordinator.Sell(*sess, args[0], amount)
	}

	entry := audit.Entry{Action: action, Username: sess.Username, Currency: args[0], Amount: amount}
	if res != nil {
		entry.Currency = res.Code
		entry.Rate = res.Rate
	}
	a.auditor.Record(entry, err)
	if err != nil {
		return err
	}

	verb := "Bought"
	if action == "sell" {
		verb = "Sold"
	}
	fmt.Printf("%s %s %s at %s USD.\n", verb, formatAmount(res.Amount), res.Code, formatAmount(res.Rate))
	fmt.Printf("  %s: %s -> %s\n", res.Code, formatAmount(res.PrevCode), formatAmount(res.NewCode))
	fmt.Printf("  USD: %s -> %s\n", formatAmount(res.PrevUSD), formatAmount(res.NewUSD))
	return nil
}

// --- Query commands ---

var rateCmd = &cobra.Command{
	Use:   "rate [from] [to]",
	Short: "Show the cached exchange rate for a pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := a.rates.Rate(args[0], args[1])
		a.auditor.Record(audit.Entry{Action: "rate", Currency: args[0] + "_" + args[1]}, err)
		if err != nil {
			return err
		}
		fmt.Printf("1 %s = %s %s\n", info.From, formatAmount(info.Rate), info.To)
		fmt.Printf("1 %s = %s %s\n", info.To, formatAmount(info.Inverse), info.From)
		if info.UpdatedAt != "" {
			fmt.Printf("Updated: %s\n", info.UpdatedAt)
		}
		return nil
	},
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show wallet balances and their total USD value",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := a.auth.CurrentUser()
		if err != nil {
			return err
		}
		portfolio, err := a.portfolios.Load(sess.UserID)
		if err != nil {
			return err
		}
		snap, err := a.cache.Load()
		if err != nil {
			return err
		}

		lines, total, err := ledger.Report(portfolio, a.cfg.BaseCurrency, snap)
		a.auditor.Record(audit.Entry{Action: "portfolio", Username: sess.Username}, err)
		if err != nil {
			return err
		}

		fmt.Printf("Portfolio of %s:\n", sess.Username)
		if len(lines) == 0 {
			fmt.Println("  (empty)")
		}
		for _, line := range lines {
			fmt.Printf("  %-5s %14s  = %s %s\n",
				line.Code, formatAmount(line.Balance), formatAmount(line.Value), a.cfg.BaseCurrency)
		}
		fmt.Printf("Total: %s %s\n", formatAmount(total), a.cfg.BaseCurrency)
		return nil
	},
}

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List the supported currencies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, c := range a.registry.All() {
			fmt.Println(c.DisplayInfo())
		}
	},
}

// --- Rate pipeline commands ---

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch rates from every source once and refresh the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, err := buildAggregator()
		if err != nil {
			return err
		}
		snap, err := agg.Update(cmd.Context())
		a.auditor.Record(audit.Entry{Action: "update"}, err)
		if err != nil {
			return err
		}
		fmt.Printf("Cache refreshed: %d pairs at %s.\n", len(snap.Quotes), snap.RefreshedAt)
		return nil
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Refresh the rate cache periodically until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, err := buildAggregator()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sched := scheduler.New(func(ctx context.Context) error {
			_, err := agg.Update(ctx)
			return err
		}, a.cfg.UpdateInterval, a.logger)

		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func buildAggregator() (*aggregator.Aggregator, error) {
	srcs, err := sources.Build(a.cfg.Sources, sources.Options{
		Base:               a.cfg.BaseCurrency,
		FiatCodes:          a.cfg.FiatCodes,
		CryptoCodes:        a.cfg.CryptoCodes,
		CryptoIDs:          a.cfg.CryptoIDs,
		BinanceSymbols:     a.cfg.BinanceSymbols,
		ExchangeRateAPIKey: a.cfg.ExchangeRateAPIKey,
		Timeout:            a.cfg.FetchTimeout,
	})
	if err != nil {
		return nil, err
	}
	return aggregator.New(srcs, a.cache, a.logger), nil
}

// formatAmount prints small magnitudes with four decimals and everything else
// with two, so 0.0100 BTC and 50000.00 USD both read naturally.
func formatAmount(d decimal.Decimal) string {
	f := d.InexactFloat64()
	if math.Abs(f) < 1 && !d.IsZero() {
		return fmt.Sprintf("%.4f", f)
	}
	return fmt.Sprintf("%.2f", f)
}
