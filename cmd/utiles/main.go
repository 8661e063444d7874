// Command utiles runs the order client: it loads orders and the catalog, follows
// realtime status updates, prints the dashboard and opens orders from deep links read
// on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/danielCarlosRodriguez/utilesApp/internal/analytics"
	"github.com/danielCarlosRodriguez/utilesApp/internal/dashboard"
	"github.com/danielCarlosRodriguez/utilesApp/internal/device"
	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	"github.com/danielCarlosRodriguez/utilesApp/internal/gateway"
	infracfg "github.com/danielCarlosRodriguez/utilesApp/internal/infra/config"
	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
	"github.com/danielCarlosRodriguez/utilesApp/internal/orderlist"
	"github.com/danielCarlosRodriguez/utilesApp/internal/realtime"
	"github.com/danielCarlosRodriguez/utilesApp/internal/selection"
	"github.com/danielCarlosRodriguez/utilesApp/internal/telemetry"
)

const (
	defaultConfigPath        = "config/app.yaml"
	loggerPrefix             = "utiles "
	refreshTimeout           = 30 * time.Second
	shutdownTimeout          = 15 * time.Second
	selectionShutdownTimeout = 5 * time.Second
	realtimeShutdownTimeout  = 5 * time.Second
	lifecycleShutdownTimeout = 5 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

type cliFlags struct {
	configPath string
	period     string
	link       string
	pushToken  string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newLogger()
	observability.SetLogger(observability.NewZeroLogger(os.Stderr, flags.debug))

	configPath := resolveConfigPath(flags.configPath)
	appCfg, loadedFromFile, err := infracfg.LoadOrDefault(ctx, configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s, backend=%s", appCfg.Environment, appCfg.Backend.BaseURL)

	telemetryProvider, err := initTelemetry(ctx, logger, appCfg)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	period, err := resolvePeriod(flags.period, appCfg.Dashboard.Period)
	if err != nil {
		logger.Fatalf("dashboard period: %v", err)
	}
	locale := analytics.LocaleFor(appCfg.Dashboard.Locale)
	out := os.Stdout

	gw := gateway.New(gateway.OptionsFromConfig(appCfg.Backend))
	orders := orderlist.NewStore()
	dash := dashboard.New(gw, dashboard.WithLocale(locale), dashboard.WithPeriod(period))
	sel := selection.New(gw, selection.OnSelect(func(o schema.Order) {
		printOrder(out, o, locale)
	}))

	prefs, err := device.OpenPrefs(appCfg.Device.PrefsPath, device.WithDefaultName(appCfg.Device.DefaultName))
	if err != nil {
		logger.Fatalf("open device prefs: %v", err)
	}
	name, err := prefs.DeviceName()
	if err != nil {
		logger.Printf("device name not persisted: %v", err)
	}
	logger.Printf("device: %s", name)

	if flags.pushToken != "" {
		registerPush(ctx, logger, device.NewPushRegistrar(prefs, gw), flags.pushToken)
	}

	refreshAll(ctx, logger, orders, dash, gw)
	printDashboard(out, dash.Data(), locale)

	if flags.once {
		if flags.link != "" {
			if err := sel.HandleURL(ctx, flags.link); err != nil {
				logger.Printf("open link: %v", err)
			}
		}
		shutdownTelemetry(logger, telemetryProvider)
		return
	}

	var lifecycle conc.WaitGroup

	var channel *realtime.Channel
	if appCfg.Realtime.IsEnabled() {
		channel, err = startRealtime(ctx, logger, &lifecycle, appCfg, orders, dash, out, locale)
		if err != nil {
			logger.Fatalf("start realtime: %v", err)
		}
	} else {
		logger.Print("realtime disabled; order list will not follow updates")
	}

	urls := readURLs(ctx, &lifecycle, os.Stdin)
	if err := sel.Watch(ctx, flags.link, urls); err != nil {
		logger.Fatalf("watch deep links: %v", err)
	}

	logger.Print("client started; paste order links on stdin, Ctrl-C to exit")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		mainCancel: cancel,
		selection:  sel,
		channel:    channel,
		lifecycle:  &lifecycle,
		telemetry:  telemetryProvider,
	})
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.StringVar(&f.period, "period", "", "Dashboard period: week, month or year (default from config)")
	flag.StringVar(&f.link, "link", "", "Order deep link to open at startup")
	flag.StringVar(&f.pushToken, "push-token", "", "Push token to register for this device")
	flag.BoolVar(&f.once, "once", false, "Print the dashboard and exit")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, loggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}

func resolvePeriod(flagValue, configValue string) (analytics.Period, error) {
	raw := strings.TrimSpace(flagValue)
	if raw == "" {
		raw = configValue
	}
	if strings.TrimSpace(raw) == "" {
		return analytics.DefaultPeriod, nil
	}
	return analytics.ParsePeriod(raw)
}

func initTelemetry(ctx context.Context, logger *log.Logger, appCfg infracfg.AppConfig) (*telemetry.Provider, error) {
	cfg := appCfg.Telemetry
	telemetryCfg := telemetry.DefaultConfig()
	if cfg.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
		telemetryCfg.Enabled = true
	}
	if cfg.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.ServiceName
	}
	telemetryCfg.Environment = string(appCfg.Environment)
	telemetryCfg.OTLPInsecure = cfg.OTLPInsecure
	telemetryCfg.EnableMetrics = cfg.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}

	if provider.Enabled() {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

func registerPush(ctx context.Context, logger *log.Logger, registrar *device.PushRegistrar, token string) {
	sent, err := registrar.Register(ctx, token)
	switch {
	case err != nil:
		logger.Printf("push registration failed: %v", err)
	case sent:
		logger.Print("push token registered")
	default:
		logger.Print("push token already registered")
	}
}

// refreshAll loads the order list and the dashboard side by side.
func refreshAll(ctx context.Context, logger *log.Logger, orders *orderlist.Store, dash *dashboard.Controller, source orderlist.Source) {
	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	var failures [2]error
	var wg conc.WaitGroup
	wg.Go(func() { failures[0] = orders.Refresh(refreshCtx, source) })
	wg.Go(func() { failures[1] = dash.Refresh(refreshCtx) })
	wg.Wait()
	if err := observability.AggregateErrors("startup refresh", failures[:]); err != nil {
		logger.Printf("refresh incomplete: %v", err)
	}
	logger.Printf("orders loaded: %d", orders.Len())
}

func startRealtime(ctx context.Context, logger *log.Logger, lifecycle *conc.WaitGroup, appCfg infracfg.AppConfig, orders *orderlist.Store, dash *dashboard.Controller, out io.Writer, locale analytics.Locale) (*realtime.Channel, error) {
	channel := realtime.New(realtime.ConfigFromApp(appCfg))

	_, listUpdates, err := channel.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe order list: %w", err)
	}
	_, dashUpdates, err := channel.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe dashboard: %w", err)
	}
	_, logUpdates, err := channel.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe printer: %w", err)
	}

	if err := channel.Start(ctx); err != nil {
		return nil, fmt.Errorf("start channel: %w", err)
	}

	lifecycle.Go(func() { orders.Follow(ctx, listUpdates) })
	lifecycle.Go(func() { dash.Follow(ctx, dashUpdates) })
	lifecycle.Go(func() {
		for evt := range logUpdates {
			fmt.Fprintf(out, "order %s -> %s\n", evt.OrderID, locale.StatusLabel(evt.Status))
		}
	})
	lifecycle.Go(func() {
		select {
		case <-channel.Ready():
			logger.Printf("realtime connected: %s", appCfg.SocketURL())
		case <-channel.Done():
		case <-ctx.Done():
			return
		}
		select {
		case <-channel.Done():
			if channel.State() == realtime.StateGaveUp {
				logger.Print("realtime gave up reconnecting; restart to resume live updates")
			}
		case <-ctx.Done():
		}
	})
	return channel, nil
}

// readURLs forwards non-empty stdin lines until EOF or ctx ends.
func readURLs(ctx context.Context, lifecycle *conc.WaitGroup, in io.Reader) <-chan string {
	urls := make(chan string)
	lines := make(chan string)
	// Scanner blocks on Read, so it runs outside the lifecycle group.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	lifecycle.Go(func() {
		defer close(urls)
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					return
				}
				if line = strings.TrimSpace(line); line == "" {
					continue
				}
				select {
				case urls <- line:
				case <-ctx.Done():
					return
				}
			}
		}
	})
	return urls
}

func printDashboard(w io.Writer, data *analytics.DashboardData, loc analytics.Locale) {
	if data == nil {
		fmt.Fprintln(w, "dashboard: no data")
		return
	}
	fmt.Fprintf(w, "== dashboard (%s) ==\n", data.Period)
	fmt.Fprintf(w, "revenue %s | orders %d | average %s\n",
		analytics.FormatCurrency(data.KPIs.TotalRevenue, loc),
		data.KPIs.TotalOrders,
		analytics.FormatCurrency(data.KPIs.AverageOrderValue, loc))

	for _, c := range data.OrdersByStatus {
		fmt.Fprintf(w, "  %-16s %d\n", c.Label, c.Count)
	}
	fmt.Fprintln(w, "-- revenue --")
	for _, b := range data.RevenueByPeriod {
		fmt.Fprintf(w, "  %-8s %s (%d)\n", b.Label, analytics.FormatCurrency(b.Revenue, loc), b.Orders)
	}
	fmt.Fprintln(w, "-- top products --")
	for i, p := range data.TopProducts {
		fmt.Fprintf(w, "  %d. %s x%d %s\n", i+1, p.Title, p.QuantitySold, analytics.FormatCurrency(p.Revenue, loc))
	}
	fmt.Fprintln(w, "-- recent orders --")
	for _, o := range data.RecentOrders {
		fmt.Fprintf(w, "  #%s %s %s %s\n",
			o.DisplayNumber(),
			loc.Placeholder(o.CustomerName),
			loc.StatusLabel(o.Status),
			analytics.FormatShortDate(o.CreatedAt.Time, time.Local))
	}
}

func printOrder(w io.Writer, o schema.Order, loc analytics.Locale) {
	fmt.Fprintf(w, "== order #%s ==\n", o.DisplayNumber())
	fmt.Fprintf(w, "status:   %s\n", loc.StatusLabel(o.Status))
	fmt.Fprintf(w, "customer: %s\n", loc.Placeholder(o.CustomerName))
	fmt.Fprintf(w, "address:  %s\n", loc.Placeholder(o.CustomerAddress))
	fmt.Fprintf(w, "phone:    %s\n", loc.Placeholder(o.CustomerPhone))
	if o.CustomerNote != "" {
		fmt.Fprintf(w, "note:     %s\n", o.CustomerNote)
	}
	for _, item := range o.Items {
		fmt.Fprintf(w, "  %dx %s %s\n", item.Quantity, item.Title, analytics.FormatCurrency(item.Subtotal, loc))
	}
	fmt.Fprintf(w, "total:    %s\n", analytics.FormatCurrency(o.Total(), loc))
}

type gracefulShutdownConfig struct {
	mainCancel context.CancelFunc
	selection  *selection.Store
	channel    *realtime.Channel
	lifecycle  *conc.WaitGroup
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}
	waitFor := func(stepCtx context.Context, fn func()) error {
		done := make(chan struct{})
		go func() {
			fn()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-stepCtx.Done():
			return fmt.Errorf("timeout: %w", stepCtx.Err())
		}
	}

	logger.Print("shutdown: cancelling main context")
	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.selection != nil {
		shutdownStep("stopping deep-link watchers", selectionShutdownTimeout, func(stepCtx context.Context) error {
			return waitFor(stepCtx, cfg.selection.Close)
		})
	}

	if cfg.channel != nil {
		shutdownStep("closing realtime channel", realtimeShutdownTimeout, func(stepCtx context.Context) error {
			return waitFor(stepCtx, cfg.channel.Close)
		})
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			return waitFor(stepCtx, cfg.lifecycle.Wait)
		})
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}

func shutdownTelemetry(logger *log.Logger, provider *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		logger.Printf("shutdown telemetry: %v", err)
	}
}
