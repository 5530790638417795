package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"andvaranaut/internal/cli"
	"andvaranaut/internal/core"
	"andvaranaut/internal/remote"
	"andvaranaut/internal/remote/httpapi"
	"andvaranaut/internal/remote/memory"
	"andvaranaut/internal/services"
)

const usage = `Usage: andvaranaut <command> [args]

Commands:
  register <username> <password>   create an account on the server
  login <username> <password>      print a bearer token for ANDVARANAUT_TOKEN
  show [month]                     print the month calendar (default: current)
  set <date> <events>              replace a day's events and sync
  clear <date>                     remove all events of a day and sync
  transit [unit-price]             show or update the commute unit price
  stats                            print per-month commute and geek-seek totals

Events are a comma separated list of category[:amount], e.g.
  commute,geek-seek:1200 or commute:500 for an explicit fare.

Set LOCAL_CALENDAR_FILE to run against a local JSON file instead of the server.`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()

	command, args := os.Args[1], os.Args[2:]

	// register and login talk to the API before any token exists.
	api := httpapi.NewClient(cfg.ServerURL)
	switch command {
	case "register":
		requireArgs(args, 2, "register <username> <password>")
		if err := api.Register(ctx, args[0], args[1]); err != nil {
			fatal(err)
		}
		fmt.Println("account created")
		return
	case "login":
		requireArgs(args, 2, "login <username> <password>")
		token, expiresAt, err := api.Authenticate(ctx, args[0], args[1])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("export ANDVARANAUT_TOKEN=%s\n", token)
		fmt.Printf("# valid until %s\n", expiresAt.Format(time.RFC3339))
		return
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	}

	gateway, token := openGateway(cfg.ServerURL)

	switch command {
	case "show":
		month := currentMonthOrArg(args)
		runShow(ctx, gateway, token, month, cfg.DebounceDelay, cfg.LookaheadDays)
	case "set":
		requireArgs(args, 2, "set <date> <events>")
		runSet(ctx, gateway, token, args[0], args[1], cfg.DebounceDelay, cfg.LookaheadDays)
	case "clear":
		requireArgs(args, 1, "clear <date>")
		runSet(ctx, gateway, token, args[0], "", cfg.DebounceDelay, cfg.LookaheadDays)
	case "transit":
		runTransit(ctx, api, gateway, token, args)
	case "stats":
		runStats(ctx, api, gateway, token, cfg.FareRule, cfg.DebounceDelay, cfg.LookaheadDays)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", command, usage)
		os.Exit(2)
	}
}

// openGateway returns the remote gateway and the token it should use.
// With LOCAL_CALENDAR_FILE set the calendar lives in a local JSON file
// and no token is needed.
func openGateway(serverURL string) (remote.Gateway, string) {
	if path := os.Getenv("LOCAL_CALENDAR_FILE"); path != "" {
		price := 0
		if v := os.Getenv("TRANSIT_UNIT_PRICE"); v != "" {
			price, _ = strconv.Atoi(v)
		}
		return memory.NewFromFile(path, core.TransitInformation{UnitPrice: price}), "local"
	}
	return httpapi.NewClient(serverURL), os.Getenv("ANDVARANAUT_TOKEN")
}

func newController(gateway remote.Gateway, token string, month core.MonthKey, debounce time.Duration, lookahead int) *services.SyncController {
	config := services.DefaultSyncControllerConfig()
	config.DebounceDelay = debounce
	config.LookaheadDays = lookahead
	return services.NewSyncController(gateway, token, month, config)
}

func runShow(ctx context.Context, gateway remote.Gateway, token string, month core.MonthKey, debounce time.Duration, lookahead int) {
	controller := newController(gateway, token, month, debounce, lookahead)
	defer controller.Close()

	if err := controller.Load(ctx); err != nil {
		fatal(err)
	}

	fmt.Printf("Calendar %s\n", month)
	fmt.Println("Mon        Tue        Wed        Thu        Fri        Sat        Sun")
	for i, day := range controller.Days() {
		fmt.Print(formatDayCell(day))
		if (i+1)%7 == 0 {
			fmt.Println()
		}
	}
	if transit := controller.Transit(); transit != nil && transit.UnitPrice > 0 {
		fmt.Printf("\ncommute unit price: %d\n", transit.UnitPrice)
	}
}

func formatDayCell(day core.DayRecord) string {
	if day.IsPadding() {
		return fmt.Sprintf("%-11s", "·")
	}
	marks := make([]string, 0, len(day.Events))
	for _, e := range day.Events {
		marks = append(marks, categoryMark(e.Type))
	}
	cell := fmt.Sprintf("%02d%s", day.Date.Day(), strings.Join(marks, ""))
	return fmt.Sprintf("%-11s", cell)
}

func categoryMark(c core.Category) string {
	switch c {
	case core.Commute:
		return "C"
	case core.Remote:
		return "R"
	case core.Walking:
		return "w"
	case core.GeekSeek:
		return "g"
	case core.Drinking:
		return "d"
	case core.Energy:
		return "e"
	case core.Nuka:
		return "n"
	default:
		return "?"
	}
}

func runSet(ctx context.Context, gateway remote.Gateway, token, dateArg, eventsArg string, debounce time.Duration, lookahead int) {
	date, err := time.ParseInLocation("2006-01-02", dateArg, time.UTC)
	if err != nil {
		fatal(fmt.Errorf("invalid date %q: expected YYYY-MM-DD", dateArg))
	}

	events, err := parseEvents(eventsArg)
	if err != nil {
		fatal(err)
	}

	controller := newController(gateway, token, core.MonthKeyOf(date), debounce, lookahead)
	defer controller.Close()

	if err := controller.Load(ctx); err != nil {
		fatal(err)
	}

	index := -1
	for i, day := range controller.Days() {
		if !day.IsPadding() && day.Date.Equal(date) {
			index = i
			break
		}
	}
	if index < 0 {
		fatal(fmt.Errorf("date %s is not part of the loaded calendar window", dateArg))
	}

	if err := controller.UpdateDay(index, events); err != nil {
		fatal(err)
	}
	if err := controller.Flush(ctx); err != nil {
		fatal(err)
	}

	saved := controller.Days()[index]
	if len(saved.Events) == 0 {
		fmt.Printf("%s cleared\n", dateArg)
		return
	}
	names := make([]string, 0, len(saved.Events))
	for _, e := range saved.Events {
		names = append(names, string(e.Type))
	}
	fmt.Printf("%s: %s\n", dateArg, strings.Join(names, ", "))
}

// parseEvents turns "commute:500,geek-seek:1200" into the requested event
// bag. The amount after the colon is a fare for commute and walking and a
// price for everything else.
func parseEvents(s string) ([]core.Event, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var events []core.Event
	for _, part := range strings.Split(s, ",") {
		spec := strings.TrimSpace(part)
		category, amountStr, hasAmount := strings.Cut(spec, ":")

		event, ok := core.DefaultEvent(core.Category(category))
		if !ok {
			return nil, fmt.Errorf("unknown category %q", category)
		}
		if hasAmount {
			amount, err := strconv.Atoi(amountStr)
			if err != nil || amount < 0 {
				return nil, fmt.Errorf("invalid amount %q for %s", amountStr, category)
			}
			if event.Type == core.Commute || event.Type == core.Walking {
				event = event.WithFare(amount)
			} else {
				event.Amounts = amount
			}
		}
		events = append(events, event)
	}
	return events, nil
}

func runTransit(ctx context.Context, api *httpapi.Client, gateway remote.Gateway, token string, args []string) {
	if len(args) == 0 {
		info, err := gateway.TransitInformation(ctx, token)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("unit price: %d\n", info.UnitPrice)
		if !info.LastModified.IsZero() {
			fmt.Printf("last modified: %s\n", info.LastModified.Format(time.RFC3339))
		}
		return
	}

	if os.Getenv("LOCAL_CALENDAR_FILE") != "" {
		fatal(fmt.Errorf("transit updates need the server; unset LOCAL_CALENDAR_FILE"))
	}
	price, err := strconv.Atoi(args[0])
	if err != nil || price < 0 {
		fatal(fmt.Errorf("invalid unit price %q", args[0]))
	}
	if err := api.SaveTransitInformation(ctx, token, price); err != nil {
		fatal(err)
	}
	fmt.Printf("unit price set to %d\n", price)
}

func runStats(ctx context.Context, api *httpapi.Client, gateway remote.Gateway, token, fareRuleName string, debounce time.Duration, lookahead int) {
	// Against the server the worker's materialized aggregates are the
	// source of truth, so the full day history never needs to come down.
	if os.Getenv("LOCAL_CALENDAR_FILE") == "" {
		stats, err := api.MonthlyStats(ctx, token)
		if err != nil {
			fatal(err)
		}
		printStatsHeader()
		// The server serves newest first; print oldest first.
		for i := len(stats) - 1; i >= 0; i-- {
			s := stats[i]
			printStatsRow(core.MonthKey(s.Month), s.CommuteCount, s.WalkCount, s.CommuteCost, s.GeekSeekTimes, s.GeekSeekAmounts)
		}
		return
	}

	rule, err := services.GetFareRule(fareRuleName)
	if err != nil {
		fatal(err)
	}

	month := core.MonthKeyOf(time.Now())
	controller := newController(gateway, token, month, debounce, lookahead)
	defer controller.Close()

	if err := controller.Load(ctx); err != nil {
		fatal(err)
	}

	days := controller.Days()
	commute := services.ComputeCommuteStats(days, controller.Transit(), rule)
	geekSeek := services.ComputeGeekSeekStats(days)

	seen := map[core.MonthKey]bool{}
	var keys []core.MonthKey
	for key := range commute.Counts {
		seen[key] = true
		keys = append(keys, key)
	}
	for key := range geekSeek {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	printStatsHeader()
	for _, key := range keys {
		g := geekSeek[key]
		printStatsRow(key, commute.Counts[key], commute.WalkCounts[key], commute.Costs[key], g.Times, g.Amounts)
	}
	fmt.Printf("from %s: %d commute months, cost %d, geek-seek %d\n",
		month, len(commute.MonthsFrom(month)), commute.TotalCostFrom(month), services.TotalGeekSeekFrom(geekSeek, month))
}

func printStatsHeader() {
	fmt.Printf("%-8s %8s %6s %8s %10s %10s\n", "month", "commutes", "walks", "cost", "geek-seek", "amounts")
}

func printStatsRow(month core.MonthKey, commutes, walks, cost, times, amounts int) {
	fmt.Printf("%-8s %8d %6d %8d %10d %10d\n", month, commutes, walks, cost, times, amounts)
}

func currentMonthOrArg(args []string) core.MonthKey {
	if len(args) == 0 {
		return core.MonthKeyOf(time.Now())
	}
	month, err := core.ParseMonthKey(args[0])
	if err != nil {
		fatal(fmt.Errorf("invalid month %q: expected YYYY-MM", args[0]))
	}
	return month
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: andvaranaut %s\n", usage)
		os.Exit(2)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
