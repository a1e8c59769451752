package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portalctl/internal/app"
	"portalctl/internal/background"
	"portalctl/internal/config"
	"portalctl/internal/diag"
	"portalctl/internal/metrics"
	"portalctl/internal/model"
	"portalctl/internal/notify"
	"portalctl/internal/router"
	"portalctl/internal/session"
)

const usage = `portalctl - WireGuard portal client

Usage:
  portalctl config init --config <path> --base-url <url>
  portalctl login --config <path> --user <name> [--password <pw>|--password-stdin]
  portalctl logout --config <path>
  portalctl session --config <path>
  portalctl providers --config <path>
  portalctl interfaces list --config <path> [--filter <text>]
  portalctl interfaces config --config <path> --iface <id>
  portalctl interfaces delete --config <path> --iface <id>
  portalctl peers list --config <path> [--iface <id>] [--filter <text>] [--sort <key>] [--desc] [--page <n>]
  portalctl peers config --config <path> --peer <id> [--style <name>]
  portalctl peers qr --config <path> --peer <id> --out <file>
  portalctl peers enable --config <path> <id>...
  portalctl peers disable --config <path> [--reason <text>] <id>...
  portalctl peers delete --config <path> <id>...
  portalctl users list --config <path> [--filter <text>]
  portalctl users peers --config <path> --user <id>
  portalctl users disable --config <path> [--reason <text>] <id>...
  portalctl audit --config <path> [--filter <text>]
  portalctl profile --config <path>
  portalctl watch --config <path>
  portalctl export csv --config <path> --out <file>
  portalctl diag --config <path> [--port <listen-port>] [--stun <servers>]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "config":
		handleConfig(os.Args[2:])
	case "login":
		handleLogin(os.Args[2:])
	case "logout":
		handleLogout(os.Args[2:])
	case "session":
		handleSession(os.Args[2:])
	case "providers":
		handleProviders(os.Args[2:])
	case "interfaces":
		handleInterfaces(os.Args[2:])
	case "peers":
		handlePeers(os.Args[2:])
	case "users":
		handleUsers(os.Args[2:])
	case "audit":
		handleAudit(os.Args[2:])
	case "profile":
		handleProfile(os.Args[2:])
	case "watch":
		handleWatch(os.Args[2:])
	case "export":
		handleExport(os.Args[2:])
	case "diag":
		handleDiag(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func handleConfig(args []string) {
	if len(args) == 0 || args[0] != "init" {
		fmt.Fprint(os.Stderr, "config subcommand required (init)\n")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	baseURL := fs.String("base-url", "", "portal API base URL (e.g. https://vpn.example.com/api/v0)")
	stateDir := fs.String("state-dir", "", "local state directory")
	_ = fs.Parse(args[1:])

	if *configPath == "" {
		fatal(errors.New("--config is required"))
	}
	if *baseURL == "" {
		fatal(errors.New("--base-url is required"))
	}

	cfg := config.Config{
		Portal: &config.PortalConfig{BaseURL: *baseURL, StateDir: *stateDir},
		Diag:   &config.DiagConfig{},
	}
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}
	if err := config.Save(*configPath, cfg); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "config written to %s\n", *configPath)
}

func handleLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	user := fs.String("user", "", "username")
	password := fs.String("password", "", "password")
	passwordStdin := fs.Bool("password-stdin", false, "read password from stdin")
	_ = fs.Parse(args)

	if *user == "" {
		fatal(errors.New("--user is required"))
	}
	pw := *password
	if *passwordStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fatal(err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		fatal(errors.New("--password or --password-stdin is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()

	// The login form flow fetches a fresh CSRF token first.
	a.Security.LoadToken(ctx)
	if _, err := a.Session.Login(ctx, *user, pw); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "logged in as %s\n", a.Session.UserIdentifier())
}

func handleLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	a.Session.Logout(context.Background())
	fmt.Fprintln(os.Stdout, "logged out")
}

func handleSession(args []string) {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	if _, err := a.Session.LoadSession(context.Background()); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			fmt.Fprintln(os.Stdout, "not logged in")
			os.Exit(1)
		}
		fatal(err)
	}

	user := a.Session.User()
	fmt.Fprintf(os.Stdout, "user=%s admin=%t name=%q email=%s\n",
		user.UserIdentifier, user.IsAdmin, strings.TrimSpace(user.Firstname+" "+user.Lastname), user.Email)
}

func handleProviders(args []string) {
	fs := flag.NewFlagSet("providers", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	a.Session.LoadProviders(context.Background())

	providers := a.Session.Providers()
	if len(providers) == 0 {
		fmt.Fprintln(os.Stdout, "no external login providers")
		return
	}
	fmt.Fprintf(os.Stdout, "%-16s  %-24s  %s\n", "IDENTIFIER", "NAME", "URL")
	for _, p := range providers {
		fmt.Fprintf(os.Stdout, "%-16s  %-24s  %s\n", p.Identifier, p.Name, p.ProviderUrl)
	}
}

func handleInterfaces(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "interfaces subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "list":
		interfacesList(args[1:])
	case "config":
		interfacesConfig(args[1:])
	case "delete":
		interfacesDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown interfaces subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func interfacesList(args []string) {
	fs := flag.NewFlagSet("interfaces list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	filter := fs.String("filter", "", "filter by name or identifier")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathInterfaces); err != nil {
		fatal(err)
	}
	a.Interfaces.LoadInterfaces(ctx)
	a.Interfaces.LoadStats(ctx)
	a.Interfaces.SetFilter(*filter)

	items := a.Interfaces.FilteredAndPaged()
	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "no interfaces")
		return
	}

	selected := a.Interfaces.SelectedId()
	fmt.Fprintf(os.Stdout, "%-12s  %-20s  %-8s  %-8s  %-6s  %-10s  %-10s\n",
		"IDENTIFIER", "NAME", "MODE", "STATE", "PEERS", "RX", "TX")
	for _, iface := range items {
		mark := " "
		if iface.Identifier == selected {
			mark = "*"
		}
		st := a.Interfaces.Statistics(iface.Identifier)
		fmt.Fprintf(os.Stdout, "%-12s  %-20s  %-8s  %-8s  %3d/%-3d  %-10s  %-10s\n",
			mark+iface.Identifier, iface.DisplayName, iface.Mode, stateLabel(iface.Disabled),
			iface.EnabledPeers, iface.TotalPeers,
			formatBytes(st.BytesReceived), formatBytes(st.BytesTransmitted))
	}
}

func interfacesConfig(args []string) {
	fs := flag.NewFlagSet("interfaces config", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	iface := fs.String("iface", "", "interface identifier")
	_ = fs.Parse(args)

	if *iface == "" {
		fatal(errors.New("--iface is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathInterfaces); err != nil {
		fatal(err)
	}
	out, err := a.Interfaces.InterfaceConfig(ctx, *iface)
	if err != nil {
		fatal(err)
	}
	fmt.Fprint(os.Stdout, out)
}

func interfacesDelete(args []string) {
	fs := flag.NewFlagSet("interfaces delete", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	iface := fs.String("iface", "", "interface identifier")
	_ = fs.Parse(args)

	if *iface == "" {
		fatal(errors.New("--iface is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathInterfaces); err != nil {
		fatal(err)
	}
	a.Interfaces.LoadInterfaces(ctx)
	if err := a.Interfaces.DeleteInterface(ctx, *iface); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "interface %s deleted\n", *iface)
}

func handlePeers(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "peers subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "list":
		peersList(args[1:])
	case "config":
		peersConfig(args[1:])
	case "qr":
		peersQR(args[1:])
	case "enable":
		peersBulk(args[1:], "enable")
	case "disable":
		peersBulk(args[1:], "disable")
	case "delete":
		peersBulk(args[1:], "delete")
	default:
		fmt.Fprintf(os.Stderr, "unknown peers subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func peersList(args []string) {
	fs := flag.NewFlagSet("peers list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	iface := fs.String("iface", "", "interface identifier (default: first)")
	filter := fs.String("filter", "", "filter by name or identifier")
	sortKey := fs.String("sort", "", "sort key: DisplayName|Identifier|UserIdentifier|Addresses|IsConnected|Traffic")
	desc := fs.Bool("desc", false, "sort descending")
	page := fs.Int("page", 1, "page number")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathInterfaces); err != nil {
		fatal(err)
	}

	target := *iface
	if target == "" {
		a.Interfaces.LoadInterfaces(ctx)
		target = a.Interfaces.SelectedId()
	}
	if target == "" {
		fatal(errors.New("no interface available, use --iface"))
	}

	a.Peers.LoadPeers(ctx, target)
	a.Peers.LoadStats(ctx, target)
	a.Peers.SetFilter(*filter)
	a.Peers.SetSortKey(*sortKey, *desc)
	a.Peers.GotoPage(*page)

	items := a.Peers.FilteredAndPaged()
	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "no peers")
		return
	}

	fmt.Fprintf(os.Stdout, "%-44s  %-20s  %-14s  %-18s  %-5s  %-10s  %-10s\n",
		"IDENTIFIER", "NAME", "USER", "ADDRESSES", "UP", "RX", "TX")
	for _, p := range items {
		st := a.Peers.Statistics(p.Identifier)
		fmt.Fprintf(os.Stdout, "%-44s  %-20s  %-14s  %-18s  %-5t  %-10s  %-10s\n",
			p.Identifier, p.DisplayName, p.UserIdentifier, strings.Join(p.Addresses, ","),
			st.IsConnected, formatBytes(st.BytesReceived), formatBytes(st.BytesTransmitted))
	}
	fmt.Fprintf(os.Stdout, "page %d of %d (%d peers)\n",
		a.Peers.CurrentPage(), len(a.Peers.Pages()), a.Peers.FilteredCount())
}

func peersConfig(args []string) {
	fs := flag.NewFlagSet("peers config", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	peer := fs.String("peer", "", "peer identifier")
	style := fs.String("style", "", "config style (e.g. wgquick)")
	_ = fs.Parse(args)

	if *peer == "" {
		fatal(errors.New("--peer is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathInterfaces); err != nil {
		fatal(err)
	}
	out, err := a.Peers.ConfigText(ctx, *peer, *style)
	if err != nil {
		fatal(err)
	}
	fmt.Fprint(os.Stdout, out)
}

func peersQR(args []string) {
	fs := flag.NewFlagSet("peers qr", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	peer := fs.String("peer", "", "peer identifier")
	out := fs.String("out", "", "output file")
	_ = fs.Parse(args)

	if *peer == "" {
		fatal(errors.New("--peer is required"))
	}
	if *out == "" {
		fatal(errors.New("--out is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathInterfaces); err != nil {
		fatal(err)
	}
	img, err := a.Peers.ConfigQR(ctx, *peer)
	if err != nil {
		fatal(err)
	}
	if err := os.WriteFile(*out, img, 0o644); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "wrote %s (%d bytes)\n", *out, len(img))
}

func peersBulk(args []string, action string) {
	fs := flag.NewFlagSet("peers "+action, flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	reason := fs.String("reason", "", "reason recorded on the peers")
	_ = fs.Parse(args)

	ids := fs.Args()
	if len(ids) == 0 {
		fatal(errors.New("at least one peer identifier is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathInterfaces); err != nil {
		fatal(err)
	}

	var err error
	switch action {
	case "enable":
		err = a.Peers.BulkEnable(ctx, ids)
	case "disable":
		err = a.Peers.BulkDisable(ctx, ids, *reason)
	case "delete":
		err = a.Peers.BulkDelete(ctx, ids)
	}
	if err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "%s: %d peers\n", action, len(ids))
}

func handleUsers(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "users subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "list":
		usersList(args[1:])
	case "peers":
		usersPeers(args[1:])
	case "disable":
		usersDisable(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown users subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func usersList(args []string) {
	fs := flag.NewFlagSet("users list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	filter := fs.String("filter", "", "filter by name, email or identifier")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathUsers); err != nil {
		fatal(err)
	}
	a.Users.LoadUsers(ctx)
	a.Users.SetFilter(*filter)

	items := a.Users.FilteredAndPaged()
	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "no users")
		return
	}

	fmt.Fprintf(os.Stdout, "%-20s  %-26s  %-10s  %-6s  %-8s  %-5s\n",
		"IDENTIFIER", "EMAIL", "SOURCE", "ADMIN", "STATE", "PEERS")
	for _, u := range items {
		fmt.Fprintf(os.Stdout, "%-20s  %-26s  %-10s  %-6t  %-8s  %5d\n",
			u.Identifier, u.Email, u.Source, u.IsAdmin, userState(u), u.PeerCount)
	}
}

func usersPeers(args []string) {
	fs := flag.NewFlagSet("users peers", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	user := fs.String("user", "", "user identifier")
	_ = fs.Parse(args)

	if *user == "" {
		fatal(errors.New("--user is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathUsers); err != nil {
		fatal(err)
	}
	a.Users.LoadUserPeers(ctx, *user)

	peers := a.Users.UserPeers(*user)
	if len(peers) == 0 {
		fmt.Fprintln(os.Stdout, "no peers")
		return
	}
	fmt.Fprintf(os.Stdout, "%-44s  %-20s  %-12s  %-8s\n", "IDENTIFIER", "NAME", "INTERFACE", "STATE")
	for _, p := range peers {
		fmt.Fprintf(os.Stdout, "%-44s  %-20s  %-12s  %-8s\n",
			p.Identifier, p.DisplayName, p.InterfaceIdentifier, stateLabel(p.Disabled))
	}
}

func usersDisable(args []string) {
	fs := flag.NewFlagSet("users disable", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	reason := fs.String("reason", "", "reason recorded on the accounts")
	_ = fs.Parse(args)

	ids := fs.Args()
	if len(ids) == 0 {
		fatal(errors.New("at least one user identifier is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathUsers); err != nil {
		fatal(err)
	}
	if err := a.Users.BulkDisable(ctx, ids, *reason); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "disabled %d users\n", len(ids))
}

func handleAudit(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	filter := fs.String("filter", "", "filter by user, severity, origin or message")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathAudit); err != nil {
		fatal(err)
	}
	a.Audit.LoadEntries(ctx)
	a.Audit.SetFilter(*filter)

	entries := a.Audit.Filtered()
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no audit entries")
		return
	}
	fmt.Fprintf(os.Stdout, "%-6s  %-24s  %-16s  %-8s  %-12s  %s\n",
		"ID", "TIMESTAMP", "USER", "SEVERITY", "ORIGIN", "MESSAGE")
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%-6d  %-24s  %-16s  %-8s  %-12s  %s\n",
			e.Id, e.Timestamp, e.ContextUser, e.Severity, e.Origin, e.Message)
	}
}

func handleProfile(args []string) {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	ctx := context.Background()
	if err := guardRoute(ctx, a, router.PathProfile); err != nil {
		fatal(err)
	}
	a.Profile.LoadUser(ctx)
	a.Profile.LoadPeers(ctx)
	a.Profile.LoadStats(ctx)

	user := a.Profile.User()
	fmt.Fprintf(os.Stdout, "user=%s email=%s admin=%t api_enabled=%t\n",
		user.Identifier, user.Email, user.IsAdmin, user.ApiEnabled)

	peers := a.Profile.All()
	if len(peers) == 0 {
		fmt.Fprintln(os.Stdout, "no peers")
		return
	}
	fmt.Fprintf(os.Stdout, "%-44s  %-20s  %-5s  %-10s  %-10s\n", "IDENTIFIER", "NAME", "UP", "RX", "TX")
	for _, p := range peers {
		st := a.Profile.Statistics(p.Identifier)
		fmt.Fprintf(os.Stdout, "%-44s  %-20s  %-5t  %-10s  %-10s\n",
			p.Identifier, p.DisplayName, st.IsConnected,
			formatBytes(st.BytesReceived), formatBytes(st.BytesTransmitted))
	}
}

func handleWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	window := fs.Duration("window", 5*time.Minute, "summary window")
	_ = fs.Parse(args)

	a := buildApp(*configPath)
	ctx, cancel := signalContext()
	defer cancel()

	if !a.Session.IsAuthenticated() {
		fatal(errors.New("not logged in"))
	}

	a.Interfaces.LoadInterfaces(ctx)
	a.Interfaces.LoadStats(ctx)
	if selected := a.Interfaces.SelectedId(); selected != "" {
		a.Peers.LoadPeers(ctx, selected)
		a.Peers.LoadStats(ctx, selected)
	}

	a.Start()
	defer a.Stop()
	a.Realtime.Connect(ctx)

	fmt.Fprintf(os.Stdout, "watching %s (realtime %s), ctrl-c to stop\n",
		a.Client.BaseURL(), a.Realtime.State())
	<-ctx.Done()

	cutoff := time.Now().UTC().Add(-*window)
	summary := metrics.Summarize(a.Samples.Samples(), cutoff)
	if summary.Count == 0 {
		fmt.Fprintln(os.Stdout, "no samples in window")
		return
	}
	fmt.Fprintf(os.Stdout, "samples=%d entities=%d from=%s to=%s\n",
		summary.Count, summary.Entities, summary.From.Format(time.RFC3339), summary.To.Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "rx total=%s avg=%s/s peak=%s/s\n",
		formatBytes(summary.BytesReceived), formatBytes(uint64(summary.AvgRxBytesPerSec)), formatBytes(uint64(summary.PeakRxBytesPerSec)))
	fmt.Fprintf(os.Stdout, "tx total=%s avg=%s/s peak=%s/s\n",
		formatBytes(summary.BytesTransmitted), formatBytes(uint64(summary.AvgTxBytesPerSec)), formatBytes(uint64(summary.PeakTxBytesPerSec)))
}

func handleExport(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "export subcommand required\n")
		os.Exit(2)
	}
	if args[0] != "csv" {
		fmt.Fprintf(os.Stderr, "unknown export format %q\n", args[0])
		os.Exit(2)
	}

	fs := flag.NewFlagSet("export csv", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	out := fs.String("out", "", "output file")
	_ = fs.Parse(args[1:])

	if *out == "" {
		fatal(errors.New("--out is required"))
	}

	a := buildApp(*configPath)
	ctx := context.Background()
	a.Interfaces.LoadInterfaces(ctx)

	// One stats round trip, then dump the collected samples.
	refresh := background.StatsRefresh(a.Session, a.Interfaces, a.Peers, a.Samples, *out)
	refresh()

	if a.Samples.Len() == 0 {
		fatal(errors.New("no traffic samples collected"))
	}
	fmt.Fprintf(os.Stdout, "exported %d samples to %s\n", a.Samples.Len(), *out)
}

func handleDiag(args []string) {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	port := fs.Int("port", 51820, "interface listen port for the endpoint suggestion")
	stunList := fs.String("stun", "", "comma-separated STUN servers")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	servers := config.DefaultSTUNServers
	timeout := time.Duration(config.DefaultProbeTimeoutSec) * time.Second
	if cfg.Diag != nil {
		servers = cfg.Diag.STUNServers
		timeout = time.Duration(cfg.Diag.ProbeTimeoutSec) * time.Second
	}
	if *stunList != "" {
		servers = splitList(*stunList)
	}

	report, err := diag.SuggestEndpoint(context.Background(), servers, timeout, *port)
	if err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "public_addr=%s nat=%s\n", report.PublicAddr, report.NATType)
	fmt.Fprintf(os.Stdout, "suggested peer endpoint: %s\n", report.SuggestedEndpoint)
	if report.NATType == diag.NATTypeSymmetric {
		fmt.Fprintln(os.Stdout, "warning: symmetric NAT detected, inbound peers will likely need a relay")
	}
}

// guardRoute consults the navigation guard before a restricted command
// runs, applying the same access rules as the portal views.
func guardRoute(ctx context.Context, a *app.App, path string) error {
	d := a.Navigator.Navigate(ctx, path)
	if !d.Redirected {
		return nil
	}
	if d.Route.Path == router.PathLogin {
		return errors.New("not logged in, run portalctl login first")
	}
	return errors.New("access denied, admin rights are required")
}

func buildApp(configPath string) *app.App {
	cfg := loadConfig(configPath)
	a, err := app.New(cfg, notify.LogNotifier{})
	if err != nil {
		fatal(err)
	}
	return a
}

func loadConfig(path string) config.Config {
	if path == "" {
		fatal(errors.New("--config is required"))
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func stateLabel(disabled bool) string {
	if disabled {
		return "disabled"
	}
	return "enabled"
}

func userState(u model.User) string {
	switch {
	case u.Locked:
		return "locked"
	case u.Disabled:
		return "disabled"
	default:
		return "active"
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
