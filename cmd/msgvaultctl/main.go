package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/msgvault/internal/account"
	"github.com/matheus3301/msgvault/internal/config"
	"github.com/matheus3301/msgvault/internal/engine"
	"github.com/matheus3301/msgvault/internal/engine/remote"
	"github.com/matheus3301/msgvault/internal/engines"
	"github.com/matheus3301/msgvault/internal/store"
	"github.com/matheus3301/msgvault/internal/transfer"
	"go.uber.org/zap"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	remoteFlag := flag.String("remote", "", "daemon base URL, e.g. http://127.0.0.1:8420 (empty = open the engine directly)")
	clearFlag := flag.Bool("clear", false, "clear the destination before copy (copy command)")
	flag.Parse()

	accountName := account.Resolve(*accountFlag)
	if err := account.ValidateName(accountName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(account.ConfigPath())
	if err != nil {
		cfg = config.Default()
	}

	e, kind, err := openEngine(ctx, cfg, accountName, *remoteFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = e.Close() }()

	vault := store.New(e)

	switch args[0] {
	case "status":
		cmdStatus(ctx, vault, accountName, kind, *remoteFlag, *jsonFlag)
	case "get":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgvaultctl get <key>")
			os.Exit(1)
		}
		cmdGet(ctx, e, args[1], *jsonFlag)
	case "set":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: msgvaultctl set <key> <value>")
			os.Exit(1)
		}
		cmdSet(ctx, e, args[1], args[2])
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgvaultctl delete <key>")
			os.Exit(1)
		}
		cmdDelete(ctx, e, args[1], *jsonFlag)
	case "keys":
		pattern := "*"
		if len(args) >= 2 {
			pattern = args[1]
		}
		cmdKeys(ctx, e, pattern, *jsonFlag)
	case "namespaces":
		cmdNamespaces(ctx, e, *jsonFlag)
	case "chats":
		cmdChats(ctx, vault, parseIntArg(args, 1, 20), parseIntArg(args, 2, 0), *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgvaultctl messages <chat-id> [limit [offset]]")
			os.Exit(1)
		}
		cmdMessages(ctx, vault, args[1], parseIntArg(args, 2, 20), parseIntArg(args, 3, 0), *jsonFlag)
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgvaultctl search <query> [chat-id]")
			os.Exit(1)
		}
		cid := ""
		if len(args) >= 3 {
			cid = args[2]
		}
		cmdSearch(ctx, vault, args[1], cid, *jsonFlag)
	case "copy":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgvaultctl copy <engine-type>")
			os.Exit(1)
		}
		cmdCopy(e, kind, cfg, accountName, args[1], *clearFlag, *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: msgvaultctl [--account <name>] [--remote <url>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                          Show engine and daemon status")
	fmt.Fprintln(os.Stderr, "  get <key>                       Print the raw value stored at key")
	fmt.Fprintln(os.Stderr, "  set <key> <value>               Write a raw value at key")
	fmt.Fprintln(os.Stderr, "  delete <key>                    Remove a key")
	fmt.Fprintln(os.Stderr, "  keys [pattern]                  List keys, optionally filtered")
	fmt.Fprintln(os.Stderr, "  namespaces                      Summarize top-level namespaces")
	fmt.Fprintln(os.Stderr, "  chats [limit [offset]]          List chats, most recent first")
	fmt.Fprintln(os.Stderr, "  messages <chat> [limit [off]]   List messages, most recent first")
	fmt.Fprintln(os.Stderr, "  search <query> [chat]           Search message text")
	fmt.Fprintln(os.Stderr, "  copy <engine-type> [--clear]    Copy the store into another configured engine")
}

// openEngine either connects to a running daemon or opens the configured
// engine in-process. The returned kind names what we are talking to.
func openEngine(ctx context.Context, cfg *config.Config, accountName, remoteURL string) (engine.Engine, string, error) {
	if remoteURL != "" {
		return remote.New(remoteURL, nil), "remote", nil
	}
	e, err := engines.Open(ctx, cfg.Engine, accountName)
	if err != nil {
		return nil, "", err
	}
	return e, engines.Kind(cfg.Engine), nil
}

func parseIntArg(args []string, i, def int) int {
	if len(args) <= i {
		return def
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %q is not a number\n", args[i])
		os.Exit(1)
	}
	return n
}

func cmdStatus(ctx context.Context, vault *store.Store, accountName, kind, remoteURL string, jsonOut bool) {
	// Against a daemon, report what it says about itself.
	if remoteURL != "" {
		resp, err := http.Get(strings.TrimRight(remoteURL, "/") + "/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: cannot reach daemon at %s: %v\n", remoteURL, err)
			os.Exit(1)
		}
		defer func() { _ = resp.Body.Close() }()
		var st struct {
			Account string `json:"account"`
			Engine  string `json:"engine"`
			State   string `json:"state"`
			Scanner bool   `json:"scanner"`
			Stamper bool   `json:"stamper"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			fmt.Fprintf(os.Stderr, "error: decode status: %v\n", err)
			os.Exit(1)
		}
		if jsonOut {
			outputJSON(st)
			return
		}
		fmt.Printf("Account: %s\n", st.Account)
		fmt.Printf("Engine:  %s\n", st.Engine)
		fmt.Printf("State:   %s\n", st.State)
		fmt.Printf("Scan:    %v\n", st.Scanner)
		fmt.Printf("Stamps:  %v\n", st.Stamper)
		return
	}

	e := vault.Engine()
	_, scanner := e.(engine.Scanner)
	_, stamper := e.(engine.Stamper)
	chats, err := vault.Chats().Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	contacts, err := vault.Contacts().Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]any{
			"account": accountName, "engine": kind,
			"scanner": scanner, "stamper": stamper,
			"chats": chats, "contacts": contacts,
		})
		return
	}
	fmt.Printf("Account:  %s\n", accountName)
	fmt.Printf("Engine:   %s\n", kind)
	fmt.Printf("Scan:     %v\n", scanner)
	fmt.Printf("Stamps:   %v\n", stamper)
	fmt.Printf("Chats:    %d\n", chats)
	fmt.Printf("Contacts: %d\n", contacts)
}

func cmdGet(ctx context.Context, e engine.Engine, key string, jsonOut bool) {
	value, ok, err := e.Get(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "error: key %q not found\n", key)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]string{"key": key, "value": value})
		return
	}
	fmt.Println(value)
}

func cmdSet(ctx context.Context, e engine.Engine, key, value string) {
	if err := e.Set(ctx, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdDelete(ctx context.Context, e engine.Engine, key string, jsonOut bool) {
	removed, err := e.Delete(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]bool{"removed": removed})
		return
	}
	if !removed {
		fmt.Fprintf(os.Stderr, "key %q not found\n", key)
		os.Exit(1)
	}
	fmt.Printf("removed %s\n", key)
}

func cmdKeys(ctx context.Context, e engine.Engine, pattern string, jsonOut bool) {
	keys, err := engine.ScanKeys(ctx, e, pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	sort.Strings(keys)
	if jsonOut {
		outputJSON(map[string][]string{"keys": keys})
		return
	}
	for _, k := range keys {
		fmt.Println(k)
	}
}

func cmdNamespaces(ctx context.Context, e engine.Engine, jsonOut bool) {
	counts := map[string]int{}
	err := e.Keys(ctx, func(key string) bool {
		ns := key
		if i := strings.IndexByte(key, '/'); i >= 0 {
			ns = key[:i]
		}
		counts[ns]++
		return true
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(counts)
		return
	}
	names := make([]string, 0, len(counts))
	for ns := range counts {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		fmt.Printf("%-12s %d\n", ns, counts[ns])
	}
}

func cmdChats(ctx context.Context, vault *store.Store, limit, offset int, jsonOut bool) {
	chats, err := vault.Chats().Recent(ctx, offset, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(chats)
		return
	}
	if len(chats) == 0 {
		fmt.Println("No chats found.")
		return
	}
	for _, c := range chats {
		fmt.Printf("%-28s %-8s %s\n", c.ID, c.Type, c.Name)
	}
}

func cmdMessages(ctx context.Context, vault *store.Store, cid string, limit, offset int, jsonOut bool) {
	msgs, err := vault.Messages(cid).Recent(ctx, offset, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	if len(msgs) == 0 {
		fmt.Println("No messages found.")
		return
	}
	for _, m := range msgs {
		stamp := "-"
		if m.CreatedAt > 0 {
			stamp = time.UnixMilli(m.CreatedAt).Local().Format("2006-01-02 15:04")
		}
		sender := m.SenderID
		if m.FromMe {
			sender = "me"
		}
		fmt.Printf("%s  %-20s %s\n", stamp, sender, m.Caption)
	}
}

func cmdSearch(ctx context.Context, vault *store.Store, query, cid string, jsonOut bool) {
	results, err := vault.SearchMessages(ctx, query, cid, 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No matches found.")
		return
	}
	for _, r := range results {
		fmt.Printf("%-28s %-24s %s\n", r.Message.ChatID, r.Message.ID, r.Snippet)
	}
}

// cmdCopy drains the current engine into another engine configured for the
// same account. Runs without the command timeout; large stores take a while.
func cmdCopy(src engine.Engine, srcKind string, cfg *config.Config, accountName, dstType string, clear, jsonOut bool) {
	if dstType == srcKind {
		fmt.Fprintf(os.Stderr, "error: source and destination are both %q\n", srcKind)
		os.Exit(1)
	}
	ctx := context.Background()

	dstCfg := cfg.Engine
	dstCfg.Type = dstType
	dst, err := engines.Open(ctx, dstCfg, accountName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open %s engine: %v\n", dstType, err)
		os.Exit(1)
	}
	defer func() { _ = dst.Close() }()

	logger, _ := zap.NewDevelopment()
	result, err := transfer.NewCopier(logger).Copy(ctx, src, dst, transfer.Options{Clear: clear})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]any{"entries": result.Entries, "destination": dstType})
		return
	}
	fmt.Printf("copied %d entries to %s\n", result.Entries, dstType)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
