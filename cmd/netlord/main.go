package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/rmax-ai/netlord/pkg/client"
	"github.com/rmax-ai/netlord/pkg/mcp"
	"github.com/rmax-ai/netlord/pkg/netlist"
	"github.com/rmax-ai/netlord/pkg/patch"
	"github.com/rmax-ai/netlord/pkg/rules"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: netlord <command> [args]

Commands:
  apply <base> <batch.json> [rule-set]     apply a patch batch against a base version
  netlist <base> <netlist.json> [rule-set] import a netlist document atomically
  undo <base> <inverse.json>               apply a saved inverse batch
  check [version] [rule-set]               re-run checks without changing anything
  graph [version]                          print a graph version as JSON
  report [rule-set] [csv]                  print the latest report (JSON, or CSV export)
  versions                                 list archived versions
  status                                   daemon health
  mcp                                      serve the Model Context Protocol on stdio

Environment:
  NETLORD_API_URL    daemon address (default http://127.0.0.1:8090)
  NETLORD_API_TOKEN  bearer token for mutating commands
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	endpoint := os.Getenv("NETLORD_API_URL")
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}

	c := client.NewClient(endpoint)
	if token := os.Getenv("NETLORD_API_TOKEN"); token != "" {
		c.SetToken(token)
	}

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "apply":
		err = cmdApply(ctx, c, os.Args[2:])
	case "netlist":
		err = cmdNetlist(ctx, c, os.Args[2:])
	case "undo":
		err = cmdUndo(ctx, c, os.Args[2:])
	case "check":
		err = cmdCheck(ctx, c, os.Args[2:])
	case "graph":
		err = cmdGraph(ctx, c, os.Args[2:])
	case "report":
		err = cmdReport(ctx, c, endpoint, os.Args[2:])
	case "versions":
		err = cmdVersions(ctx, c)
	case "status":
		err = cmdStatus(ctx, c)
	case "mcp":
		err = mcp.NewServer(endpoint).Serve()
	case "version":
		fmt.Printf("netlord %s (%s, built %s)\n", Version, Commit, BuildTime)
	default:
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdApply(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: netlord apply <base> <batch.json> [rule-set]")
	}
	base, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid base version %q: %w", args[0], err)
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	var batch patch.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("invalid batch file: %w", err)
	}
	ruleSet := rules.SetAll
	if len(args) > 2 {
		ruleSet = args[2]
	}

	result, err := c.ApplyPatchRetry(ctx, base, &batch, ruleSet)
	if err != nil {
		return err
	}
	return printResult(result)
}

func cmdNetlist(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: netlord netlist <base> <netlist.json> [rule-set]")
	}
	base, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid base version %q: %w", args[0], err)
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	var nl netlist.Netlist
	if err := json.Unmarshal(data, &nl); err != nil {
		return fmt.Errorf("invalid netlist file: %w", err)
	}
	ruleSet := rules.SetAll
	if len(args) > 2 {
		ruleSet = args[2]
	}

	result, err := c.ImportNetlist(ctx, base, &nl, ruleSet)
	if err != nil {
		return err
	}
	return printResult(result)
}

func cmdUndo(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: netlord undo <base> <inverse.json>")
	}
	base, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid base version %q: %w", args[0], err)
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	var inverse patch.Batch
	if err := json.Unmarshal(data, &inverse); err != nil {
		return fmt.Errorf("invalid inverse batch file: %w", err)
	}

	// An inverse batch only makes sense against the exact version it was
	// produced for, so no stale-base rebasing here.
	result, err := c.ApplyPatch(ctx, base, &inverse, rules.SetAll)
	if err != nil {
		return err
	}
	return printResult(result)
}

func cmdCheck(ctx context.Context, c *client.Client, args []string) error {
	var version int64
	if len(args) > 0 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		version = parsed
	}
	ruleSet := rules.SetAll
	if len(args) > 1 {
		ruleSet = args[1]
	}

	report, err := c.Validate(ctx, version, ruleSet)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func cmdGraph(ctx context.Context, c *client.Client, args []string) error {
	var version int64
	if len(args) > 0 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		version = parsed
	}

	v, err := c.GetGraph(ctx, version)
	if err != nil {
		return err
	}
	return printJSON(v)
}

func cmdReport(ctx context.Context, c *client.Client, endpoint string, args []string) error {
	ruleSet := ""
	if len(args) > 0 {
		ruleSet = args[0]
	}

	if len(args) > 1 && args[1] == "csv" {
		// CSV export streams straight from the daemon.
		u := endpoint + "/v1/report?format=csv"
		if ruleSet != "" {
			u += "&rule_set=" + url.QueryEscape(ruleSet)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %s: %s", resp.Status, string(body))
		}
		_, err = io.Copy(os.Stdout, resp.Body)
		return err
	}

	report, err := c.GetReport(ctx, ruleSet)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func cmdVersions(ctx context.Context, c *client.Client) error {
	versions, err := c.ListVersions(ctx, 50)
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Printf("%d\t%s\t%d nodes\t%d edges\t%s\n",
			v.Version, v.TsCommitted.Format("2006-01-02 15:04:05"), v.NodeCount, v.EdgeCount, v.Namespace)
	}
	return nil
}

func cmdStatus(ctx context.Context, c *client.Client) error {
	status, err := c.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w\nIs netlord-d running?", err)
	}
	fmt.Printf("Status: %s\n", status.Status)
	return nil
}

func printResult(result *client.PatchResult) error {
	if result.ValidationUnavailable {
		fmt.Printf("Committed version %d, but validation did not run: %s\n", result.Version, result.ValidationError)
		fmt.Println("Re-run checks with: netlord check")
		return nil
	}
	return printJSON(map[string]any{
		"version": result.Version,
		"report":  result.Report,
		"inverse": result.Inverse,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
