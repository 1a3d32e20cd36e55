package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/netlord/pkg/api"
	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/rules"
	"github.com/rmax-ai/netlord/pkg/store"
	redisstore "github.com/rmax-ai/netlord/pkg/store/redis"
	"github.com/rmax-ai/netlord/pkg/validate"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"netlord-d"}`)

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	// SQLite archive: versions, reports, webhooks, leases, dispatcher cursor.
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","path":"%s"}`+"\n", cfg.DBPath)

	// In-memory graph store, rehydrated from the newest archived version so a
	// restart does not reset the version counter.
	gs := graph.NewStore(cfg.Retain)
	if rec, err := st.GetLatestVersion(context.Background()); err == nil {
		var v graph.Version
		if err := json.Unmarshal(rec.Payload, &v); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_decode_archived_version","version":%d,"error":"%v"}`+"\n", rec.Version, err)
			os.Exit(1)
		}
		if err := gs.Restore(&v); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_restore_version","version":%d,"error":"%v"}`+"\n", rec.Version, err)
			os.Exit(1)
		}
		fmt.Printf(`{"level":"info","msg":"graph_restored","version":%d,"nodes":%d,"edges":%d}`+"\n", v.N, len(v.Nodes), len(v.Edges))
	} else if !errors.Is(err, store.ErrNotFound) {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_load_latest_version","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	// Rule engine: built-in layout unless a rule sets file overrides it.
	engine := rules.DefaultEngine()
	if sets, err := rules.LoadRuleSets(cfg.RulesPath); err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_load_rule_sets","path":"%s","error":"%v"}`+"\n", cfg.RulesPath, err)
		os.Exit(1)
	} else if sets != nil {
		engine, err = rules.NewEngine(rules.BuiltinRules(), sets)
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"invalid_rule_sets","path":"%s","error":"%v"}`+"\n", cfg.RulesPath, err)
			os.Exit(1)
		}
		fmt.Printf(`{"level":"info","msg":"rule_sets_loaded","path":"%s"}`+"\n", cfg.RulesPath)
	}

	validator := validate.New(gs, engine)

	server := api.NewServer(validator, st, cfg.Addr, cfg.Retain)
	server.SetAuthToken(cfg.AuthToken)
	server.SetValidateTimeout(cfg.ValidateTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Writer election: Redis when configured, otherwise the lease table in
	// the SQLite archive (single-host deployments).
	var leases store.LeaseStore = st
	if cfg.RedisAddr != "" {
		leases = redisstore.NewLeaseStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		fmt.Printf(`{"level":"info","msg":"lease_store_redis","addr":"%s"}`+"\n", cfg.RedisAddr)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "netlord"
	}
	holderID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	election := validate.NewElection(leases, holderID, "netlord-writer", cfg.LeaseTTL, nil, nil)
	election.Start(ctx)
	server.SetElection(election)

	dispatcher := api.NewDispatcher(st)
	go dispatcher.Start(ctx)

	go func() {
		if err := server.Start(); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"server_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":"%v"}`+"\n", err)
	}
	election.Stop(shutdownCtx)
	cancel()

	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}
