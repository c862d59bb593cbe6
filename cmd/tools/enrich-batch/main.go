// cmd/tools/enrich-batch/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"prospect-workers/internal/common/camunda"
	"prospect-workers/internal/common/config"
	"prospect-workers/internal/common/database"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/batch"
	"prospect-workers/internal/prospect/wiring"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (default: configs/config.yaml lookup)")
	limit := flag.Int("limit", 50, "Maximum number of pending prospects to enrich")
	failFast := flag.Bool("fail-fast", false, "Stop at the first failed prospect")
	jsonOut := flag.Bool("json", false, "Print per-prospect results as JSON lines")
	viaBPMN := flag.Bool("bpmn", false, "Start one BPMN process per prospect instead of enriching in-process")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, "console")
	defer zapLog.Sync()
	zap.ReplaceGlobals(zapLog)
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err == nil {
		err = pg.Ping(ctx)
	}
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	backends := wiring.Backends{DB: pg.DB}
	if rc, err := database.NewRedis(cfg.Database.Redis); err == nil && rc.Ping(ctx) == nil {
		defer rc.Close()
		backends.Redis = rc.Client
	} else {
		zapLog.Warn("redis unavailable, crawling without cache")
	}
	if cfg.Database.Elasticsearch.Enabled() {
		if ec, err := database.NewElasticsearch(cfg.Database.Elasticsearch); err == nil && ec.Ping(ctx) == nil {
			backends.ES = ec.Client
		} else {
			zapLog.Warn("elasticsearch unavailable, prospects will not be indexed")
		}
	}

	components, err := wiring.Build(cfg, backends, log)
	if err != nil {
		zapLog.Fatal("enrichment stack init failed", zap.Error(err))
	}

	pending, err := components.Store.ListPending(ctx, *limit)
	if err != nil {
		zapLog.Fatal("listing pending prospects failed", zap.Error(err))
	}
	if len(pending) == 0 {
		fmt.Println("No pending prospects.")
		return
	}
	zapLog.Info("enriching pending prospects", zap.Int("count", len(pending)))

	if *viaBPMN {
		started, err := startProcesses(ctx, cfg, pending, zapLog)
		fmt.Printf("Started %d/%d %s processes\n", started, len(pending), cfg.Camunda.ProcessID)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	opts := wiring.BatchOptions(cfg)
	if *failFast {
		opts.FailurePolicy = batch.FailurePolicyFailFast
	}
	runner := batch.NewRunner(components.Pipeline, opts, log)

	out, err := runner.Run(ctx, pending)
	if err != nil {
		zapLog.Error("batch aborted", zap.Error(err))
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		for _, o := range out {
			_ = enc.Encode(resultLine(o))
		}
	}
	printSummary(batch.Summarize(out))
}

// startProcesses hands each prospect to the broker. The enrich-prospect worker
// then loads it by id.
func startProcesses(ctx context.Context, cfg *config.Config, pending []models.Prospect, log *zap.Logger) (int, error) {
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		log.Error("zeebe unavailable", zap.Error(err))
		return 0, err
	}
	defer zeebe.Close()

	started := 0
	for _, p := range pending {
		key, err := zeebe.StartProcess(ctx, cfg.Camunda.ProcessID, processVariables{ProspectID: p.ID, RunMode: "bpmn"})
		if err != nil {
			log.Error("starting process failed", zap.String("prospectId", p.ID), zap.Error(err))
			return started, err
		}
		log.Debug("process started", zap.String("prospectId", p.ID), zap.Int64("processInstanceKey", key))
		started++
	}
	return started, nil
}

type processVariables struct {
	ProspectID string `json:"prospectId"`
	RunMode    string `json:"runMode"`
}

type line struct {
	ProspectID string `json:"prospectId"`
	Tier       string `json:"tier,omitempty"`
	Score      int    `json:"score"`
	Email      string `json:"email,omitempty"`
	Error      string `json:"error,omitempty"`
}

func resultLine(o batch.Output) line {
	l := line{ProspectID: o.ProspectID}
	if o.Err != nil {
		l.Error = o.Err.Error()
		return l
	}
	l.Tier = o.Result.Tier
	l.Score = o.Result.Score.Total
	if e := o.Result.Enrichment.ValidatedEmail; e != nil {
		l.Email = *e
	}
	return l
}

func printSummary(s batch.Summary) {
	fmt.Printf("Enriched %d/%d prospects (%d failed, %d skipped)\n", s.Succeeded, s.Total, s.Failed, s.Skipped)
	tiers := make([]string, 0, len(s.ByTier))
	for t := range s.ByTier {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		fmt.Printf("  %-5s %d\n", t, s.ByTier[t])
	}
}
