package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/gops/agent"
	"github.com/gorilla/mux"

	"github.com/corridorcache/baseline-engine/internal/config"
	"github.com/corridorcache/baseline-engine/internal/metricsource"
	"github.com/corridorcache/baseline-engine/internal/repository"
	"github.com/corridorcache/baseline-engine/internal/statscache"
	"github.com/corridorcache/baseline-engine/pkg/log"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// version is set via -ldflags at release build time.
var version = "development"

func main() {
	cliInit()

	if flagVersion {
		fmt.Printf("baselined %s\n", version)
		return
	}

	log.SetLogLevel(flagLogLevel)
	log.SetLogDateTime(flagLogDateTime)

	// See https://github.com/google/gops (runtime overhead is near zero).
	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if flagMigrateDB {
		if err := repository.MigrateDB(flagDBDriver, flagDBTarget); err != nil {
			log.Fatalf("migrate-db failed: %s", err.Error())
		}
		return
	}

	// Wiring order: load configuration, then connect the cache store it
	// names, then build the metric source adapter and start the scheduler,
	// which both use the connected store.
	config.Init(flagConfigFile)
	repository.Connect(config.Keys.Cache.Database.Driver, config.Keys.Cache.Database.Path)
	repo := repository.GetRepository()

	source, err := metricsource.NewAdapter(config.Keys.MetricSource, repo)
	if err != nil {
		log.Fatalf("metric source adapter init failed: %s", err.Error())
	}

	manager := statscache.NewManager(repo, source, hostnameOrFallback())

	scheduler, err := startScheduler(repo, config.Keys.Scheduler)
	if err != nil {
		log.Fatalf("scheduler init failed: %s", err.Error())
	}

	router := newRouter(repo, manager)

	var wg sync.WaitGroup
	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		Handler:      router,
		Addr:         config.Keys.Addr,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("baselined listening at %s", server.Addr)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sigs
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("graceful shutdown failed: %s", err.Error())
		}
		if err := scheduler.Shutdown(); err != nil {
			log.Warnf("scheduler shutdown failed: %s", err.Error())
		}
	}()

	wg.Wait()
}

// startScheduler registers the opportunistic background sweep jobs (§4.D's
// dft_cache TTL sweep and §5's build-lease expiry sweep) on gocron, the way
// the teacher's internal/taskManager.Start drives its own recurring
// services.
func startScheduler(repo *repository.Repository, cfg schema.SchedulerConfig) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := repo.SweepExpired()
			if err != nil {
				log.Warnf("dft_cache TTL sweep failed: %s", err.Error())
				return
			}
			if n > 0 {
				log.Debugf("dft_cache TTL sweep removed %d rows", n)
			}
		}),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := repo.SweepExpiredLeases()
			if err != nil {
				log.Warnf("build_leases sweep failed: %s", err.Error())
				return
			}
			if n > 0 {
				log.Debugf("build_leases sweep reclaimed %d leases", n)
			}
		}),
	); err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}

// newRouter wires the small ops-facing HTTP surface SPEC_FULL.md §9.1 adds:
// a health check and a debug endpoint to inspect one fingerprint's cached
// corridor model. The outward PromQL-compatible query façade itself is out
// of scope (spec.md §1); this is the minimal surface needed to operate the
// engine standalone.
func newRouter(repo *repository.Repository, manager *statscache.Manager) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/debug/cache/{fingerprint}", func(w http.ResponseWriter, req *http.Request) {
		model, err := repo.LoadByHash(mux.Vars(req)["fingerprint"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if model == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model)
	}).Methods(http.MethodGet)

	r.HandleFunc("/corridor", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		query := q.Get("query")
		labels := q.Get("labels")
		if labels == "" {
			labels = "{}"
		}
		start, err1 := strconv.ParseInt(q.Get("start"), 10, 64)
		end, err2 := strconv.ParseInt(q.Get("end"), 10, 64)
		step, err3 := strconv.ParseInt(q.Get("step"), 10, 64)
		if query == "" || err1 != nil || err2 != nil || err3 != nil || step <= 0 || end < start {
			http.Error(w, "query, start, end and step (>0, start<=end) are required", http.StatusBadRequest)
			return
		}

		recon, err := manager.GetCorridor(query, labels, start, end, step, nil, nil, config.Keys.Cache)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recon)
	}).Methods(http.MethodGet)

	return r
}

func hostnameOrFallback() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fmt.Sprintf("baselined-%d", os.Getpid())
	}
	return fmt.Sprintf("%s-%d", h, os.Getpid())
}
