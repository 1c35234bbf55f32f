package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/convoycd/convoy/api"
	"github.com/convoycd/convoy/apply"
	"github.com/convoycd/convoy/daemon"
	"github.com/convoycd/convoy/history"
	convoyhttp "github.com/convoycd/convoy/http"
	"github.com/convoycd/convoy/instance"
	"github.com/convoycd/convoy/pipeline"
	"github.com/convoycd/convoy/registry"
	"github.com/convoycd/convoy/remote"
	"github.com/convoycd/convoy/rollout"
	"github.com/convoycd/convoy/runtime"
	"github.com/convoycd/convoy/scheduler"
)

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  convoyd is a deployment orchestration daemon.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		listenAddr     = fs.StringP("listen", "l", ":3040", "Listen address for convoy API clients")
		pipelinePath   = fs.String("pipeline", "convoy.yml", "Path to the pipeline definition")
		instancesPath  = fs.String("instances", "instances.yml", "Path to the instances configuration")
		execTarget     = fs.String("exec-target", "local", "Transport target script jobs run on")
		registryKind   = fs.String("registry", "memory", `Artifact registry backend: "memory" or "s3"`)
		registryBucket = fs.String("registry-bucket", "convoy-artifacts", "Bucket for the s3 registry backend")
		registryHost   = fs.String("registry-endpoint", "", "Endpoint for the s3 registry backend")
		registryTLS    = fs.Bool("registry-tls", true, "Use TLS for the s3 registry backend")
		databaseSource = fs.String("database-source", "", `Database source for run history, e.g. "postgres://user@host/db"; in-memory if empty`)
		databaseDriver = fs.String("database-driver", "postgres", "Database driver for run history")
	)
	fs.Parse(os.Args[1:])

	// Logger domain.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	// Pipeline and instance configuration.
	graph, err := pipeline.ParseFile(*pipelinePath)
	if err != nil {
		logger.Log("err", err)
		os.Exit(2)
	}
	instances, err := instance.ParseConfigFile(*instancesPath)
	if err != nil {
		logger.Log("err", err)
		os.Exit(2)
	}
	instanceStore := instance.NewInMem(instances)

	// Artifact registry component. Credentials come from the
	// environment and are never logged.
	var reg registry.Client
	{
		logger := log.With(logger, "component", "registry")
		switch *registryKind {
		case "memory":
			reg = registry.NewInMem()
			logger.Log("backend", "memory")
		case "s3":
			s3reg, err := registry.NewMinio(registry.MinioConfig{
				Endpoint:  *registryHost,
				AccessKey: os.Getenv("CONVOY_REGISTRY_ACCESS_KEY"),
				SecretKey: os.Getenv("CONVOY_REGISTRY_SECRET_KEY"),
				Bucket:    *registryBucket,
				Secure:    *registryTLS,
			})
			if err != nil {
				logger.Log("err", err)
				os.Exit(2)
			}
			reg = s3reg
			logger.Log("backend", "s3", "endpoint", *registryHost, "bucket", *registryBucket)
		default:
			logger.Log("err", fmt.Sprintf("unknown registry backend %q", *registryKind))
			os.Exit(2)
		}
		reg = registry.Instrument(reg, registry.NewMetrics())
	}

	// Transport and container runtime.
	transport := &remote.Local{Logger: log.With(logger, "component", "transport")}
	engine := &runtime.Docker{Transport: transport}

	// Apply and rollout components.
	applier := apply.NewEngine(reg, engine, instanceStore,
		log.With(logger, "component", "apply"), apply.NewMetrics())
	rollouts := rollout.NewCoordinator(applier, instanceStore,
		log.With(logger, "component", "rollout"), rollout.NewMetrics())

	// Scheduler.
	runner := &scheduler.JobRunner{
		Transport: transport,
		Target:    *execTarget,
		Registry:  reg,
		Rollouts:  rollouts,
		Logger:    log.With(logger, "component", "runner"),
	}
	sched := scheduler.New(runner, log.With(logger, "component", "scheduler"), scheduler.NewMetrics())

	// Run history.
	var events history.DB
	{
		logger := log.With(logger, "component", "history")
		if *databaseSource == "" {
			events = history.NewInMemDB()
			logger.Log("db", "memory")
		} else {
			events, err = history.NewSQL(*databaseDriver, *databaseSource, logger)
			if err != nil {
				logger.Log("err", err)
				os.Exit(2)
			}
			logger.Log("db", *databaseDriver)
		}
	}

	// Service (business logic) domain.
	var service api.Service
	{
		service = daemon.New(graph, sched, events, log.With(logger, "component", "daemon"))
		service = api.LoggingMiddleware(log.With(logger, "component", "api"))(service)
	}

	// Mechanical stuff.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		router := convoyhttp.NewRouter()
		handler := convoyhttp.NewHandler(service, router, log.With(logger, "component", "http"))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", handler)
		logger.Log("addr", *listenAddr)
		errc <- http.ListenAndServe(*listenAddr, mux)
	}()

	logger.Log("exiting", <-errc)
}
