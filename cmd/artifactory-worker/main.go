package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/codepipeline"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/artifactory-worker/artifact"
	"github.com/fluxcd/artifactory-worker/daemon"
	"github.com/fluxcd/artifactory-worker/pipeline"
	"github.com/fluxcd/artifactory-worker/registry"
)

var version = "unversioned"

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  artifactory-worker does the jobs of a custom CodePipeline action,\n")
		fmt.Fprintf(os.Stderr, "  publishing each input artifact to Artifactory.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  Only one worker may run per host.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  artifactory-worker [flags] [action-version]\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	// Logging.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	v := viper.New()
	defineConfigFlags(fs, v, func(err error) {
		logger.Log("err", err)
		os.Exit(1)
	})
	var (
		configFile  = fs.String("config", "", "path to a config file; by default one is looked for in /etc/artifactory-worker")
		versionFlag = fs.Bool("version", false, "get version number")
	)
	fs.Parse(os.Args[1:])

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	conf, err := loadConfig(v, *configFile, fs.Args())
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	logger.Log("version", version, "action_provider", conf.ActionProvider, "action_version", conf.ActionVersion)

	// AWS.
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	region, regionSource, err := workerRegion(sess, conf.Region)
	if err != nil {
		logger.Log("component", "aws", "err", err)
		os.Exit(1)
	}
	logger.Log("component", "aws", "region", region, "source", regionSource)
	awsConfig := aws.NewConfig().WithRegion(region)

	// Pipeline.
	var (
		source   *pipeline.Source
		reporter *pipeline.Reporter
	)
	{
		logger := log.With(logger, "component", "pipeline")
		client := codepipeline.New(sess, awsConfig)
		source = pipeline.NewSource(client, pipeline.ActionType{
			Provider: conf.ActionProvider,
			Version:  conf.ActionVersion,
		}, conf.PollInterval, logger)
		reporter = pipeline.NewReporter(client, logger)
	}

	// Artifacts.
	fetcher := &artifact.Fetcher{
		Locator:       s3.New(sess, awsConfig),
		NewDownloader: artifact.JobDownloader,
		TempDir:       conf.TempDir,
		Logger:        log.With(logger, "component", "artifact"),
	}
	expander := &artifact.Expander{TempDir: conf.TempDir}

	// Registry.
	var publisher *registry.Publisher
	{
		logger := log.With(logger, "component", "registry")
		regConfig, err := registry.DefaultConfig()
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		regConfig.NPM = conf.NPM
		if conf.NPMRC != "" {
			regConfig.UserConfig = filepath.Clean(conf.NPMRC)
		}
		if conf.NPMCache != "" {
			regConfig.CacheDir = filepath.Clean(conf.NPMCache)
		}
		regConfig.Client = &http.Client{Timeout: conf.HTTPTimeout}
		publisher, err = registry.NewPublisher(regConfig, logger)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		logger.Log("npm", regConfig.NPM, "npmrc", regConfig.UserConfig, "npm_cache", regConfig.CacheDir)
	}

	d := &daemon.Daemon{
		Source:    source,
		Reporter:  reporter,
		Fetcher:   fetcher,
		Expander:  expander,
		Publisher: publisher,
		Logger:    log.With(logger, "component", "daemon"),
	}

	// Mechanical stuff.
	shutdown := make(chan struct{})
	errc := make(chan error)
	{
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		go awaitShutdown(c, shutdown, logger)
	}

	if conf.ListenMetrics != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Log("metrics-addr", conf.ListenMetrics)
			if err := http.ListenAndServe(conf.ListenMetrics, mux); err != nil {
				logger.Log("component", "metrics", "err", err)
			}
		}()
	}

	// Go!
	go func() {
		errc <- d.Loop(shutdown, log.With(logger, "component", "loop"))
	}()
	if err := <-errc; err != nil {
		logger.Log("exit", err)
		os.Exit(1)
	}
	logger.Log("exit", "stopped")
}
