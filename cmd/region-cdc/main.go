package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/estuary/flow/go/regionendpoint"
	"github.com/estuary/flow/go/regiontopology"
	"github.com/estuary/flow/go/regiontransport"
	"github.com/fatih/color"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	mbp "go.gazette.dev/core/mainboilerplate"
	"go.gazette.dev/core/server"
	"go.gazette.dev/core/task"
)

const iniFilename = "region-cdc.ini"

// Config is the top-level configuration object of the region-cdc server.
var Config = new(struct {
	RegionCDC struct {
		mbp.ServiceConfig
		NumWorkers            int    `long:"workers" env:"WORKERS" default:"8" description:"Number of cooperative workers region traffic is hash-partitioned across"`
		WorkerQueueDepth      int    `long:"worker-queue-depth" env:"WORKER_QUEUE_DEPTH" default:"256" description:"Pending command capacity per worker before Submit blocks"`
		RegistryPath          string `long:"registry" env:"REGISTRY" default:"region-cdc.db" description:"Path to the sqlite region/worker assignment registry"`
		MaxTrackedDownstreams int    `long:"max-tracked-downstreams" env:"MAX_TRACKED_DOWNSTREAMS" default:"4096" description:"LRU bound on the diagnostic downstream-peer index"`
		PeerKey               string `long:"peer-key" env:"PEER_KEY" required:"true" description:"Shared HMAC key authenticating Subscribe callers"`
	} `group:"RegionCDC" namespace:"regioncdc" env-namespace:"REGIONCDC"`

	Etcd struct {
		mbp.EtcdConfig
		TopologyPrefix string `long:"topology-prefix" env:"TOPOLOGY_PREFIX" default:"/regioncdc/topology" description:"Etcd key prefix watched for region split/merge notices"`
	} `group:"Etcd" namespace:"etcd" env-namespace:"ETCD"`

	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
})

type cmdServe struct{}

func (cmdServe) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()
	mbp.InitLog(Config.Log)

	log.WithFields(log.Fields{
		"config":    Config,
		"version":   mbp.Version,
		"buildDate": mbp.BuildDate,
	}).Info("region-cdc configuration")

	endpoint, err := regionendpoint.NewEndpoint(regionendpoint.Config{
		NumWorkers:            Config.RegionCDC.NumWorkers,
		WorkerQueueDepth:      Config.RegionCDC.WorkerQueueDepth,
		RegistryPath:          Config.RegionCDC.RegistryPath,
		MaxTrackedDownstreams: Config.RegionCDC.MaxTrackedDownstreams,
	})
	mbp.Must(err, "building region endpoint")

	var auth = regiontransport.NewPeerAuthenticator([]byte(Config.RegionCDC.PeerKey))
	var api = regiontransport.NewAPI(endpoint, auth)

	// Bind our server listener, grabbing a random available port if Port is zero.
	srv, err := server.New("", Config.RegionCDC.Port)
	mbp.Must(err, "building Server instance")

	regiontransport.RegisterRegionChangeDataServer(srv.GRPCServer, api)
	grpc_prometheus.Register(srv.GRPCServer)

	var (
		etcd     = Config.Etcd.MustDial()
		tasks    = task.NewGroup(context.Background())
		signalCh = make(chan os.Signal, 1)
	)

	var watcher = regiontopology.NewWatcher(etcd, Config.Etcd.TopologyPrefix, endpoint)
	tasks.Queue("regiontopology.Watch", func() error {
		if err := watcher.Run(tasks.Context()); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	srv.QueueTasks(tasks)

	// Install signal handler & start tasks.
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	tasks.Queue("watch signalCh", func() error {
		select {
		case sig := <-signalCh:
			log.WithField("signal", sig).Info("caught signal")
			tasks.Cancel()
			srv.BoundedGracefulStop()
			return endpoint.Stop()
		case <-tasks.Context().Done():
			return nil
		}
	})
	tasks.GoRun()

	// Block until all tasks complete. Assert none returned an error.
	mbp.Must(tasks.Wait(), "region-cdc task failed")
	log.Info("goodbye")

	return nil
}

// cmdRegions prints a colorized table of the region/worker assignments
// persisted in the registry, for operators inspecting a running or recently
// stopped process (§4.9, grounded on flowctl-go/cmd-api-build.go's coloring
// convention).
type cmdRegions struct{}

func (cmdRegions) Execute(_ []string) error {
	var registry, err = regionendpoint.OpenRegistry(Config.RegionCDC.RegistryPath)
	mbp.Must(err, "opening region registry")
	defer registry.Close()

	assignments, err := registry.List()
	mbp.Must(err, "listing region assignments")

	var green = color.New(color.FgGreen).SprintFunc()
	var yellow = color.New(color.FgYellow).SprintFunc()

	fmt.Printf("%-12s %-8s %-10s %-10s\n", "REGION", "WORKER", "CONF_VER", "VERSION")
	for _, a := range assignments {
		var version = yellow(a.Version)
		if a.Version > 0 {
			version = green(a.Version)
		}
		fmt.Printf("%-12d %-8d %-10d %-10s\n", a.RegionID, a.Worker, a.ConfVer, version)
	}
	if len(assignments) == 0 {
		fmt.Println(yellow("no regions currently assigned"))
	}
	return nil
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("serve", "Serve region change-data subscriptions", `
Serve region change-data subscriptions with the provided configuration, until
signaled to exit (via SIGTERM).
`, &cmdServe{})

	_, _ = parser.AddCommand("regions", "Print a table of live region assignments", `
Print a colorized table of the region/worker assignments persisted by a
region-cdc server's registry.
`, &cmdRegions{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
