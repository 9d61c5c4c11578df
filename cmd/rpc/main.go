package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	. "github.com/alexdcox/cardano-connector"
	"github.com/alexdcox/cardano-connector/graphql"
	"github.com/alexdcox/cardano-connector/kms"
	"github.com/alexdcox/cardano-connector/rpcclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const envPrefix = "CARDANO_CONNECTOR_"

type _config struct {
	ConfigFile      string `json:"-"`
	Network         string `json:"network"`
	Backend         string `json:"backend"`
	GraphQLUrl      string `json:"graphqlurl"`
	NodeRpcHostPort string `json:"noderpchostport"`
	RpcHostPort     string `json:"rpchostport"`
	MetricsHostPort string `json:"metricshostport"`
	KmsStore        string `json:"kmsstore"`
	KmsDatabasePath string `json:"kmsdatabasepath"`
	AmqpUri         string `json:"amqpuri"`
	GenesisFile     string `json:"genesisfile"`
	LogLevel        string `json:"loglevel"`
}

func (c *_config) Load(args []string) (err error) {
	fs := flag.NewFlagSet("cardano-connector", flag.ContinueOnError)
	fs.StringVar(&c.ConfigFile, "config", "", "Optional json file whose values are applied before flags")
	fs.StringVar(&c.Network, "network", "", "Set network (mainnet|preprod|preview|privnet)")
	fs.StringVar(&c.Backend, "backend", "graphql", "Chain data backend (graphql|rpc)")
	fs.StringVar(&c.GraphQLUrl, "graphqlurl", "", "cardano-graphql endpoint (default: the network's public endpoint)")
	fs.StringVar(&c.NodeRpcHostPort, "noderpchostport", "localhost:3002", "Set host:port of the cardano-go rpc service when --backend=rpc")
	fs.StringVar(&c.RpcHostPort, "rpchostport", "localhost:6543", "Set host:port for the http/rpc listener")
	fs.StringVar(&c.MetricsHostPort, "metricshostport", "", "Set host:port for the prometheus listener (disabled when empty)")
	fs.StringVar(&c.KmsStore, "kmsstore", "sqlite", "Custodial signing store (sqlite|memory)")
	fs.StringVar(&c.KmsDatabasePath, "kmsdatabasepath", "cardano-kms.db", "Path to the kms sqlite database")
	fs.StringVar(&c.AmqpUri, "amqpuri", "", "Announce kms requests on this amqp broker (disabled when empty)")
	fs.StringVar(&c.GenesisFile, "genesisfile", "", "Optional shelley-genesis.json overriding the fee parameters")
	fs.StringVar(&c.LogLevel, "loglevel", "", "Set the log level (trace|debug|info|warn|error|fatal) Can also be set via the CARDANO_CONNECTOR_LOG_LEVEL environment variable")

	if err = fs.Parse(args); err != nil {
		return errors.WithStack(err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if c.ConfigFile != "" {
		if err = c.overlay(c.ConfigFile, set); err != nil {
			return
		}
	}

	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] || f.Name == "config" {
			return
		}
		envName := envPrefix + envKey(f.Name)
		if v := os.Getenv(envName); v != "" {
			_ = fs.Set(f.Name, v)
		}
	})

	return c.Validate()
}

// overlay applies a json file, leaving values given on the command line alone.
func (c *_config) overlay(path string, set map[string]bool) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file '%s'", path)
	}

	file := &_config{}
	if err = json.Unmarshal(data, file); err != nil {
		return errors.Wrapf(err, "failed to parse config file '%s'", path)
	}

	apply := func(name string, dst *string, v string) {
		if v != "" && !set[name] {
			*dst = v
		}
	}

	apply("network", &c.Network, file.Network)
	apply("backend", &c.Backend, file.Backend)
	apply("graphqlurl", &c.GraphQLUrl, file.GraphQLUrl)
	apply("noderpchostport", &c.NodeRpcHostPort, file.NodeRpcHostPort)
	apply("rpchostport", &c.RpcHostPort, file.RpcHostPort)
	apply("metricshostport", &c.MetricsHostPort, file.MetricsHostPort)
	apply("kmsstore", &c.KmsStore, file.KmsStore)
	apply("kmsdatabasepath", &c.KmsDatabasePath, file.KmsDatabasePath)
	apply("amqpuri", &c.AmqpUri, file.AmqpUri)
	apply("genesisfile", &c.GenesisFile, file.GenesisFile)
	apply("loglevel", &c.LogLevel, file.LogLevel)

	return
}

func (c *_config) Validate() (err error) {
	if err = Network(c.Network).Validate(); err != nil {
		return
	}
	if c.Backend != "graphql" && c.Backend != "rpc" {
		return errors.Errorf("unknown backend '%s'", c.Backend)
	}
	if c.KmsStore != "sqlite" && c.KmsStore != "memory" {
		return errors.Errorf("unknown kms store '%s'", c.KmsStore)
	}
	if c.RpcHostPort == "" {
		return errors.New("http/rpc host/port not configured")
	}
	return
}

func envKey(flagName string) string {
	switch flagName {
	case "loglevel":
		return "LOG_LEVEL"
	}
	return strings.ToUpper(flagName)
}

var log = Log()

var config *_config

func main() {
	config = &_config{}

	if err := config.Load(os.Args[1:]); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	logLevel, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Msgf("%+v", errors.WithStack(err))
	}

	log.Info().Msgf("setting log level to: '%s'", logLevel)
	zerolog.SetGlobalLevel(logLevel)

	network := Network(config.Network)

	if config.GenesisFile != "" {
		genesis, err := LoadShelleyGenesis(config.GenesisFile)
		if err != nil {
			log.Fatal().Msgf("%+v", err)
		}
		if err = network.ApplyGenesis(genesis); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}

	backend, err := newBackend(network)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	store, err := newKmsStore()
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	service, err := NewService(network, backend, store)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	httpServer, err := NewHttpRpcServer(config, service, store)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	go func() {
		if err = httpServer.Start(); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}()

	if config.MetricsHostPort != "" {
		go func() {
			if err := serveMetrics(config.MetricsHostPort); err != nil {
				log.Error().Msgf("metrics listener stopped: %+v", err)
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info().Msg("caught interrupt/terminate signal, attempting graceful shutdown...")

	if err = httpServer.Stop(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	if err = store.Close(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	log.Info().Msg("graceful shutdown complete")
}

func newBackend(network Network) (Backend, error) {
	switch config.Backend {
	case "rpc":
		log.Info().Msgf("using cardano-go rpc backend at %s", config.NodeRpcHostPort)
		return rpcclient.NewRpcClient(config.NodeRpcHostPort, network)
	default:
		client, err := graphql.NewClient(config.GraphQLUrl, network)
		if err != nil {
			return nil, err
		}
		log.Info().Msgf("using cardano-graphql backend at %s", client.Url)
		return client, nil
	}
}

func newKmsStore() (store kms.Store, err error) {
	switch config.KmsStore {
	case "memory":
		store = kms.NewInMemoryStore()
	default:
		dir := filepath.Dir(config.KmsDatabasePath)
		if !DirectoryExists(dir) {
			err = errors.Errorf("kms database directory '%s' does not exist", dir)
			return
		}
		if store, err = kms.NewSqliteStore(config.KmsDatabasePath); err != nil {
			return
		}
	}

	if config.AmqpUri != "" {
		store, err = kms.NewAmqpStore(config.AmqpUri, store)
	}

	return
}
