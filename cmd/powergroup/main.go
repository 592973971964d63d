// Command powergroup bridges power groups between Home Assistant and MQTT. Member states are read from the
// mqtt_statestream export and the derived power, standby and energy sensors are published through MQTT discovery.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mephdrac/powergroup/clock"
	"github.com/mephdrac/powergroup/config"
	"github.com/mephdrac/powergroup/energy"
	"github.com/mephdrac/powergroup/hass"
	"github.com/mephdrac/powergroup/hassmqtt"
	pglog "github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/metrics"
	"github.com/mephdrac/powergroup/monitor"
	"github.com/mephdrac/powergroup/persistence"
	"github.com/mephdrac/powergroup/server"
	"github.com/mephdrac/powergroup/state"
)

type options struct {
	configPath        string
	statePath         string
	entryID           string
	statestreamPrefix string
	topicPrefix       string
	timezone          string
	maxSubInterval    time.Duration
	meanWindow        time.Duration
	flushInterval     time.Duration
	expireAfter       time.Duration
	remove            bool
}

func configured() *options {
	o := &options{}

	configPath := lflag.String("config", "powergroup.yaml", "Path of the group configuration written by powergroup-setup")
	statePath := lflag.String("state-file", "powergroup-state.json", "Path the accumulated energy is persisted to, empty to disable persistence")
	entryID := lflag.String("entry-id", "", "Identifier of the Home Assistant device, defaults to the configuration name")
	statestreamPrefix := lflag.String("statestream-prefix", "homeassistant/statestream", "Base topic of the Home Assistant mqtt_statestream integration")
	topicPrefix := lflag.String("topic-prefix", hassmqtt.DefaultTopicPrefix, "Prefix of the state topics of published sensors")
	timezone := lflag.String("timezone", "", "IANA time zone the daily reset happens in, defaults to the local time zone")
	maxSubInterval := lflag.Duration("max-sub-interval", energy.DefaultMaxSubInterval, "Longest gap between two power samples that is still integrated")
	meanWindow := lflag.Duration("mean-window", energy.DefaultMeanWindow, "Window of the average power sensors")
	flushInterval := lflag.Duration("flush-interval", 5*time.Minute, "Interval the accumulated energy is saved at")
	expireAfter := lflag.Duration("expire-after", 0, "Mark sensors unavailable in Home Assistant if not updated in time, 0 to disable")
	remove := lflag.Bool("remove", false, "Remove the device from Home Assistant, delete the state file and exit")

	lflag.Do(func() {
		o.configPath = *configPath
		o.statePath = *statePath
		o.entryID = *entryID
		o.statestreamPrefix = *statestreamPrefix
		o.topicPrefix = *topicPrefix
		o.timezone = *timezone
		o.maxSubInterval = *maxSubInterval
		o.meanWindow = *meanWindow
		o.flushInterval = *flushInterval
		o.expireAfter = *expireAfter
		o.remove = *remove
	})

	return o
}

func main() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	o := configured()
	mqttOpts := mqttConfigured()
	srv := server.Configured(reg)

	lflag.Configure()

	var level slog.Level
	// lflag sets llog's level, slog needs the same one
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	pglog.To(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	log := pglog.ForComponent("main")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, mqttOpts, srv, metrics.New(reg)); err != nil {
		log.With(pglog.Error(err)).Error("powergroup failed")
		os.Exit(1)
	}

	log.Info("Goodbye!")
}

func run(ctx context.Context, o *options, mqttOpts *mqttOptions, srv *server.Server, m *metrics.Metrics) error {
	log := pglog.ForComponent("main")

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	loc := time.Local
	if o.timezone != "" {
		if loc, err = time.LoadLocation(o.timezone); err != nil {
			return fmt.Errorf("invalid --timezone: %w", err)
		}
	}

	entryID := o.entryID
	if entryID == "" {
		entryID = cfg.Name
	}

	var persist *persistence.Store
	if o.statePath != "" {
		persist = persistence.NewStore(o.statePath)
	}

	conn, hassAvailability, err := mqttOpts.dial(ctx, hassmqtt.AvailabilityTopic(o.topicPrefix, entryID))
	if err != nil {
		return err
	}

	pub := hassmqtt.New(conn, entryID, hassmqtt.Options{
		DiscoveryPrefix: mqttOpts.discoveryPrefix,
		TopicPrefix:     o.topicPrefix,
		ExpireAfter:     o.expireAfter,
	})

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if !o.remove {
			if err := pub.SetAvailability(shutdownCtx, hass.Unavailable); err != nil {
				log.With(pglog.Error(err)).Warn("Failed to mark sensors unavailable")
			}
		}

		log.Info("Disconnecting from mqtt")
		if err := conn.Disconnect(shutdownCtx); err != nil {
			log.With(pglog.Error(err)).Error("Failed to disconnect from mqtt")
		}
	}()

	if o.remove {
		return remove(ctx, pub, persist)
	}

	store := state.NewStore()
	mon := monitor.New(store, pub, monitor.Options{
		Clock:          clock.Real{},
		Location:       loc,
		MaxSubInterval: o.maxSubInterval,
		MeanWindow:     o.meanWindow,
		Persistence:    persist,
		FlushInterval:  o.flushInterval,
		Metrics:        m,
	})

	if persist != nil {
		saved, err := persist.Load()
		if err != nil {
			log.With(pglog.Error(err), slog.String("path", persist.Path())).Warn("Ignoring unreadable state file")
		}
		mon.Restore(saved)
	}

	monErr := make(chan error, 1)
	go func() {
		monErr <- mon.Run(ctx)
	}()
	defer mon.Close()

	if err = mon.Apply(ctx, *cfg); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	stream := state.NewStatestreamHandler(store, o.statestreamPrefix, clock.Real{})
	if err = conn.Subscribe(ctx, stream, stream.Subscriptions()...); err != nil {
		return fmt.Errorf("subscribe to statestream: %w", err)
	}

	hassAvailability.Watch(func(a hass.Availability) {
		log.With(slog.Any("availability", a)).Info("Home Assistant state changed")
		if a != hass.Available {
			return
		}

		// Watch callbacks run on the mqtt router, which must not wait on the monitor.
		go func() {
			if err := mon.Republish(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, monitor.ErrClosed) {
				log.With(pglog.Error(err)).Warn("Failed to republish sensors")
			}
		}()
	})

	go reloadOnHangup(ctx, o.configPath, mon)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Serve(ctx, mon)
	}()

	log.With(slog.String("entry", entryID), slog.Int("groups", len(cfg.Groups))).Info("Started")

	select {
	case err = <-srvErr:
	case err = <-monErr:
		if err != nil {
			err = fmt.Errorf("monitor: %w", err)
		}
	}

	return err
}

// reloadOnHangup re-applies the configuration file whenever the process receives SIGHUP.
func reloadOnHangup(ctx context.Context, path string, mon *monitor.Monitor) {
	log := pglog.ForComponent("main").With(slog.String("path", path))

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		cfg, err := config.Load(path)
		if err != nil {
			log.With(pglog.Error(err)).Error("Failed to reload config")
			continue
		}

		if err = mon.Apply(ctx, *cfg); err != nil {
			log.With(pglog.Error(err)).Error("Failed to apply reloaded config")
			continue
		}

		log.With(slog.Int("groups", len(cfg.Groups))).Info("Reloaded config")
	}
}

func remove(ctx context.Context, pub *hassmqtt.Publisher, persist *persistence.Store) error {
	var errs []error
	if err := pub.Remove(ctx); err != nil {
		errs = append(errs, fmt.Errorf("remove device: %w", err))
	}
	if persist != nil {
		if err := persist.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("remove state file: %w", err))
		}
	}

	return errors.Join(errs...)
}
