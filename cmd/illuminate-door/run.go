package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petro31/illuminate-door/internal/activity"
	"github.com/petro31/illuminate-door/internal/api"
	"github.com/petro31/illuminate-door/internal/automation"
	"github.com/petro31/illuminate-door/internal/bridges/homeassistant"
	"github.com/petro31/illuminate-door/internal/bridges/mqttbridge"
	"github.com/petro31/illuminate-door/internal/eventloop"
	"github.com/petro31/illuminate-door/internal/infrastructure/config"
	"github.com/petro31/illuminate-door/internal/infrastructure/influxdb"
	"github.com/petro31/illuminate-door/internal/infrastructure/logging"
	"github.com/petro31/illuminate-door/internal/infrastructure/mqtt"
	"github.com/petro31/illuminate-door/internal/sun"
)

const (
	// shutdownTimeout bounds terminating the automations on exit.
	shutdownTimeout = 10 * time.Second

	// retentionInterval is how often old activity is pruned.
	retentionInterval = time.Hour
)

// hostBackend is what a host bridge provides to the door automations.
type hostBackend interface {
	automation.Listeners
	automation.Actuator
}

// service holds everything runService starts, so it can be torn down in
// reverse order.
type service struct {
	cfg  *config.Config
	log  *logging.Logger
	loop *eventloop.Loop

	host     hostBackend
	hostDone <-chan struct{}
	hostErr  func() error

	recorders []automation.Recorder
	doors     []*automation.Door

	activity activity.Repository
	checks   map[string]api.CheckFunc

	closers []func()
}

func (s *service) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

func (s *service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// runService loads the configuration, connects the host backend and
// storage, and runs the door automations until ctx is cancelled or the
// host connection is lost.
func runService(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting illuminate-door", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Sync() //nolint:errcheck // Nothing useful to do on exit
	log.Info("configuration loaded", "path", configPath, "automations", len(cfg.Automations))

	s := &service{cfg: cfg, log: log, checks: make(map[string]api.CheckFunc)}
	defer s.close()

	s.startLoop(ctx)

	if err := s.connectHost(ctx); err != nil {
		return err
	}
	if err := s.openActivity(ctx); err != nil {
		return err
	}
	s.connectTelemetry()

	if err := s.buildDoors(); err != nil {
		return err
	}

	if err := s.loop.Do(ctx, func() {
		for _, d := range s.doors {
			d.Initialize(ctx)
		}
	}); err != nil {
		return fmt.Errorf("initialising automations: %w", err)
	}

	if err := s.startAPI(ctx); err != nil {
		return err
	}
	log.Info("illuminate-door running", "backend", cfg.Host.Backend, "automations", len(s.doors))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case <-s.hostDone:
		runErr = fmt.Errorf("host connection lost: %w", s.hostErr())
		log.Error("host connection lost", "error", s.hostErr())
	}

	s.terminateDoors()
	return runErr
}

// startLoop runs the event loop until the service closes.
func (s *service) startLoop(ctx context.Context) {
	s.loop = eventloop.New(s.log.With("component", "eventloop"))

	loopCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	go s.loop.Run(loopCtx)

	s.onClose(func() {
		stop()
		<-s.loop.Done()
	})
}

func (s *service) connectHost(ctx context.Context) error {
	switch s.cfg.Host.Backend {
	case config.BackendHomeAssistant:
		return s.connectHomeAssistant(ctx)
	default:
		return s.connectMQTT(ctx)
	}
}

func (s *service) connectMQTT(ctx context.Context) error {
	client, err := mqtt.Connect(s.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(s.log.With("component", "mqtt"))
	s.onClose(func() {
		s.log.Info("disconnecting from MQTT")
		if err := client.Close(); err != nil {
			s.log.Error("error closing MQTT", "error", err)
		}
	})
	s.checks["mqtt"] = client.HealthCheck
	s.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", s.cfg.MQTT.Broker.Host, s.cfg.MQTT.Broker.Port),
		"client_id", s.cfg.MQTT.Broker.ClientID,
	)

	bridge, err := mqttbridge.New(mqttbridge.Options{
		Client:     client,
		Dispatcher: s.loop,
		QoS:        byte(s.cfg.MQTT.QoS),
		Logger:     s.log.With("component", "mqttbridge"),
	})
	if err != nil {
		return err
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting MQTT host bridge: %w", err)
	}
	s.onClose(bridge.Stop)

	s.host = bridge
	// paho reconnects on its own; the service only stops on a signal.
	s.hostDone = nil
	s.hostErr = func() error { return nil }

	s.recorders = append(s.recorders,
		mqttbridge.NewEventPublisher(client, client.Topics().AutomationEvent, s.log.With("component", "events")))
	return nil
}

func (s *service) connectHomeAssistant(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.GetRequestTimeout()+5*time.Second)
	defer cancel()

	client, err := homeassistant.Dial(dialCtx, homeassistant.Options{
		URL:            s.cfg.HomeAssistant.URL,
		Token:          s.cfg.HomeAssistant.Token,
		RequestTimeout: s.cfg.GetRequestTimeout(),
		Dispatcher:     s.loop,
		Logger:         s.log.With("component", "homeassistant"),
	})
	if err != nil {
		return fmt.Errorf("connecting to Home Assistant: %w", err)
	}
	s.onClose(func() {
		s.log.Info("disconnecting from Home Assistant")
		if err := client.Close(); err != nil {
			s.log.Error("error closing Home Assistant connection", "error", err)
		}
	})

	s.checks["homeassistant"] = client.Ping

	s.host = client
	s.hostDone = client.Done()
	s.hostErr = client.Err
	return nil
}

// openActivity opens the SQLite activity log when enabled.
func (s *service) openActivity(ctx context.Context) error {
	if !s.cfg.Database.Enabled {
		s.log.Info("activity log disabled")
		return nil
	}

	db, err := openActivityDB(ctx, s.cfg.Database)
	if err != nil {
		return err
	}
	s.onClose(func() {
		s.log.Info("closing database")
		if err := db.Close(); err != nil {
			s.log.Error("error closing database", "error", err)
		}
	})
	s.log.Info("activity log opened", "path", s.cfg.Database.Path)

	s.checks["database"] = db.HealthCheck

	repo := activity.NewSQLiteRepository(db.DB)
	s.activity = repo
	s.recorders = append(s.recorders, activity.NewRecorder(repo, s.log.With("component", "activity")))

	if retention := s.cfg.GetRetention(); retention > 0 {
		pruneCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			activity.RunRetention(pruneCtx, repo, retention, retentionInterval, s.log.With("component", "activity"))
		}()
		s.onClose(func() {
			stop()
			<-done
		})
	}

	return nil
}

// connectTelemetry connects to InfluxDB when enabled. Telemetry is
// optional: a failed connection is logged and the service carries on.
func (s *service) connectTelemetry() {
	client, err := influxdb.Connect(s.cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		return
	}
	if err != nil {
		s.log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
		return
	}

	client.SetOnError(func(err error) {
		s.log.Warn("InfluxDB write failed", "error", err)
	})
	s.onClose(func() {
		s.log.Info("closing InfluxDB")
		if err := client.Close(); err != nil {
			s.log.Error("error closing InfluxDB", "error", err)
		}
	})
	s.checks["influxdb"] = client.HealthCheck
	s.log.Info("InfluxDB connected", "url", s.cfg.InfluxDB.URL, "bucket", s.cfg.InfluxDB.Bucket)

	s.recorders = append(s.recorders, activity.NewTelemetry(client))
}

// buildDoors creates one Door per configured automation.
func (s *service) buildDoors() error {
	recorder := activity.NewMulti(s.recorders...)

	var gate *sun.Gate
	for _, a := range s.cfg.Automations {
		host := automation.Host{
			Listeners: s.host,
			Actuator:  s.host,
			Scheduler: s.loop,
			Recorder:  recorder,
		}
		if a.UseSundown() {
			if gate == nil {
				gate = sun.New(s.cfg.Site.Location)
				now := time.Now()
				rise, set := gate.Next(now)
				s.log.Info("sundown gate enabled",
					"sun_up", gate.SunUp(now),
					"next_sunset", set,
					"next_sunrise", rise,
				)
			}
			host.Gate = gate
		}

		name := automationName(a)
		door, err := automation.NewDoor(doorOptions(a), host, s.log.With("automation", name))
		if err != nil {
			return fmt.Errorf("automation %s: %w", name, err)
		}
		s.doors = append(s.doors, door)
	}
	return nil
}

// startAPI starts the status server when enabled.
func (s *service) startAPI(ctx context.Context) error {
	if !s.cfg.API.Enabled {
		return nil
	}

	server, err := api.New(api.Deps{
		Config: s.cfg.API,
		Timeouts: api.Timeouts{
			Read:  s.cfg.GetReadTimeout(),
			Write: s.cfg.GetWriteTimeout(),
			Idle:  s.cfg.GetIdleTimeout(),
		},
		Logger:      s.log.With("component", "api"),
		Automations: doorStatus{loop: s.loop, doors: s.doors},
		Activity:    s.activity,
		Checks:      s.checks,
		Version:     version,
	})
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	s.onClose(func() {
		if err := server.Close(); err != nil {
			s.log.Error("error closing API server", "error", err)
		}
	})
	return nil
}

// doorStatus reads automation state on the event loop for the API.
type doorStatus struct {
	loop  *eventloop.Loop
	doors []*automation.Door
}

func (d doorStatus) Automations(ctx context.Context) ([]api.AutomationStatus, error) {
	list := make([]api.AutomationStatus, 0, len(d.doors))
	err := d.loop.Do(ctx, func() {
		for _, door := range d.doors {
			overridden := door.Overridden()
			if overridden == nil {
				overridden = []string{}
			}
			list = append(list, api.AutomationStatus{
				Name:       door.Name(),
				Sensor:     door.Sensor(),
				Overridden: overridden,
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// terminateDoors cancels every automation's timers and listeners.
func (s *service) terminateDoors() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.loop.Do(ctx, func() {
		for _, d := range s.doors {
			d.Terminate()
		}
	})
	if err != nil {
		s.log.Warn("automations not terminated cleanly", "error", err)
	}
}

// doorOptions converts an automation config block to door options.
func doorOptions(a config.AutomationConfig) automation.Options {
	entities := make([]automation.ControlledEntity, 0, len(a.TurnOn))
	for _, e := range a.TurnOn {
		entities = append(entities, automation.ControlledEntity{
			EntityID:   e.Entity,
			Attributes: automation.Attributes(e.Data),
		})
	}

	return automation.Options{
		Name:                automationName(a),
		Sensor:              a.Sensor,
		Entities:            entities,
		RestoreAfter:        a.RestoreAfter(),
		ClearOverridesAfter: a.ClearOverridesAfter(),
		AttributeTolerance:  a.AttributeTolerance,
		Trace:               automation.TraceLevel(a.Level()),
	}
}

// automationName defaults an unnamed automation to its sensor id.
func automationName(a config.AutomationConfig) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Sensor
}
