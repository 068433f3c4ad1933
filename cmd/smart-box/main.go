// Command smart-box fuses the smart box's sensors into one operator-facing
// state, drives the status LED and buzzer, and publishes state changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/sweeney/smart-box/internal/actuator"
	"github.com/sweeney/smart-box/internal/config"
	"github.com/sweeney/smart-box/internal/feed"
	"github.com/sweeney/smart-box/internal/logging"
	"github.com/sweeney/smart-box/internal/logic"
	"github.com/sweeney/smart-box/internal/metrics"
	"github.com/sweeney/smart-box/internal/mqtt"
	"github.com/sweeney/smart-box/internal/sensor"
	"github.com/sweeney/smart-box/internal/status"
	"github.com/sweeney/smart-box/internal/telemetry"
	"github.com/sweeney/smart-box/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	printState := flag.Bool("print-state", false, "Sample the sensors once, print the decision and exit")
	logLevel := flag.String("log-level", "", "Override log level: debug, info, warn, error")

	flag.Parse()

	logging.Init("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *logLevel != "" {
		if err := cfg.SetLogLevel(*logLevel); err != nil {
			log.Fatal().Err(err).Msg("invalid -log-level")
		}
	}
	logging.Init(cfg.Log.Level)

	if err := run(cfg, *printState); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg config.Config, printState bool) error {
	reader, err := sensor.NewRealReader(cfg.SensorPins())
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}
	defer reader.Close()

	if printState {
		return printOnce(os.Stdout, reader, cfg.LogicThresholds(), time.Now())
	}

	driver, err := actuator.NewRealDriver(cfg.ActuatorPins())
	if err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	defer driver.Close()

	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.BoxID)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize status tracker (before STARTUP so snapshot is available)
	bootID := uuid.NewString()
	tracker := status.NewTracker(bootID, time.Now(), status.Config{
		BoxID:       cfg.BoxID,
		PollMs:      cfg.Poll.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		FeedURL:     cfg.Classification.URL,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		Thresholds:  cfg.LogicThresholds(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var poller *feed.Poller
	if cfg.Classification.URL != "" {
		poller = feed.NewPoller(
			feed.NewHTTPSource(cfg.Classification.URL, cfg.Classification.Timeout),
			cfg.Classification.Interval,
			cfg.Classification.Timeout)
		poller.SetObserver(m)
		go poller.Run(ctx)
		log.Info().Str("url", cfg.Classification.URL).Dur("interval", cfg.Classification.Interval).Msg("classification polling started")
	} else {
		log.Warn().Msg("no classification url configured, items will never be classified")
	}

	latch := &telemetry.Latch{}
	var sinks []telemetry.Sink
	if key := cfg.Telemetry.ThingSpeak.APIKey; key != "" {
		sinks = append(sinks, telemetry.NewThingSpeakSink(cfg.Telemetry.ThingSpeak.Server, key, cfg.Telemetry.Timeout))
	}
	if cfg.Telemetry.MQTT {
		sinks = append(sinks, telemetry.NewMQTTSink(publisher))
	}
	if cfg.Telemetry.Interval > 0 && len(sinks) > 0 {
		uploader := telemetry.NewUploader(tracker.LatestSample, latch, cfg.Telemetry.Interval, cfg.Telemetry.Timeout, sinks...)
		uploader.SetObserver(m)
		go uploader.Run(ctx)
		log.Info().Int("sinks", len(sinks)).Dur("interval", cfg.Telemetry.Interval).Msg("telemetry uploads started")
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn().Err(err).Msg("failed to publish startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http status server listening")
	}

	log.Info().
		Str("box", cfg.BoxID).
		Str("boot_id", bootID).
		Dur("poll", cfg.Poll).
		Str("broker", cfg.MQTT.Broker).
		Dur("heartbeat", cfg.Heartbeat).
		Msg("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := loopDeps{
		reader:     reader,
		driver:     driver,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		latch:      latch,
		thresholds: cfg.LogicThresholds(),
		heartbeat:  cfg.Heartbeat,
	}
	if poller != nil {
		d.classified = poller.Take
		d.feedStatus = poller.Status
	}
	return runLoop(d, time.Now, ticker.C, sigCh)
}

// printOnce samples the sensors, runs a single decision and dumps it.
func printOnce(w io.Writer, reader sensor.Reader, th logic.Thresholds, now time.Time) error {
	rd, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	r := logic.NewEngine(th, now).Process(toInput(rd, now), false)
	return logic.Dump(w, r)
}

// loopDeps are the collaborators of the control loop. Only reader, driver,
// publisher and thresholds are required.
type loopDeps struct {
	reader     sensor.Reader
	driver     actuator.Driver
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	latch      *telemetry.Latch
	classified func() bool
	feedStatus func() feed.Status
	thresholds logic.Thresholds
	heartbeat  time.Duration
}

func toInput(rd sensor.Reading, t time.Time) logic.Input {
	dist := logic.InvalidDistance
	if rd.DistanceOK {
		dist = logic.DistanceCM(rd.DistanceCM)
	}
	return logic.Input{
		DoorClosed:    rd.DoorClosed,
		ButtonPressed: rd.ButtonPressed,
		LightValue:    rd.Light,
		Distance:      dist,
		Time:          t,
	}
}

func runLoop(d loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	engine := logic.NewEngine(d.thresholds, now())
	var (
		shown   logic.SystemState
		applied bool
	)

	refresh := func() {
		if d.tracker == nil {
			return
		}
		if d.mqttStatus != nil {
			connected := d.mqttStatus.IsConnected()
			d.tracker.SetMQTTConnected(connected)
			if d.metrics != nil {
				d.metrics.SetMQTTConnected(connected)
			}
		}
		if d.feedStatus != nil {
			d.tracker.SetFeed(d.feedStatus())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Info().Stringer("signal", s).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     mqtt.EventShutdown,
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				refresh()
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Warn().Err(err).Msg("failed to publish shutdown event")
			} else {
				log.Info().Msg("queued shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			rd, err := d.reader.Read()
			if err != nil {
				log.Warn().Err(err).Msg("sensor read error")
				if d.metrics != nil {
					d.metrics.SensorError()
				}
				continue
			}

			classified := false
			if d.classified != nil {
				classified = d.classified()
			}
			r := engine.Process(toInput(rd, t), classified)
			logTick(r)

			if r.Sample.HandInPath && d.latch != nil {
				d.latch.Set()
			}

			if !applied || r.State != shown {
				if err := d.driver.Apply(r.State); err != nil {
					log.Warn().Err(err).Str("state", string(r.State)).Msg("actuator error")
				} else {
					shown, applied = r.State, true
				}
			}

			if d.metrics != nil {
				d.metrics.ObserveTick(r)
			}
			if d.tracker != nil {
				d.tracker.Update(r, engine.Counts())
				refresh()
			}

			if r.Event != nil {
				log.Info().
					Str("from", string(r.Event.From)).
					Str("to", string(r.Event.To)).
					Str("rule", string(r.Event.Rule)).
					Msg("state changed")
				if err := d.publisher.Publish(*r.Event); err != nil {
					// Don't crash on publish failure
					log.Warn().Err(err).Msg("publish error")
				}
			}

			if hb := engine.CheckHeartbeat(t, d.heartbeat); hb != nil {
				log.Info().
					Dur("uptime", hb.Uptime).
					Str("state", string(hb.State)).
					Int("normal", hb.Counts.Normal).
					Int("processing", hb.Counts.Processing).
					Int("waiting", hb.Counts.Waiting).
					Int("abnormal", hb.Counts.Abnormal).
					Msg("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     mqtt.EventHeartbeat,
				}
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					snap := d.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, mqtt.EventHeartbeat, "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Warn().Err(err).Msg("heartbeat publish error")
				}
			}
		}
	}
}

// logTick writes the per-tick diagnostic fields at debug level.
func logTick(r logic.Result) {
	s := r.Sample
	ev := log.Debug().
		Bool("door_open", s.DoorOpen).
		Bool("button", s.ButtonPressed).
		Int("light", s.LightValue).
		Bool("counter_empty", s.CounterEmpty).
		Bool("hand", s.HandInPath).
		Dur("door_open_for", r.DoorOpenFor).
		Dur("item_on_counter_for", r.ItemOnCounterFor).
		Bool("cls_requested", r.Sessions.Item.ClassificationRequested).
		Bool("cls_done", r.Sessions.Item.ClassificationDone).
		Bool("pickup_armed", r.Sessions.Pickup.Armed).
		Str("state", string(r.State)).
		Str("rule", string(r.Rule))
	if cm, ok := s.Distance.Cm(); ok {
		ev = ev.Float64("distance_cm", cm)
	}
	ev.Msg("tick")

	switch {
	case r.ClassificationAccepted:
		log.Info().Msg("classification accepted for current item")
	case r.ClassificationIgnored:
		log.Info().Msg("classification ignored, none requested")
	}
	if r.ItemRetired {
		log.Info().Msg("item retired")
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
