// Command trainer runs the repetition tracking service: it listens for
// skeleton frames over UDP, drives the exercise engine, and serves the HTTP
// API for exercise control, calibration, and progress reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rehab-data/motion.report/internal/angles"
	"github.com/rehab-data/motion.report/internal/announce"
	"github.com/rehab-data/motion.report/internal/api"
	"github.com/rehab-data/motion.report/internal/calibration"
	"github.com/rehab-data/motion.report/internal/config"
	"github.com/rehab-data/motion.report/internal/exercise"
	"github.com/rehab-data/motion.report/internal/monitoring"
	"github.com/rehab-data/motion.report/internal/pose"
	"github.com/rehab-data/motion.report/internal/rom"
	"github.com/rehab-data/motion.report/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Replay skeleton frames from the fixtures file instead of listening on UDP")
	fixtures    = flag.String("fixtures", "fixtures.txt", "Skeleton fixture file for dev mode, one frame payload per line")
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	skeleton    = flag.String("skeleton", ":12345", "UDP address to receive skeleton frames on")
	dbFile      = flag.String("db", "rom_data.db", "SQLite database file for ROM records")
	configPath  = flag.String("config", "", "Tuning config file (JSON); empty selects the built-in defaults")
	mqttBroker  = flag.String("mqtt", "", "MQTT broker for announcements (e.g. tcp://localhost:1883); empty disables")
	verbose     = flag.Bool("verbose", false, "Enable per-tick debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadFixtures(path string) (*pose.ScriptedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var script []pose.Frame
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		script = append(script, pose.ParseFrame(line))
	}
	if len(script) == 0 {
		return nil, fmt.Errorf("no frames in %s", path)
	}
	return &pose.ScriptedSource{Script: script, Loop: true}, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *verbose {
		monitoring.EnableDebug()
	}

	cfg := config.MustLoadDefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	var source pose.Source
	if *devMode {
		s, err := loadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("failed to load fixtures: %v", err)
		}
		source = s
	} else {
		s, err := pose.ListenUDP(*skeleton, cfg.GetFrameTimeout())
		if err != nil {
			log.Fatalf("failed to listen for skeleton frames: %v", err)
		}
		defer s.Close()
		source = s
		log.Printf("listening for skeleton frames on %s", *skeleton)
	}

	store, err := rom.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	announcer := announce.Multi{announce.Log{}}
	if *mqttBroker != "" {
		mq, err := announce.DialMQTT(*mqttBroker, "motion-trainer")
		if err != nil {
			log.Fatalf("failed to connect to MQTT broker: %v", err)
		}
		defer mq.Close()
		announcer = append(announcer, mq)
	}

	calc := angles.NewCalculator(cfg.GetMaxAngleJump())
	resolver := rom.NewResolver(cfg.GetSafetyFactor())

	// Each run starts from the patient's stored ROM record, when one exists.
	resolverFor := func(patientID string) exercise.RangeResolver {
		if patientID == "" {
			return nil
		}
		rec, err := store.Load(context.Background(), patientID)
		if err != nil {
			log.Printf("failed to load ROM record for %s: %v", patientID, err)
			return nil
		}
		if rec == nil {
			return nil
		}
		return func(key string, lb, ub float64) (float64, float64) {
			return resolver.Resolve(key, lb, ub, rec)
		}
	}

	engine := exercise.NewEngine(source, calc, announcer, exercise.IntervalScheduler{
		TickEvery: cfg.GetTickInterval(),
		IdleEvery: cfg.GetPauseIdleInterval(),
	}, exercise.EngineOptions{
		CoordinateScale:   cfg.GetCoordinateScale(),
		DefaultTargetReps: cfg.GetTargetReps(),
		ResolverFor:       resolverFor,
	})

	full := calibration.NewFull(source, calc, announcer, store, calibration.Options{
		Window:         cfg.GetCalibrationWindow(),
		SampleInterval: cfg.GetCalibrationSampleInterval(),
		PositionDelay:  cfg.GetPositionDelay(),
		MeasurementGap: cfg.GetMeasurementGap(),
	})
	simple := calibration.NewSimple(source, calc, announcer, store, exercise.IntervalScheduler{
		TickEvery: cfg.GetTickInterval(),
		IdleEvery: cfg.GetPauseIdleInterval(),
	})
	simple.Timeout = cfg.GetSimpleCalibrationTimeout()
	simple.CoordinateScale = cfg.GetCoordinateScale()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the engine loop; it is the single consumer of the skeleton stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("engine loop terminated: %v", err)
		}
		log.Print("engine routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}

		apiMux := api.NewServer(engine, store, full, simple, cfg).ServeMux()
		mux.Handle("/api/", apiMux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("serving HTTP on %s (version %s)", *listen, version.Info())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
