// Command camconfig opens the best camera configuration of the host and
// keeps it open across hotplug events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/camconfig"
	"github.com/pion/camconfig/pkg/candidate"
	"github.com/pion/camconfig/pkg/config"
	"github.com/pion/camconfig/pkg/driver/camera"
	"github.com/pion/camconfig/pkg/event"
	"github.com/pion/camconfig/pkg/preference"
	"github.com/pion/camconfig/pkg/preference/redisstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to the board configuration yaml")
		metricsAddr = flag.String("metrics", "", "listen address of the prometheus endpoint, empty disables it")
		pollEvery   = flag.Duration("poll", time.Second, "device hotplug poll interval")
		video       = flag.Bool("video", false, "prefer video mode")
		audio       = flag.Bool("audio", false, "record audio with video")
	)
	flag.Parse()

	if err := run(*configPath, *metricsAddr, *pollEvery, *video, *audio); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string, pollEvery time.Duration, video, audio bool) error {
	var cfg config.Config
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	var persist preference.KeyValueStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		defer rdb.Close()
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = redisstore.DefaultPrefix
		}
		persist = redisstore.NewWithPrefix(rdb, prefix)
	}

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		defer srv.Close()
	}

	mode := camconfig.ModeConstraint{Mode: candidate.ModePhoto}
	if video {
		mode.Mode = candidate.ModeVideo
	}
	s := camconfig.New(camera.New(),
		camconfig.WithConfig(cfg),
		camconfig.WithPreferenceStore(persist),
		camconfig.WithRegisterer(reg),
		camconfig.WithModeConstraint(mode),
		camconfig.WithAudio(audio),
		camconfig.WithObserver(event.ObserverFunc(printEvent)),
		camconfig.WithReporter(camconfig.ErrorReporterFunc(func(kind camconfig.ErrorKind, severity camconfig.Severity, err error) {
			fmt.Printf("[%s] %s: %v\n", severity, kind, err)
		})),
	)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observer := camera.NewObserver(pollEvery)
	observer.SetOnDeviceChange(func(d camera.Device, e camera.DeviceEventType) {
		fmt.Printf("%s %s\n", d.Label, e)
		if err := s.Refresh(ctx); err != nil {
			fmt.Printf("refresh: %v\n", err)
			return
		}
		s.Reconfigure(ctx)
	})
	if err := observer.Start(); err != nil {
		return err
	}
	defer observer.Stop()

	if !s.Reconfigure(ctx) {
		fmt.Println("No usable camera yet, waiting for one...")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	fmt.Println("Shutting down...")
	return nil
}

func printEvent(e event.Event) {
	switch e.Kind {
	case event.UpdateConfig:
		fmt.Printf("Camera opened: %v\n", e.Payload)
	case event.TryingNewConfig:
		if c, ok := e.Payload.(camconfig.ConfigCandidate); ok {
			fmt.Printf("Trying %s %s %v\n", c.DeviceID, c.Mode, c.Constraints)
		}
	}
}
