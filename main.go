package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"zonewatch/api"
	"zonewatch/config"
	"zonewatch/detector"
	"zonewatch/events"
	"zonewatch/input"
	"zonewatch/motion"
	"zonewatch/recording"
	"zonewatch/reference"
	"zonewatch/telemetry"
	"zonewatch/types"
	"zonewatch/ui"
	"zonewatch/upload"
	"zonewatch/zone"
)

func main() {
	s, err := types.ParseSettings(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	uiCfg := types.DefaultUIConfig()
	var tail *types.LogTail
	if s.Debug {
		tail = types.NewLogTail(uiCfg.MaxDebugLogs)
	}
	log := types.NewLogger(s.LogFormat, s.LogLevel, os.Stderr, tail)
	slog.SetDefault(log)

	zones, err := config.Load(s.ZonesPath)
	if err != nil {
		log.Error("loading zones", "path", s.ZonesPath, "error", err)
		os.Exit(1)
	}
	if zones.S3Bucket != "" {
		s.UploadDest = zones.S3Bucket
	}
	log.Info("zones loaded", "path", s.ZonesPath, "zones", len(zones.Zones))

	stream, err := motion.OpenStream(s.Source, log)
	if err != nil {
		log.Error("opening video source", "source", s.Source, "error", err)
		os.Exit(1)
	}
	box := stream.Mailbox()

	metrics := telemetry.NewMetrics(func() float64 {
		_, drops := box.Stats()
		return float64(drops)
	})
	sender := buildSenders(s, log)
	notifier := telemetry.NewNotifier(sender, metrics, 500*time.Millisecond, log)

	set := zone.NewSet(zones, s.Resolution, notifier)
	names := make([]string, 0, len(set.Zones()))
	for _, z := range set.Zones() {
		names = append(names, z.Name())
	}
	notifier.ResetZones(names)

	vision := motion.NewVision(motion.Options{
		Resolution:   s.Resolution,
		MinArea:      float64(s.MinArea),
		MaxArea:      float64(s.MaxArea),
		BlendRate:    float64(s.BlendRate),
		KeyFramePath: filepath.Join(time.Now().Format(s.FilePath), "last_keyframe.jpg"),
	}, log)

	video := s.VideoConfig()
	recorder := recording.NewVideoRecorder(video.Codecs, log)
	uploader := upload.New(s.UploadScript, s.UploadDest, 5*time.Minute, log)
	uploader.OnError(metrics.UploadErrors.Inc)
	sink := events.New[gocv.Mat](events.Options{
		FilenameLayout: s.Filename,
		DirLayout:      s.FilePath,
		VideoExt:       video.Extension,
		PostRoll:       s.MotionBuffer,
	}, recorder, recording.SnapshotWriter{}, uploader, notifier, metrics, log)

	board := api.NewBoard()
	var srv *http.Server
	if s.HTTPAddr != "" {
		srv = api.NewServer(s.HTTPAddr, api.NewRouter(board, metrics.Handler()), os.Stdout, log)
		go func() {
			log.Info("status api listening", "addr", s.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status api stopped", "error", err)
			}
		}()
	}

	deps := detector.Deps[gocv.Mat]{
		Source: box,
		Vision: vision,
		Zones:  set,
		Sink:   sink,
		Reference: reference.Schedule{
			MaxHitSeconds: float64(s.MaxHitSeconds),
			Cadence:       s.BlendEvery,
		},
		Board:      board,
		Metrics:    metrics,
		DefaultFPS: s.DefaultFPS,
		Log:        log,
	}
	if s.Debug {
		win := ui.NewWindow("zonewatch", s.Resolution, uiCfg, tail, recorder, log)
		defer win.Close()
		deps.Overlay = win
		deps.LogTail = tail
		log.Info("debug window keys", "keys", input.Help())
	}
	det := detector.New(deps, &types.RunState{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		if s.Shutdown == types.ShutdownImmediate {
			log.Warn("interrupted, exiting without finalising", "signal", sig.String())
			os.Exit(1)
		}
		log.Info("interrupted, finishing the current recording; interrupt again to exit now", "signal", sig.String())
		cancel()

		sig = <-sigChan
		log.Warn("interrupted again, exiting without finalising", "signal", sig.String())
		os.Exit(1)
	}()

	stream.Start(ctx)
	log.Info("watching", "source", s.Source, "resolution", s.Resolution, "shutdown", s.Shutdown.String())

	runErr := det.Run(ctx)
	cancel()

	waitCtx, waitDone := context.WithTimeout(context.Background(), 10*time.Second)
	if err := uploader.Wait(waitCtx); err != nil {
		log.Warn("uploads still running at exit", "error", err)
	}
	waitDone()
	if err := stream.Close(); err != nil {
		log.Warn("closing video source", "error", err)
	}
	vision.Close()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		done()
	}
	flushCtx, flushDone := context.WithTimeout(context.Background(), 2*time.Second)
	if err := notifier.Close(flushCtx); err != nil {
		log.Warn("telemetry items left undelivered", "error", err)
	}
	flushDone()
	if err := sender.Close(); err != nil {
		log.Warn("closing telemetry", "error", err)
	}
	if runErr != nil {
		log.Error("detector stopped with error", "error", runErr)
		os.Exit(1)
	}
}

// buildSenders connects every requested telemetry sender. A sender that
// cannot connect is logged and left out.
func buildSenders(s *types.Settings, log *slog.Logger) telemetry.Multi {
	var senders telemetry.Multi
	for _, name := range s.Telemetry {
		switch name {
		case "zabbix":
			senders = append(senders, &telemetry.ZabbixSender{
				Binary: s.ZabbixSender,
				Server: s.ZabbixServer,
				Host:   s.ZabbixName,
			})
		case "mqtt":
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			m, err := telemetry.DialMQTT(ctx, s.MQTTBroker, "zonewatch-"+strings.ReplaceAll(s.ZabbixName, " ", "-"), s.MQTTTopic, s.ZabbixName, log)
			cancel()
			if err != nil {
				log.Error("mqtt telemetry disabled", "broker", s.MQTTBroker, "error", err)
				continue
			}
			senders = append(senders, m)
		case "kafka":
			senders = append(senders, telemetry.NewKafkaSender(s.KafkaBrokers, s.KafkaTopic, s.ZabbixName))
		}
	}
	return senders
}
