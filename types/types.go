package types

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Settings holds the command-line configuration.
type Settings struct {
	Source        string
	MinArea       int
	MaxArea       int
	BlendRate     int
	Filename      string
	Codec         string
	MotionBuffer  int
	ZonesPath     string
	Debug         bool
	Resolution    float64
	FilePath      string
	MaxHitSeconds int
	BlendEvery    time.Duration
	DefaultFPS    float64

	Telemetry    []string
	ZabbixServer string
	ZabbixName   string
	ZabbixSender string
	MQTTBroker   string
	MQTTTopic    string
	KafkaBrokers []string
	KafkaTopic   string

	UploadScript string
	UploadDest   string

	HTTPAddr  string
	Shutdown  ShutdownPolicy
	LogFormat string
	LogLevel  slog.Level
}

// ParseSettings parses args (without the program name).
func ParseSettings(args []string) (*Settings, error) {
	fs := flag.NewFlagSet("zonewatch", flag.ContinueOnError)

	s := &Settings{}
	var (
		telemetry = "zabbix"
		kafka     string
		shutdown  = "immediate"
		level     = "info"
	)

	stringVar(fs, &s.Source, "video", "v", "0", "path to a video file, stream URL or camera id")
	intVar(fs, &s.MinArea, "min-area", "a", 1000, "minimum contour area at source resolution")
	intVar(fs, &s.MaxArea, "max-area", "m", 0, "maximum contour area at source resolution, 0 disables")
	intVar(fs, &s.BlendRate, "blend-rate", "b", 3, "background blend rate in percent, higher is faster")
	stringVar(fs, &s.Filename, "filename", "f", "motion_2006-01-02_15-04-05", "time layout for snapshot and video names")
	stringVar(fs, &s.Codec, "codec", "c", "XVID", "fourcc of the preferred video codec")
	intVar(fs, &s.MotionBuffer, "motion-buffer", "l", 0, "frames recorded after motion ends")
	stringVar(fs, &s.ZonesPath, "zones", "j", "zones.json", "zone configuration file")
	boolVar(fs, &s.Debug, "debug", "d", false, "show the debug window with zones and contours")
	float64Var(fs, &s.Resolution, "resolution", "r", 1.0, "resolution multiplier used for analysis")
	stringVar(fs, &s.FilePath, "filepath", "p", "recordings/2006-01-02", "time layout of the output directory")
	intVar(fs, &s.MaxHitSeconds, "max-hitseconds", "M", 20, "seconds of recording before the reference frame is rekeyed")
	fs.DurationVar(&s.BlendEvery, "blend-every", 4*time.Second, "idle reference frame blend cadence")
	fs.Float64Var(&s.DefaultFPS, "default-fps", 20, "frame rate assumed until one is measured")

	fs.StringVar(&telemetry, "telemetry", telemetry, "telemetry senders: zabbix, mqtt, kafka or none (comma-separated)")
	stringVar(fs, &s.ZabbixServer, "zabbix-server", "z", "127.0.0.1", "zabbix server to send events to")
	stringVar(fs, &s.ZabbixName, "zabbix-name", "H", "Front Camera", "zabbix host the items belong to")
	fs.StringVar(&s.ZabbixSender, "zabbix-sender", "/usr/bin/zabbix_sender", "path of the zabbix_sender binary")
	fs.StringVar(&s.MQTTBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	fs.StringVar(&s.MQTTTopic, "mqtt-topic", "zonewatch/events", "MQTT topic for telemetry values")
	fs.StringVar(&kafka, "kafka-brokers", "", "Kafka brokers (comma-separated)")
	fs.StringVar(&s.KafkaTopic, "kafka-topic", "zonewatch.events", "Kafka topic for telemetry values")

	fs.StringVar(&s.UploadScript, "upload-script", "", "script invoked as <script> <file> <destination> for uploads, empty disables")
	fs.StringVar(&s.UploadDest, "upload-dest", "", "upload destination URI, overridden by the zone file bucket")

	fs.StringVar(&s.HTTPAddr, "http", "", "status API listen address, empty disables")
	fs.StringVar(&shutdown, "shutdown", shutdown, "interrupt handling: immediate or graceful")
	fs.StringVar(&s.LogFormat, "log-format", "text", "log format: json or text")
	fs.StringVar(&level, "log-level", level, "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	s.Telemetry = splitList(telemetry)
	s.KafkaBrokers = splitList(kafka)

	var err error
	if s.Shutdown, err = ParseShutdownPolicy(shutdown); err != nil {
		return nil, err
	}
	if err := s.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	var errs []error
	if s.MinArea < 0 {
		errs = append(errs, errors.New("min-area must not be negative"))
	}
	if s.MaxArea < 0 || (s.MaxArea > 0 && s.MaxArea < s.MinArea) {
		errs = append(errs, errors.New("max-area must be 0 or at least min-area"))
	}
	if s.BlendRate < 0 || s.BlendRate > 100 {
		errs = append(errs, errors.New("blend-rate must be between 0 and 100"))
	}
	if s.MotionBuffer < 0 {
		errs = append(errs, errors.New("motion-buffer must not be negative"))
	}
	if s.Resolution <= 0 || s.Resolution > 1 {
		errs = append(errs, errors.New("resolution must be in (0, 1]"))
	}
	if s.MaxHitSeconds <= 0 {
		errs = append(errs, errors.New("max-hitseconds must be positive"))
	}
	if s.DefaultFPS <= 0 {
		errs = append(errs, errors.New("default-fps must be positive"))
	}
	if s.Filename == "" {
		errs = append(errs, errors.New("filename must not be empty"))
	}
	if s.LogFormat != "json" && s.LogFormat != "text" {
		errs = append(errs, errors.New("log-format must be 'json' or 'text'"))
	}
	for _, t := range s.Telemetry {
		switch t {
		case "zabbix", "none":
		case "mqtt":
			if s.MQTTBroker == "" {
				errs = append(errs, errors.New("mqtt telemetry requires -mqtt-broker"))
			}
		case "kafka":
			if len(s.KafkaBrokers) == 0 || s.KafkaTopic == "" {
				errs = append(errs, errors.New("kafka telemetry requires -kafka-brokers and -kafka-topic"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown telemetry sender %q", t))
		}
	}
	return errors.Join(errs...)
}

// VideoConfig returns the recording configuration implied by the settings.
func (s *Settings) VideoConfig() VideoConfig {
	cfg := DefaultVideoConfig()
	codecs := []string{s.Codec}
	for _, c := range cfg.Codecs {
		if !strings.EqualFold(c, s.Codec) {
			codecs = append(codecs, c)
		}
	}
	cfg.Codecs = codecs
	return cfg
}

// VideoConfig holds video recording configuration
type VideoConfig struct {
	Codecs    []string
	Extension string
}

// DefaultVideoConfig returns the default video configuration
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Codecs:    []string{"XVID", "MJPG", "mp4v"},
		Extension: ".avi",
	}
}

// UIConfig holds debug overlay configuration constants
type UIConfig struct {
	StatusFontSize float64
	LineHeight     int
	BarX           int
	BarWidth       int
	BarHeight      int
	MaxDebugLogs   int
	DebugFontSize  float64
}

// DefaultUIConfig returns the default UI configuration
func DefaultUIConfig() UIConfig {
	return UIConfig{
		StatusFontSize: 1.0,
		LineHeight:     32,
		BarX:           350,
		BarWidth:       300,
		BarHeight:      22,
		MaxDebugLogs:   10,
		DebugFontSize:  0.8,
	}
}

// ShutdownPolicy selects how an interrupt is handled.
type ShutdownPolicy int

const (
	// ShutdownImmediate exits at once; an open recording is not finalized.
	ShutdownImmediate ShutdownPolicy = iota
	// ShutdownGraceful finishes the current frame and closes any open recording.
	ShutdownGraceful
)

func (p ShutdownPolicy) String() string {
	switch p {
	case ShutdownImmediate:
		return "immediate"
	case ShutdownGraceful:
		return "graceful"
	default:
		return "unknown"
	}
}

// ParseShutdownPolicy parses "immediate" or "graceful".
func ParseShutdownPolicy(s string) (ShutdownPolicy, error) {
	switch strings.ToLower(s) {
	case "immediate", "":
		return ShutdownImmediate, nil
	case "graceful":
		return ShutdownGraceful, nil
	default:
		return 0, fmt.Errorf("shutdown must be 'immediate' or 'graceful', got %q", s)
	}
}

func stringVar(fs *flag.FlagSet, p *string, name, short, value, usage string) {
	fs.StringVar(p, name, value, usage)
	fs.StringVar(p, short, value, "shorthand for -"+name)
}

func intVar(fs *flag.FlagSet, p *int, name, short string, value int, usage string) {
	fs.IntVar(p, name, value, usage)
	fs.IntVar(p, short, value, "shorthand for -"+name)
}

func float64Var(fs *flag.FlagSet, p *float64, name, short string, value float64, usage string) {
	fs.Float64Var(p, name, value, usage)
	fs.Float64Var(p, short, value, "shorthand for -"+name)
}

func boolVar(fs *flag.FlagSet, p *bool, name, short string, value bool, usage string) {
	fs.BoolVar(p, name, value, usage)
	fs.BoolVar(p, short, value, "shorthand for -"+name)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
