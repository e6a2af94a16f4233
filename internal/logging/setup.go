package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Options controls where and how much the simulator logs.
type Options struct {
	Level   string
	Dir     string // log file directory, empty disables the file sink
	AppName string

	// GraylogAddr is the host:port of a Graylog GELF input. Empty disables
	// forwarding.
	GraylogAddr string
}

// parseLevel converts a string log level to a zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup configures the global log level and UTC timestamps, and returns a
// logger writing to stdout and a timestamped file under opts.Dir. The
// returned close func flushes and closes the file and GELF sinks.
func Setup(opts Options) (zerolog.Logger, func() error, error) {
	level := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
	}
	var closers []io.Closer

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating logs dir: %w", err)
		}
		file, err := os.Create(LogFilePath(opts.Dir, opts.AppName, time.Now().UTC()))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating log file: %w", err)
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
		closers = append(closers, file)
	}

	// A failed Graylog dial downgrades to a warning so a run never depends
	// on the log sink being up.
	var gelfErr error
	if opts.GraylogAddr != "" {
		gelfWriter, err := gelf.NewWriter(opts.GraylogAddr)
		if err != nil {
			gelfErr = err
		} else {
			writers = append(writers, gelfWriter)
			closers = append(closers, gelfWriter)
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	if gelfErr != nil {
		logger.Warn().Err(gelfErr).Str("address", opts.GraylogAddr).Msg("Graylog writer unavailable")
	}
	logger.Info().Str("loglevel", level.String()).Msg("Logging set up")

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return logger, closeAll, nil
}

// TraceSampled returns a child logger that lets short bursts through and
// then samples 1 in 100, for per-vehicle per-tick output.
func TraceSampled(logger zerolog.Logger) zerolog.Logger {
	return logger.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}
