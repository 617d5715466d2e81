package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// Init sets up the global logger. Anything other than "production" gets a
// human readable console writer on stderr.
func Init(env string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if env != "production" {
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()
	} else {
		Log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// Debug logs a debug message.
func Debug(msg string, keyValues ...interface{}) {
	withFields(Log.Debug(), msg, keyValues).Msg(msg)
}

// Info logs an info message.
func Info(msg string, keyValues ...interface{}) {
	withFields(Log.Info(), msg, keyValues).Msg(msg)
}

// Infof logs a formatted info message.
func Infof(format string, v ...interface{}) {
	Log.Info().Msgf(format, v...)
}

// Warn logs a warning message.
func Warn(msg string, keyValues ...interface{}) {
	withFields(Log.Warn(), msg, keyValues).Msg(msg)
}

// Error logs an error message.
func Error(msg string, err error, keyValues ...interface{}) {
	withFields(Log.Error(), msg, keyValues).Caller(1).Stack().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits the program.
func Fatal(msg string, err error) {
	Log.Fatal().Err(err).Msg(msg)
}

// withFields attaches key/value pairs to the event. Nobody checks errors from
// logging calls, so a malformed list is reported in the output instead.
func withFields(e *zerolog.Event, msg string, keyValues []interface{}) *zerolog.Event {
	if len(keyValues)%2 != 0 {
		Log.Warn().Caller(2).Interface("Unknown Key", keyValues).
			Msgf("%s ([Wrong logger usage] Provided args must be a series of key/value pairs)", msg)
		return e
	}

	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keyValues[i+1])
	}
	return e
}
