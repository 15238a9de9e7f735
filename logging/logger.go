package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crytic/abirunner/logging/colors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// GlobalLogger describes a Logger that is disabled by default and is configured when a run starts. Each package should
// create its own sub-logger from it so that log output can be filtered by module.
var GlobalLogger = NewLogger(zerolog.Disabled)

// LogFormat describes what format to log in
type LogFormat string

const (
	// STRUCTURED describes that logging should be done in structured JSON format
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED describes that logging should be done in an unstructured, human-readable format
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo describes a key-value mapping that can be used to log structured data
type StructuredLogInfo map[string]any

// registeredWriter pairs a writer handed to AddWriter with the writer zerolog actually emits to.
type registeredWriter struct {
	original io.Writer
	wrapped  io.Writer
}

// loggerOutputs holds the writers and level shared by a Logger and all of its sub-loggers, so that writers added to
// the GlobalLogger after a sub-logger was created still receive that sub-logger's output.
type loggerOutputs struct {
	lock  sync.RWMutex
	level zerolog.Level

	structuredWriters        []registeredWriter
	unstructuredWriters      []registeredWriter
	unstructuredColorWriters []registeredWriter
}

// Logger describes a custom logging object that can log events to any number of io.Writer channels, either as
// structured JSON or as (optionally colorized) console output.
type Logger struct {
	// outputs is shared between a logger and its sub-loggers.
	outputs *loggerOutputs

	// fields describes the key-value context attached by NewSubLogger, in insertion order.
	fields [][2]string
}

// NewLogger will create a new Logger object with a specific log level and no writers.
func NewLogger(level zerolog.Level) *Logger {
	return &Logger{
		outputs: &loggerOutputs{level: level},
	}
}

// NewSubLogger will create a new Logger with unique context in the form of a key-value pair. The expected use of this
// function is for each package to have its own logger so that log output is "grep-able" by module.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	fields := make([][2]string, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	fields = append(fields, [2]string{key, value})
	return &Logger{
		outputs: l.outputs,
		fields:  fields,
	}
}

// AddWriter will add a writer to the list of channels where log output will be sent. Unstructured writers receive
// console-formatted output, colorized if colored is true. Adding the same writer twice is a no-op.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat, colored bool) {
	l.outputs.lock.Lock()
	defer l.outputs.lock.Unlock()

	writers := l.outputs.writersFor(format, colored)
	for _, w := range *writers {
		if w.original == writer {
			return
		}
	}

	wrapped := writer
	if format == UNSTRUCTURED {
		wrapped = setupDefaultFormatting(zerolog.ConsoleWriter{Out: writer, NoColor: !colored}, l.outputs.level, colored)
	}
	*writers = append(*writers, registeredWriter{original: writer, wrapped: wrapped})
}

// RemoveWriter will remove a writer from the list of writers that the logger manages. If the writer does not exist,
// this function is a no-op.
func (l *Logger) RemoveWriter(writer io.Writer, format LogFormat, colored bool) {
	l.outputs.lock.Lock()
	defer l.outputs.lock.Unlock()

	writers := l.outputs.writersFor(format, colored)
	for i, w := range *writers {
		if w.original == writer {
			*writers = append((*writers)[:i], (*writers)[i+1:]...)
			return
		}
	}
}

// writersFor returns the writer list matching a format and color setting. The caller must hold the lock.
func (o *loggerOutputs) writersFor(format LogFormat, colored bool) *[]registeredWriter {
	if format == STRUCTURED {
		return &o.structuredWriters
	}
	if colored {
		return &o.unstructuredColorWriters
	}
	return &o.unstructuredWriters
}

// Level will get the log level of the Logger
func (l *Logger) Level() zerolog.Level {
	l.outputs.lock.RLock()
	defer l.outputs.lock.RUnlock()
	return l.outputs.level
}

// SetLevel will update the log level of the Logger and every logger sharing its outputs.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.outputs.lock.Lock()
	defer l.outputs.lock.Unlock()
	l.outputs.level = level
}

// Trace is a wrapper function that will log a trace event
func (l *Logger) Trace(args ...any) {
	l.logEvent(zerolog.TraceLevel, args...)
}

// Debug is a wrapper function that will log a debug event
func (l *Logger) Debug(args ...any) {
	l.logEvent(zerolog.DebugLevel, args...)
}

// Info is a wrapper function that will log an info event
func (l *Logger) Info(args ...any) {
	l.logEvent(zerolog.InfoLevel, args...)
}

// Warn is a wrapper function that will log a warning event
func (l *Logger) Warn(args ...any) {
	l.logEvent(zerolog.WarnLevel, args...)
}

// Error is a wrapper function that will log an error event.
func (l *Logger) Error(args ...any) {
	l.logEvent(zerolog.ErrorLevel, args...)
}

// Panic is a wrapper function that will log a panic event and then panic with the message, regardless of the level
// the logger is set to.
func (l *Logger) Panic(args ...any) {
	l.logEvent(zerolog.PanicLevel, args...)
	_, msg, err, _ := buildMsgs(args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	panic(msg)
}

// logEvent sends a single log event to every registered writer group.
func (l *Logger) logEvent(level zerolog.Level, args ...any) {
	l.outputs.lock.RLock()
	defer l.outputs.lock.RUnlock()

	if l.outputs.level == zerolog.Disabled || level < l.outputs.level {
		return
	}

	consoleMsg, plainMsg, err, info := buildMsgs(args...)
	withStack := l.outputs.level <= zerolog.DebugLevel || level == zerolog.PanicLevel

	l.emit(l.outputs.structuredWriters, true, level, plainMsg, err, info, withStack)
	l.emit(l.outputs.unstructuredWriters, false, level, plainMsg, err, info, withStack)
	l.emit(l.outputs.unstructuredColorWriters, false, level, consoleMsg, err, info, withStack)
}

// emit writes one event to a group of writers. Structured output carries a timestamp; console output does not.
func (l *Logger) emit(writers []registeredWriter, timestamped bool, level zerolog.Level, msg string, err error, info StructuredLogInfo, withStack bool) {
	if len(writers) == 0 {
		return
	}

	outs := make([]io.Writer, len(writers))
	for i, w := range writers {
		outs[i] = w.wrapped
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(outs...)).Level(l.outputs.level).With()
	if timestamped {
		ctx = ctx.Timestamp()
	}
	for _, field := range l.fields {
		ctx = ctx.Str(field[0], field[1])
	}
	logger := ctx.Logger()

	event := logger.WithLevel(level)
	if err != nil {
		event = event.Err(err)
		if withStack {
			event = event.Stack()
		}
	}
	if info != nil {
		event = event.Any("info", info)
	}
	event.Msg(msg)
}

// buildMsgs takes in a variadic list of arguments of any type and returns two strings and, optionally, an error and a
// StructuredLogInfo object. The first string is colorized for console logging while the second one is plain text for
// file/structured logging.
func buildMsgs(args ...any) (string, string, error, StructuredLogInfo) {
	if len(args) == 0 {
		return "", "", nil, nil
	}

	colorCtx := colors.Reset
	consoleOutput := make([]string, 0, len(args))
	plainOutput := make([]string, 0, len(args))
	var info StructuredLogInfo
	var err error

	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			// Switch the current color context
			colorCtx = t
		case StructuredLogInfo:
			// Only one structured log info is kept per message
			info = t
		case error:
			// Only one error is kept per message
			err = t
		default:
			consoleOutput = append(consoleOutput, colorCtx(t))
			plainOutput = append(plainOutput, fmt.Sprintf("%v", t))
		}
	}

	return strings.Join(consoleOutput, ""), strings.Join(plainOutput, ""), err, info
}

// NewRotatingFileWriter returns a size-rotated log file in the provided directory. The file name carries the unix
// time the run started at, so consecutive runs never share a file.
func NewRotatingFileWriter(directory string) io.WriteCloser {
	filename := "log-" + strconv.FormatInt(time.Now().Unix(), 10) + ".log"
	return &lumberjack.Logger{
		Filename:   filepath.Join(directory, filename),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
	}
}

// setupDefaultFormatting will update the console writer's formatting to the abirunner standard
func setupDefaultFormatting(writer zerolog.ConsoleWriter, level zerolog.Level, colored bool) zerolog.ConsoleWriter {
	paint := func(colorFunc colors.ColorFunc, s string) string {
		if !colored {
			return s
		}
		return colorFunc(s)
	}

	// Get rid of the timestamp for console output
	writer.FormatTimestamp = func(i any) string {
		return ""
	}

	writer.FormatLevel = func(i any) string {
		levelStr, _ := i.(string)
		parsed, err := zerolog.ParseLevel(levelStr)
		if err != nil {
			return levelStr
		}

		switch parsed {
		case zerolog.TraceLevel:
			return paint(colors.CyanBold, zerolog.LevelTraceValue)
		case zerolog.DebugLevel:
			return paint(colors.BlueBold, zerolog.LevelDebugValue)
		case zerolog.InfoLevel:
			return paint(colors.GreenBold, colors.LEFT_ARROW)
		case zerolog.WarnLevel:
			return paint(colors.YellowBold, zerolog.LevelWarnValue)
		case zerolog.ErrorLevel:
			return paint(colors.RedBold, zerolog.LevelErrorValue)
		case zerolog.FatalLevel:
			return paint(colors.RedBold, zerolog.LevelFatalValue)
		case zerolog.PanicLevel:
			return paint(colors.RedBold, zerolog.LevelPanicValue)
		default:
			return levelStr
		}
	}

	// Messages carry their own colors through ColorFunc arguments
	writer.FormatMessage = func(i any) string {
		if i == nil {
			return ""
		}
		return fmt.Sprintf("%v", i)
	}

	// Above debug level the module context is noise on the console
	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{"module"}
	}

	return writer
}
