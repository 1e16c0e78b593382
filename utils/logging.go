package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	logger "github.com/sirupsen/logrus"

	"github.com/ethpandaops/dora-eventcache/types"
)

// LogWriter owns the outputs opened by InitLogger.
type LogWriter struct {
	file *os.File
}

// Dispose closes the log file, if any.
func (w *LogWriter) Dispose() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
}

// InitLogger configures the standard logrus logger from the logging config and
// returns it together with the writer owning its outputs.
func InitLogger(cfg *types.Config) (*LogWriter, logger.FieldLogger) {
	logWriter := &LogWriter{}
	log := logger.StandardLogger()

	outputLevel := parseLevel(cfg.Logging.OutputLevel, logger.InfoLevel)
	var output io.Writer = os.Stdout
	if cfg.Logging.OutputStderr {
		output = os.Stderr
	}
	log.SetOutput(output)
	log.SetLevel(outputLevel)

	if cfg.Logging.FilePath == "" {
		return logWriter, log
	}

	file, err := os.OpenFile(cfg.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Errorf("could not open log file %v", cfg.Logging.FilePath)
		return logWriter, log
	}
	logWriter.file = file

	// console and file get their own level, the logger level is the more verbose one
	fileLevel := parseLevel(cfg.Logging.FileLevel, outputLevel)
	log.SetOutput(io.Discard)
	log.SetLevel(max(outputLevel, fileLevel))
	log.AddHook(&levelHook{
		writer:    output,
		formatter: &logger.TextFormatter{},
		maxLevel:  outputLevel,
	})
	log.AddHook(&levelHook{
		writer:    file,
		formatter: &logger.JSONFormatter{},
		maxLevel:  fileLevel,
	})

	return logWriter, log
}

func parseLevel(level string, fallback logger.Level) logger.Level {
	if level == "" {
		return fallback
	}
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return fallback
	}
	return parsed
}

// levelHook writes entries up to maxLevel to writer.
type levelHook struct {
	writer    io.Writer
	formatter logger.Formatter
	maxLevel  logger.Level
}

func (hook *levelHook) Levels() []logger.Level {
	levels := []logger.Level{}
	for _, level := range logger.AllLevels {
		if level <= hook.maxLevel {
			levels = append(levels, level)
		}
	}
	return levels
}

func (hook *levelHook) Fire(entry *logger.Entry) error {
	line, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = hook.writer.Write(line)
	return err
}

// LogFatal logs a fatal error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogFatal is called.
func LogFatal(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Fatal(errorMsg)
}

// LogError logs an error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogError is called.
func LogError(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Error(errorMsg)
}

func logErrorInfo(err error, callerSkip int, additionalInfos ...map[string]interface{}) *logger.Entry {
	logFields := logger.NewEntry(logger.StandardLogger())

	pc, fullFilePath, line, ok := runtime.Caller(callerSkip + 2)
	if ok {
		logFields = logFields.WithFields(logger.Fields{
			"_file":     filepath.Base(fullFilePath),
			"_function": runtime.FuncForPC(pc).Name(),
			"_line":     line,
		})
	} else {
		logFields = logFields.WithField("runtime", "Callstack cannot be read")
	}

	// one field per wrapped cause, outermost first
	depth := 0
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		logFields = logFields.WithField(fmt.Sprintf("errInfo_%v", depth), cause.Error())
		depth++
	}

	if err != nil {
		logFields = logFields.WithField("errType", fmt.Sprintf("%T", err)).WithError(err)
	}

	for _, infoMap := range additionalInfos {
		for name, info := range infoMap {
			logFields = logFields.WithField(name, info)
		}
	}

	return logFields
}
