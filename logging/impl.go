package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every entry at or above its level out to all appenders.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

// fill completes an entry with its message and fields.
type fill func(entry *zapcore.Entry) []zapcore.Field

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// emit must be called directly by the exported level methods; the caller lookup counts frames.
func (imp *impl) emit(level Level, f fill) {
	if level < imp.level.Get() {
		return
	}
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Caller:     callerOf(2),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	fields := f(&entry)
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func sprint(args []interface{}) fill {
	return func(entry *zapcore.Entry) []zapcore.Field {
		entry.Message = fmt.Sprint(args...)
		return nil
	}
}

func sprintf(template string, args []interface{}) fill {
	return func(entry *zapcore.Entry) []zapcore.Field {
		entry.Message = fmt.Sprintf(template, args...)
		return nil
	}
}

// withFields pairs keysAndValues up as key, value. A trailing key without a value is kept with
// an error in its place.
func withFields(msg string, keysAndValues []interface{}) fill {
	return func(entry *zapcore.Entry) []zapcore.Field {
		entry.Message = msg
		fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
		for i := 0; i < len(keysAndValues); i += 2 {
			key := fmt.Sprint(keysAndValues[i])
			if i+1 == len(keysAndValues) {
				fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
				break
			}
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
		return fields
	}
}

func (imp *impl) Debug(args ...interface{}) { imp.emit(DEBUG, sprint(args)) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.emit(DEBUG, sprintf(template, args))
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.emit(DEBUG, withFields(msg, keysAndValues))
}

func (imp *impl) Info(args ...interface{}) { imp.emit(INFO, sprint(args)) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.emit(INFO, sprintf(template, args))
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.emit(INFO, withFields(msg, keysAndValues))
}

func (imp *impl) Warn(args ...interface{}) { imp.emit(WARN, sprint(args)) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.emit(WARN, sprintf(template, args))
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.emit(WARN, withFields(msg, keysAndValues))
}

func (imp *impl) Error(args ...interface{}) { imp.emit(ERROR, sprint(args)) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.emit(ERROR, sprintf(template, args))
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.emit(ERROR, withFields(msg, keysAndValues))
}

// callerOf returns the frame skip levels above its own caller.
func callerOf(skip int) zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
