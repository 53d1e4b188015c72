// File: internal/shared/journal.go
package shared

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/crmpilot/internal/config"
)

// Journal file names under the journal directory.
const (
	CommandsFile = "commands.log"
	IssuesFile   = "issues.log"
	InfoFile     = "info.log"
)

const separator = "----------------------------------------"

// Journal is the run's append only record: every command a session issued,
// every issue it hit, and free form notes, each in its own JSON lines file.
// Sessions in separate goroutines may share one Journal.
type Journal struct {
	commands *zap.Logger
	issues   *zap.Logger
	info     *zap.Logger
	closers  []io.Closer
}

// NewJournal opens rotating journal files under cfg.Dir. A disabled config
// yields a Journal that discards everything.
func NewJournal(cfg config.JournalConfig) (*Journal, error) {
	if !cfg.Enabled {
		return NewNopJournal(), nil
	}
	dir, err := homedir.Expand(cfg.Dir)
	if err != nil {
		return nil, err
	}

	open := func(name string) *lumberjack.Logger {
		return &lumberjack.Logger{
			Filename:   filepath.Join(dir, name),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}
	cmd, iss, inf := open(CommandsFile), open(IssuesFile), open(InfoFile)
	j := NewJournalFromWriters(zapcore.AddSync(cmd), zapcore.AddSync(iss), zapcore.AddSync(inf))
	j.closers = []io.Closer{cmd, iss, inf}
	return j, nil
}

// NewJournalFromWriters builds a Journal over caller supplied sinks.
func NewJournalFromWriters(commands, issues, info zapcore.WriteSyncer) *Journal {
	return &Journal{
		commands: newSink(commands, "commands"),
		issues:   newSink(issues, "issues"),
		info:     newSink(info, "info"),
	}
}

// NewNopJournal returns a Journal that discards everything.
func NewNopJournal() *Journal {
	nop := zap.NewNop()
	return &Journal{commands: nop, issues: nop, info: nop}
}

func newSink(w zapcore.WriteSyncer, name string) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	// lumberjack serializes writes; Lock covers any other writer.
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(w), zap.DebugLevel)
	return zap.New(core).Named(name)
}

// Command records an operation a session performed.
func (j *Journal) Command(msg string, fields ...zap.Field) { j.commands.Info(msg, fields...) }

// Issue records a failure.
func (j *Journal) Issue(msg string, fields ...zap.Field) { j.issues.Error(msg, fields...) }

// Info records a note.
func (j *Journal) Info(msg string, fields ...zap.Field) { j.info.Info(msg, fields...) }

// Separator writes a divider to every file, marking the start of a scenario.
func (j *Journal) Separator(title string) {
	line := separator
	if title = strings.TrimSpace(title); title != "" {
		line = separator + " " + title
	}
	j.commands.Info(line)
	j.issues.Info(line)
	j.info.Info(line)
}

// Close flushes and closes the journal files.
func (j *Journal) Close() error {
	var errs []error
	for _, l := range []*zap.Logger{j.commands, j.issues, j.info} {
		// Sync on a closed or non-file writer is harmless to ignore.
		_ = l.Sync()
	}
	for _, c := range j.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
