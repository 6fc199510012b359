package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "notice":
		return NoticeLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level: %q", s)
}

type Chain int

const (
	None = iota
	Eth
	Sepolia
	Bsc
	BscTestnet
	Pol
	Amoy
	Base
	BaseSepolia
)

var chainIDMap = map[int]Chain{
	1:        Eth,
	11155111: Sepolia,
	56:       Bsc,
	97:       BscTestnet,
	137:      Pol,
	80002:    Amoy,
	8453:     Base,
	84532:    BaseSepolia,
}

var chainPrefixes = map[Chain]string{
	None:        "",
	Eth:         "[ETH]   ",
	Sepolia:     "[SEP]   ",
	Bsc:         "[BSC]   ",
	BscTestnet:  "[TBSC]  ",
	Pol:         "[POL]   ",
	Amoy:        "[AMOY]  ",
	Base:        "[BASE]  ",
	BaseSepolia: "[BSEP]  ",
}

var colors = map[Chain]color.Attribute{
	None:        color.FgWhite,
	Eth:         color.FgHiGreen,
	Sepolia:     color.FgGreen,
	Bsc:         color.FgYellow,
	BscTestnet:  color.FgHiYellow,
	Pol:         color.FgMagenta,
	Amoy:        color.FgHiMagenta,
	Base:        color.FgBlue,
	BaseSepolia: color.FgHiBlue,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithChain(chainID int, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithChain(chainID int, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithChain(chainID int, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithChain(chainID int, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) InfoWithChain(_ int, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) ErrorWithChain(_ int, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) DebugWithChain(_ int, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                 {}
func (l *EmptyLogger) NoticeWithChain(_ int, _ string, _ ...interface{}) {}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console
// and, when configured, to a rotating file.
type StdLogger struct {
	enableColoring bool
	level          Level
	out            *log.Logger
	file           *lumberjack.Logger
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
		out:            log.New(os.Stderr, "", log.LstdFlags),
	}
}

// NewStdLoggerWithFile creates a logger that writes to stderr and to the given rotating file.
// Coloring is only applied to the console when the file is not set.
func NewStdLoggerWithFile(enableColoring bool, level Level, opts FileOptions) *StdLogger {
	if opts.Path == "" {
		return NewStdLogger(enableColoring, level)
	}

	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB, // megabytes
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays, // days
		Compress:   opts.Compress,
	}

	return &StdLogger{
		// escape codes would end up in the file
		enableColoring: false,
		level:          level,
		out:            log.New(io.MultiWriter(os.Stderr, file), "", log.LstdFlags),
		file:           file,
	}
}

// NewWriterLogger creates a logger writing to w, mostly useful in tests.
func NewWriterLogger(w io.Writer, level Level) *StdLogger {
	return &StdLogger{
		level: level,
		out:   log.New(w, "", 0),
	}
}

// Close releases the log file if one is open.
func (l *StdLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// formatMessage formats the log message with the appropriate log level, chain prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, chain Chain, format string) string {
	chainPrefix := chainPrefixes[chain]
	if l.enableColoring {
		chainPrefix = color.New(colors[chain]).Sprint(chainPrefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + chainPrefix + format
}

func (l *StdLogger) logf(level Level, chain Chain, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		l.out.Printf(l.formatMessage(level, chain, format), args...)
	}
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, None, format, args...)
}

func (l *StdLogger) InfoWithChain(chainID int, format string, args ...interface{}) {
	l.logf(InfoLevel, chainIDMap[chainID], format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, None, format, args...)
}

func (l *StdLogger) ErrorWithChain(chainID int, format string, args ...interface{}) {
	l.logf(ErrorLevel, chainIDMap[chainID], format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, None, format, args...)
}

func (l *StdLogger) DebugWithChain(chainID int, format string, args ...interface{}) {
	l.logf(DebugLevel, chainIDMap[chainID], format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, None, format, args...)
}

func (l *StdLogger) NoticeWithChain(chainID int, format string, args ...interface{}) {
	l.logf(NoticeLevel, chainIDMap[chainID], format, args...)
}
