// Package logging builds the loggers used across the application.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to stderr with the given bracketed prefix,
// e.g. "[sync] ".
func New(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags)
}

// NewFile returns a logger writing to both stderr and a size-rotated file.
// maxSizeMB and maxBackups control rotation.
func NewFile(prefix, path string, maxSizeMB, maxBackups int) *log.Logger {
	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return log.New(io.MultiWriter(os.Stderr, rotated), prefix, log.LstdFlags)
}
