package logger

import (
	"fmt"
	"time"
)

// ANSI color codes. Output goes to stdout; terminals that don't support
// colors will show the escape sequences, which is acceptable for a CLI tool.
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func logLine(color, level, tag, msg string) {
	fmt.Printf("%s%s%s %s%-5s%s [%s] %s\n",
		colorGray, timestamp(), colorReset,
		color, level, colorReset,
		tag, msg)
}

// Info logs an informational message with a component tag.
func Info(tag, msg string) {
	logLine(colorCyan, "INFO", tag, msg)
}

// Success logs a success message.
func Success(tag, msg string) {
	logLine(colorGreen, "OK", tag, msg)
}

// Warn logs a warning.
func Warn(tag, msg string) {
	logLine(colorYellow, "WARN", tag, msg)
}

// Error logs an error.
func Error(tag, msg string) {
	logLine(colorRed, "ERROR", tag, msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Printf("%s%scardsync%s %s\n", colorBold, colorCyan, colorReset, version)
}

// Section prints a visual section separator.
func Section(name string) {
	fmt.Printf("\n%s── %s ──%s\n", colorGray, name, colorReset)
}

// Stats prints a key/value statistic line.
func Stats(key string, value interface{}) {
	fmt.Printf("  %s%s:%s %v\n", colorGray, key, colorReset, value)
}
