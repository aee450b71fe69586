package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Out receives command output; diagnostics go to Logger
	Out io.Writer

	Logger *logrus.Logger
}

// NewContext creates a new application context that writes output to
// stdout and diagnostics to stderr
func NewContext() *Context {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)

	return &Context{
		Context:      context.Background(),
		OutputFormat: "table",
		Out:          os.Stdout,
		Logger:       logger,
	}
}

// ConfigureLogging sets the log level from the verbosity flags. Quiet wins
// over verbose.
func (c *Context) ConfigureLogging() {
	switch {
	case c.Quiet:
		c.Logger.SetLevel(logrus.ErrorLevel)
	case c.Verbose:
		c.Logger.SetLevel(logrus.DebugLevel)
	default:
		c.Logger.SetLevel(logrus.WarnLevel)
	}
}

// OutputFormats lists the supported values of OutputFormat
var OutputFormats = []string{"table", "json", "yaml"}

// ValidateOutputFormat checks OutputFormat before any work is done
func (c *Context) ValidateOutputFormat() error {
	if slices.Contains(OutputFormats, c.OutputFormat) {
		return nil
	}
	return NewError(ErrCodeInvalidInput,
		fmt.Sprintf("unsupported output format %q (valid formats: %s)", c.OutputFormat, strings.Join(OutputFormats, ", ")), nil)
}

// WithFields returns a log entry carrying fields
func (c *Context) WithFields(fields logrus.Fields) *logrus.Entry {
	return c.Logger.WithFields(fields)
}
