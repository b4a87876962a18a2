/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package log provides the structured logger used across the server.
package log

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Common field keys.
const (
	LoggerKeyComponentName = "component"
	LoggerKeyCorrelationID = "correlation_id"
	LoggerKeyError         = "error"
)

// ContextKeyCorrelationID is the context key the middleware stores the correlation ID under.
type contextKey string

const ContextKeyCorrelationID contextKey = "correlation_id"

// Field is a single structured log attribute.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field holding an arbitrary value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Error creates the error field.
func Error(err error) Field {
	if err == nil {
		return Field{Key: LoggerKeyError, Value: nil}
	}
	return Field{Key: LoggerKeyError, Value: err.Error()}
}

// Logger wraps a logrus entry.
type Logger struct {
	entry *logrus.Entry
}

var (
	base     = logrus.New()
	instance = &Logger{entry: logrus.NewEntry(base)}
	mu       sync.RWMutex
)

func init() {
	base.SetFormatter(&logrus.JSONFormatter{})
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.InfoLevel)
}

// Configure sets level, format and output of the global logger.
func Configure(level, format, output string) error {
	mu.Lock()
	defer mu.Unlock()

	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		lvl = parsed
	}
	base.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	var w io.Writer = os.Stdout
	if strings.EqualFold(output, "stderr") {
		w = os.Stderr
	}
	base.SetOutput(w)
	return nil
}

// SetOutput redirects the global logger, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

// GetLogger returns the global logger.
func GetLogger() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{entry: l.entry.WithFields(toLogrus(fields))}
}

// WithContext attaches the correlation ID found in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok && id != "" {
		return l.With(String(LoggerKeyCorrelationID, id))
	}
	return l
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Debug(msg)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Info(msg)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Error(msg)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Fatal(msg)
}

func toLogrus(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
