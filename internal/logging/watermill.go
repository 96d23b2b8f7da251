// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter implements watermill.LoggerAdapter on top of zerolog so
// the NATS publisher logs through the same sink as the rest of the process.
type WatermillAdapter struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

// NewWatermillLogger wraps the given zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatermillLogger(logger zerolog.Logger) *WatermillAdapter {
	return &WatermillAdapter{logger: logger}
}

// Error implements watermill.LoggerAdapter.
func (w *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.event(w.logger.Error().Err(err), fields).Msg(msg)
}

// Info implements watermill.LoggerAdapter.
func (w *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	w.event(w.logger.Info(), fields).Msg(msg)
}

// Debug implements watermill.LoggerAdapter.
func (w *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	w.event(w.logger.Debug(), fields).Msg(msg)
}

// Trace implements watermill.LoggerAdapter.
func (w *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	w.event(w.logger.Trace(), fields).Msg(msg)
}

// With implements watermill.LoggerAdapter.
func (w *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{logger: w.logger, fields: w.fields.Add(fields)}
}

func (w *WatermillAdapter) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	if len(w.fields) > 0 {
		e = e.Fields(map[string]interface{}(w.fields))
	}
	if len(fields) > 0 {
		e = e.Fields(map[string]interface{}(fields))
	}
	return e
}

var _ watermill.LoggerAdapter = (*WatermillAdapter)(nil)
