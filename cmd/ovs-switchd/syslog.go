/*
 * openvswitch - an OpenFlow software switch core
 *
 * Copyright (C) 2015 The openvswitch authors. All rights reserved.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package main

import (
	slog "log/syslog"

	"github.com/op/go-logging"
)

// syslogBackend forwards log records to the local syslog daemon under the
// daemon facility. Record formatting stays with the logging package; only
// the severity mapping lives here.
type syslogBackend struct {
	writer *slog.Writer
}

func newSyslogBackend(tag string) (logging.Backend, error) {
	w, err := slog.New(slog.LOG_DAEMON|slog.LOG_INFO, tag)
	if err != nil {
		return nil, err
	}

	return &syslogBackend{writer: w}, nil
}

func (r *syslogBackend) Log(level logging.Level, calldepth int, record *logging.Record) error {
	line := record.Formatted(calldepth + 1)
	switch level {
	case logging.CRITICAL:
		return r.writer.Crit(line)
	case logging.ERROR:
		return r.writer.Err(line)
	case logging.WARNING:
		return r.writer.Warning(line)
	case logging.NOTICE:
		return r.writer.Notice(line)
	case logging.INFO:
		return r.writer.Info(line)
	case logging.DEBUG:
		return r.writer.Debug(line)
	default:
		panic("unexpected log level")
	}
}
