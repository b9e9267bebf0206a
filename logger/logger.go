// Copyright (c) 2021 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package logger

// Logger is an interface to pass a generic logger without depending on either golang/glog or
// aristanetworks/glog
//
// Debug/Debugf are an addition beyond the original interface: stripedmap
// reports map construction and Clear at a verbosity below Info, since that
// traffic is routine rather than operationally notable.
type Logger interface {
	// Debug logs at the debug level
	Debug(args ...interface{})
	// Debugf logs at the debug level, with format
	Debugf(format string, args ...interface{})
	// Info logs at the info level
	Info(args ...interface{})
	// Infof logs at the info level, with format
	Infof(format string, args ...interface{})
	// Error logs at the error level
	Error(args ...interface{})
	// Errorf logs at the error level, with format
	Errorf(format string, args ...interface{})
	// Fatal logs at the fatal level
	Fatal(args ...interface{})
	// Fatalf logs at the fatal level, with format
	Fatalf(format string, args ...interface{})
}
