package log

import "github.com/sirupsen/logrus"

// BadgerAdapter satisfies badger.Logger on top of a logrus entry so the
// capture store's internal logging lands in the application log stream.
type BadgerAdapter struct {
	*logrus.Entry
}

// NewBadgerAdapter wraps a contextualized logrus entry
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry}
}

// Errorf logs an error message
func (a *BadgerAdapter) Errorf(f string, v ...interface{}) { a.Entry.Errorf(f, v...) }

// Warningf logs a warning message
func (a *BadgerAdapter) Warningf(f string, v ...interface{}) { a.Entry.Warningf(f, v...) }

// Infof logs an info message
func (a *BadgerAdapter) Infof(f string, v ...interface{}) { a.Entry.Infof(f, v...) }

// Debugf logs a debug message
func (a *BadgerAdapter) Debugf(f string, v ...interface{}) { a.Entry.Debugf(f, v...) }
