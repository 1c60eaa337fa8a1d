// Package logging is the repository's single logging sink. Every
// receiver logs through here instead of formatting its own strings, so
// the verbosity toggle and the output format live in one place.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})
	l.SetLevel(logrus.WarnLevel)
	return l
}

// SetVerbose toggles between "routine traffic is silent" (the default)
// and "every accept/parse/complete/stats line is emitted".
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
}

// Accepted logs a newly accepted client connection.
func Accepted(fd int, remote string) {
	log.WithFields(logrus.Fields{"fd": fd, "remote": remote}).Info("new client")
}

// AcceptFailed logs a failed accept(2); the listener stays armed.
func AcceptFailed(err error) {
	log.WithError(err).Warn("couldn't accept")
}

// ContentLengthSet logs the content-length actor's parse result.
func ContentLengthSet(fd int, n int) {
	log.WithFields(logrus.Fields{"fd": fd, "bytes": n}).Infof("set content length: %d bytes", n)
}

// GotAllData logs that a connection's buffer reached its content length.
func GotAllData(fd int, bytes int) {
	log.WithFields(logrus.Fields{"fd": fd, "bytes": bytes}).Infof("got all data: %d bytes", bytes)
}

// Answered logs a completed write of the response.
func Answered(fd int) {
	log.WithField("fd", fd).Infof("answered from fd %d", fd)
}

// AnswerFailed logs a failed write; the connection is torn down anyway.
func AnswerFailed(fd int, err error) {
	log.WithField("fd", fd).WithError(err).Warnf("could not answer to fd %d", fd)
}

// ReceiversInFlight logs the periodic stats line.
func ReceiversInFlight(n int) {
	log.WithField("count", n).Infof("receivers in flight: %d", n)
}

// UnexpectedFd logs a wakeup for a fd the registry no longer knows about.
func UnexpectedFd(fd int) {
	log.WithField("fd", fd).Warnf("unexpected fd %d", fd)
}

// Exited logs a clean shutdown.
func Exited() {
	log.Info("exited")
}
