package errors

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// LogFields extracts structured logging fields from an error. AppError
// values contribute their code, retryability and context; everything else
// gets an empty set.
func LogFields(err error) logrus.Fields {
	fields := logrus.Fields{}

	var appErr *AppError
	if errors.As(err, &appErr) {
		fields["error_code"] = appErr.Code
		fields["retryable"] = appErr.Retryable
		for k, v := range appErr.Context {
			fields[k] = v
		}
	}

	return fields
}

// LogError logs an error with its structured context at error level.
func LogError(logger *logrus.Logger, err error, message string) {
	logger.WithError(err).WithFields(LogFields(err)).Error(message)
}

// LogWarn logs an error with its structured context at warning level.
func LogWarn(logger *logrus.Logger, err error, message string) {
	logger.WithError(err).WithFields(LogFields(err)).Warn(message)
}
