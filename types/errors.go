package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty          = errors.New("cache key empty")
	ErrCacheConnectionFailed  = errors.New("cache connection failed")
	ErrCacheIsDisabled        = errors.New("cache is disabled")
	ErrCacheEntryCorrupt      = errors.New("cache entry corrupt")
	ErrCacheValueInvalid      = errors.New("cache value invalid")
	ErrCacheBatchSizeMismatch = errors.New("cache batch size mismatch")
)

var (
	ErrLockKeyEmpty      = errors.New("lock key empty")
	ErrLockReleaseFailed = errors.New("lock release failed")
)

var (
	ErrWarmingInProgress      = errors.New("warming already in progress")
	ErrWarmingIsDisabled      = errors.New("warming is disabled")
	ErrWarmingStrategyUnknown = errors.New("warming strategy unknown")
	ErrWarmingStrategyExists  = errors.New("warming strategy exists")
	ErrWarmingStrategyIsNil   = errors.New("warming strategy is nil")
)

var (
	ErrMonitorIsDisabled = errors.New("monitor is disabled")
	ErrMonitorNotRunning = errors.New("monitor not running")
)

var (
	ErrServiceIsRunning     = errors.New("service is running")
	ErrServiceIsNotRunning  = errors.New("service is not running")
	ErrComponentStartFailed = errors.New("component start failed")
	ErrComponentStopFailed  = errors.New("component stop failed")
)

var (
	ErrLoggerTypeUnknown  = errors.New("logger type unknown")
	ErrLogFileIsEmpty     = errors.New("log file is empty")
	ErrLogFileWrongFormat = errors.New("log file wrong format")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
