package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/franz/media-dock/internal/log"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int           // Maximum number of retry attempts
	InitialWait time.Duration // Initial wait duration (will be doubled each retry)
	MaxWait     time.Duration // Maximum wait duration between retries
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
}

// RemovableRetryConfig returns retry config for removable-media transports,
// which stall longer than local disks while the device wakes up.
func RemovableRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     10 * time.Second,
	}
}

// IsTransientError reports whether an error is worth retrying.
// Detach-class errors are never transient; see IsDetachError.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if IsDetachError(err) {
		return false
	}

	var pathError *os.PathError
	var syscallError syscall.Errno

	if errors.As(err, &pathError) {
		err = pathError.Err
	}

	if errors.As(err, &syscallError) {
		switch syscallError {
		case syscall.EAGAIN, // Resource temporarily unavailable
			syscall.EINTR,     // Interrupted system call
			syscall.ETIMEDOUT, // Operation timed out
			syscall.EBUSY,     // Device busy, often clears on its own
			syscall.EIO:       // I/O error, can be transient on flaky USB links
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"timed out",
		"temporary failure",
		"resource temporarily unavailable",
		"device or resource busy",
		"i/o error",
		"too many open files", // Can be transient if handles are being closed
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// IsDetachError reports whether an error indicates the backing device is gone.
// These are terminal for the affected handle and must not be retried.
func IsDetachError(err error) bool {
	if err == nil {
		return false
	}

	var pathError *os.PathError
	var syscallError syscall.Errno

	if errors.As(err, &pathError) {
		err = pathError.Err
	}

	if errors.As(err, &syscallError) {
		switch syscallError {
		case syscall.ENODEV, // No such device
			syscall.ENXIO,  // No such device or address
			syscall.ENOENT: // Mount point vanished underneath us
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	detachPatterns := []string{
		"no such device",
		"no such file or directory",
		"transport endpoint is not connected",
		"stale file handle",
	}
	for _, pattern := range detachPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
// Returns the result of the function or the final error after all retries exhausted.
func RetryWithBackoff[T any](cfg *RetryConfig, operation func() (T, error), operationName string) (T, error) {
	var result T
	var err error

	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	logger := log.WithComponent("retry")
	waitDuration := cfg.InitialWait

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			if attempt > 1 {
				logger.Debug().Str("op", operationName).Int("attempt", attempt).Msg("succeeded after retry")
			}
			return result, nil
		}

		if !IsTransientError(err) {
			return result, err
		}

		if attempt == cfg.MaxAttempts {
			logger.Warn().Str("op", operationName).Int("attempts", cfg.MaxAttempts).Err(err).Msg("retries exhausted")
			return result, fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxAttempts, err)
		}

		logger.Debug().Str("op", operationName).Int("attempt", attempt).Dur("wait", waitDuration).Err(err).Msg("retrying")
		time.Sleep(waitDuration)

		waitDuration *= 2
		if waitDuration > cfg.MaxWait {
			waitDuration = cfg.MaxWait
		}
	}

	return result, fmt.Errorf("unexpected retry loop exit: %w", err)
}

// Retry executes a function with retry logic (no return value).
func Retry(cfg *RetryConfig, operation func() error, operationName string) error {
	_, err := RetryWithBackoff(cfg, func() (struct{}, error) {
		return struct{}{}, operation()
	}, operationName)
	return err
}
