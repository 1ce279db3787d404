package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a signal arrives, then runs callback and waits up to
// timeout for it to finish. done is closed once the callback returns.
func ListenForShutdown(
	notifier chan os.Signal,
	done chan bool,
	callback func(),
	timeout time.Duration,
	logger *zap.Logger,
) {
	sig := <-notifier
	logger.Sugar().Infow("Received shutdown signal", zap.String("signal", sig.String()))

	go func() {
		callback()
		close(done)
	}()

	select {
	case <-done:
		logger.Sugar().Infow("Graceful shutdown complete")
	case <-time.After(timeout):
		logger.Sugar().Warnw("Graceful shutdown timed out", zap.Duration("timeout", timeout))
	}
}
