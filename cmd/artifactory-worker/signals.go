package main

import (
	"os"
	"os/signal"

	"github.com/go-kit/kit/log"
)

// awaitShutdown closes shutdown on the first signal to arrive on c.
// After that the signals go back to their default handling, so a
// second one ends the process even with a job in flight.
func awaitShutdown(c chan os.Signal, shutdown chan struct{}, logger log.Logger) {
	sig := <-c
	signal.Stop(c)
	logger.Log("signal", sig, "msg", "finishing the job in flight, if any; signal again to exit now")
	close(shutdown)
}
