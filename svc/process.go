package svc

import (
	"os"
	"os/signal"
	"syscall"
)

// Process is the process-level collaborator of a [Manager]: a source of
// termination signals and a way to exit.
type Process interface {
	// Notify relays the given signals to c, as [signal.Notify].
	Notify(c chan<- os.Signal, sig ...os.Signal)
	// Stop stops relaying signals to c, as [signal.Stop].
	Stop(c chan<- os.Signal)
	// Exit terminates the process with the given status code.
	Exit(code int)
}

// OSProcess returns the Process backed by os/signal and os.Exit.
func OSProcess() Process {
	return osProcess{}
}

type osProcess struct{}

func (osProcess) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }

func (osProcess) Stop(c chan<- os.Signal) { signal.Stop(c) }

func (osProcess) Exit(code int) { os.Exit(code) }

// shutdownSignals are the signals a Manager handles when configured to.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func signalName(sig os.Signal) string {
	switch sig {
	case os.Interrupt:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return sig.String()
	}
}
