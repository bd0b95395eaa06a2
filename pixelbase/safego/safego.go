package safego

import (
	"time"

	"github.com/ataraxie68/pixelscope/pixelbase/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRestartTimeout = 2 * time.Second

var panics = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pixelscope",
	Subsystem: "safego",
	Name:      "panic",
})

type RecoverHandler func(value any)

type Execution struct {
	f              func()
	recoverHandler RecoverHandler
	restartTimeout time.Duration
}

// Run runs a new goroutine and add panic handler (without restart)
func Run(f func()) *Execution {
	exec := Execution{
		f:              f,
		restartTimeout: 0,
	}

	return exec.run()
}

// RunWithRestart runs a new goroutine, recovers panics and restarts
// the goroutine after restartTimeout
func RunWithRestart(f func()) *Execution {
	exec := Execution{
		f:              f,
		restartTimeout: defaultRestartTimeout,
	}

	return exec.run()
}

func (exec *Execution) run() *Execution {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				panics.Inc()
				logging.SystemErrorf("panic in safego goroutine: %v", r)
				if exec.recoverHandler != nil {
					exec.recoverHandler(r)
				}
				if exec.restartTimeout > 0 {
					time.Sleep(exec.restartTimeout)
					exec.run()
				}
			}
		}()
		exec.f()
	}()
	return exec
}
