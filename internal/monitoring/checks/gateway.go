package checks

import (
	"context"
	"time"

	"github.com/linkfield/clientd/internal/monitoring"
)

const gatewayProbeTimeout = 3 * time.Second

// Pinger probes gateway reachability. *gateway.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gateway reports whether the Linkfield gateway answers its health endpoint.
func Gateway(pinger Pinger) monitoring.Check {
	return monitoring.NewCheck("gateway", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if pinger == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "gateway client unavailable",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, gatewayProbeTimeout)
		defer cancel()

		err := pinger.Ping(probeCtx)
		return monitoring.ResultFromError("gateway", err, time.Since(start))
	})
}
