package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/internal/monitoring"
)

// ChannelObserver exposes the connection states needed to judge push health.
// *channel.Manager satisfies it.
type ChannelObserver interface {
	Infos() []channel.Info
}

// Channels evaluates the push connections: topics stuck reconnecting degrade
// the daemon, and losing every connection marks it down.
func Channels(observer ChannelObserver) monitoring.Check {
	return monitoring.NewCheck("channels", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "channel manager unavailable",
				Duration: time.Since(start),
			}
		}

		infos := observer.Infos()
		if len(infos) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no topics connected",
				Duration: time.Since(start),
			}
		}

		connected := 0
		var troubled []string
		for _, info := range infos {
			switch info.Status {
			case channel.StatusConnected:
				connected++
			case channel.StatusReconnecting:
				troubled = append(troubled, fmt.Sprintf("%s reconnecting (attempt %d)", info.Topic, info.Attempts))
			}
		}

		status := monitoring.StatusUp
		if len(troubled) > 0 {
			status = monitoring.StatusDegraded
		}
		if connected == 0 {
			status = monitoring.StatusDown
			if len(troubled) == 0 {
				troubled = append(troubled, "no topic is connected")
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(troubled, "; "),
			Duration: time.Since(start),
		}
	})
}
