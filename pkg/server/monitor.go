package server

import "time"

// monitorInterval is how often the gateway logs its relay activity.
const monitorInterval = time.Minute

// monitor logs the number of messages relayed and clients connected
// once per interval. The relay counter resets each tick.
func (g *Gateway) monitor() {
	defer close(g.monitorDone)

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			relayed := g.relayedWindow.Swap(0)
			g.logger.Info("relay activity",
				"messages_relayed", relayed,
				"connected_clients", g.clientCount.Load(),
				"active_rooms", g.rooms.Len())

		case <-g.monitorStop:
			return
		}
	}
}
