// Package mobile provides gomobile-compatible bindings for embedding
// the spectator relay in iOS/tvOS/Android applications.
//
// All exported functions use only primitive types (int, string, error)
// to satisfy gomobile's type restrictions.
package mobile

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"schlangen.tv/relay/engine"
)

var (
	srv  *engine.Server
	mu   sync.Mutex
	port int
)

// Start connects to the gameserver at upstreamHost:upstreamPort and serves
// viewers on listenPort. The relay runs in the background until Stop is
// called or the gameserver goes away.
func Start(upstreamHost string, upstreamPort, listenPort int) error {
	mu.Lock()
	defer mu.Unlock()

	if srv != nil {
		select {
		case <-srv.Relay.Done():
			srv.Stop()
			srv = nil
		default:
			return fmt.Errorf("relay already running")
		}
	}

	cfg := engine.DefaultConfig()
	cfg.UpstreamHost = upstreamHost
	cfg.UpstreamPort = strconv.Itoa(upstreamPort)
	cfg.ListenPort = listenPort

	s := engine.NewServer(cfg)
	if err := s.Start(context.Background()); err != nil {
		return err
	}
	srv = s
	port = listenPort
	if _, p, err := net.SplitHostPort(s.Addr()); err == nil {
		port, _ = strconv.Atoi(p)
	}
	return nil
}

// Stop shuts down the running relay.
func Stop() {
	mu.Lock()
	defer mu.Unlock()

	if srv != nil {
		srv.Stop()
		srv = nil
	}
}

// IsRunning returns true while the relay is serving viewers.
func IsRunning() bool {
	mu.Lock()
	defer mu.Unlock()
	if srv == nil {
		return false
	}
	select {
	case <-srv.Relay.Done():
		return false
	default:
		return true
	}
}

// GetStats returns the current relay stats as a JSON string.
func GetStats() string {
	mu.Lock()
	s := srv
	mu.Unlock()

	if s == nil {
		return "{}"
	}
	return s.GetStatsJSON()
}

// GetLocalIP returns the device's local network IP address.
func GetLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return "unknown"
}

// GetConnectURL returns the WebSocket URL viewers should connect to.
func GetConnectURL() string {
	mu.Lock()
	p := port
	mu.Unlock()

	ip := GetLocalIP()
	return fmt.Sprintf("ws://%s:%d/", ip, p)
}

// GetVersion returns the relay version string.
func GetVersion() string {
	return engine.Version
}
