package net

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"InkBoard/internal/config"
)

const serviceType = "_inkboard._tcp"

var ErrNoHub = errors.New("no hub found on the local network")

// Advertise announces a hub listening on port. Shut the returned server down
// to withdraw the announcement.
func Advertise(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	// The TXT record carries the WebSocket path.
	info := []string{"path=" + config.WSPath}

	service, err := mdns.NewMDNSService(host, serviceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Discover browses the local network for a hub and returns its WebSocket URL.
// It returns the first hub found, ErrNoHub once timeout passes without one,
// or ctx's error as soon as ctx ends.
func Discover(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *mdns.ServiceEntry, 8)
	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	queried := make(chan error, 1)
	go func() {
		// The library only sends to entries without blocking, so it may
		// outlive Discover.
		queried <- mdns.QueryContext(ctx, params)
	}()

	for {
		select {
		case e := <-entries:
			if url, ok := entryURL(e); ok {
				return url, nil
			}
		case err := <-queried:
			if err != nil && ctx.Err() == nil {
				return "", fmt.Errorf("mDNS query failed: %w", err)
			}
			for {
				select {
				case e := <-entries:
					if url, ok := entryURL(e); ok {
						return url, nil
					}
				default:
					if ctx.Err() != nil {
						return "", ctx.Err()
					}
					return "", ErrNoHub
				}
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func entryURL(e *mdns.ServiceEntry) (string, bool) {
	if e.AddrV4 == nil || e.Port == 0 {
		return "", false
	}
	return HubURL(e.AddrV4.String(), e.Port, entryPath(e.InfoFields)), true
}

func entryPath(fields []string) string {
	for _, f := range fields {
		if p, ok := strings.CutPrefix(f, "path="); ok {
			return p
		}
	}
	return config.WSPath
}

// HubURL builds the WebSocket URL of a hub.
func HubURL(host string, port int, path string) string {
	return fmt.Sprintf("%s%s:%d%s", config.URLScheme, host, port, path)
}
