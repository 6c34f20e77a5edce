package acthor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// DiscoveredDevice is a host answering on the Modbus port.
type DiscoveredDevice struct {
	Host string
}

const (
	discoveryDialTimeout = 200 * time.Millisecond
	discoveryWorkers     = 64
)

// Discover scans the local /24 subnets for hosts listening on the Modbus
// port. A TCP accept is only a hint: anything speaking Modbus-TCP
// answers, so verify with Connect before trusting a result.
// If the context has no deadline, a 5-second timeout is applied.
func Discover(ctx context.Context) ([]DiscoveredDevice, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	ips, err := localIPv4s()
	if err != nil {
		return nil, fmt.Errorf("get local IPs: %w", err)
	}

	targets := make(chan string)
	go func() {
		defer close(targets)
		for _, ip := range ips {
			base := ip.Mask(net.CIDRMask(24, 32))
			for i := 1; i < 255; i++ {
				target := net.IP{base[0], base[1], base[2], byte(i)}
				select {
				case targets <- target.String():
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var (
		mu      sync.Mutex
		results []DiscoveredDevice
		wg      sync.WaitGroup
	)
	for w := 0; w < discoveryWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var d net.Dialer
			for host := range targets {
				dialCtx, cancel := context.WithTimeout(ctx, discoveryDialTimeout)
				conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(host, fmt.Sprint(ModbusPort)))
				cancel()
				if err != nil {
					continue
				}
				conn.Close()
				mu.Lock()
				results = append(results, DiscoveredDevice{Host: host})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return results, nil
}

func localIPv4s() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				ips = append(ips, ip4)
			}
		}
	}
	return ips, nil
}
