package discovery

import (
	"context"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultBrowseTimeout is the default timeout for browse operations.
const DefaultBrowseTimeout = 10 * time.Second

// ResolvedLock contains information about a discovered lock.
type ResolvedLock struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// HostName is the target host name.
	HostName string

	// Port is the reader link port.
	Port int

	// IPs contains the resolved IP addresses, IPv4 first.
	IPs []net.IP

	// TXT is the decoded TXT record, nil if it did not parse.
	TXT *LockTXT
}

// PreferredIP returns the first address after sorting, or nil.
func (r *ResolvedLock) PreferredIP() net.IP {
	if len(r.IPs) > 0 {
		return r.IPs[0]
	}
	return nil
}

// Addr returns "ip:port" for the preferred address, or "" if none.
func (r *ResolvedLock) Addr() string {
	ip := r.PreferredIP()
	if ip == nil {
		return ""
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(r.Port))
}

// MDNSResolver browses DNS-SD. Tests substitute MockMDNSResolver.
type MDNSResolver interface {
	// Browse sends discovered services of the given type to entries until
	// ctx is done. It must not close entries.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver()
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

// Browse forwards from a channel owned by zeroconf, which closes it itself.
func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	in := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Browse(ctx, service, domain, in); err != nil {
		return err
	}
	for {
		select {
		case entry, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers locks via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}

	r := &Resolver{
		config:   config,
		resolver: resolver,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// Browse discovers locks on the network. The returned channel is closed when
// ctx is done or the browse timeout expires.
func (r *Resolver) Browse(ctx context.Context) <-chan ResolvedLock {
	results := make(chan ResolvedLock)
	entries := make(chan *zeroconf.ServiceEntry)

	var cancel context.CancelFunc = func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}

	go func() {
		defer close(entries)
		err := r.resolver.Browse(ctx, ServiceLock, DefaultDomain, entries)
		if err != nil && ctx.Err() == nil && r.log != nil {
			r.log.Warnf("browse %s: %v", ServiceLock, err)
		}
	}()

	go func() {
		defer cancel()
		defer close(results)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case results <- r.toResolved(entry):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// Find returns the first lock whose device name is deviceName, or the first
// lock found if deviceName is empty.
func (r *Resolver) Find(ctx context.Context, deviceName string) (*ResolvedLock, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for lock := range r.Browse(ctx) {
		if deviceName == "" || (lock.TXT != nil && lock.TXT.DeviceName == deviceName) {
			return &lock, nil
		}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrTimeout
	}
	return nil, ErrServiceNotFound
}

func (r *Resolver) toResolved(entry *zeroconf.ServiceEntry) ResolvedLock {
	var ips []net.IP
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)

	lock := ResolvedLock{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          SortIPsByPreference(ips),
	}

	txt, err := ParseLockTXT(entry.Text)
	if err != nil {
		if r.log != nil {
			r.log.Debugf("instance %q: %v", entry.Instance, err)
		}
	} else {
		lock.TXT = txt
	}
	return lock
}

// SortIPsByPreference orders addresses for reaching a lock: IPv4 before
// IPv6, and link-local and loopback addresses last.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})
	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	switch {
	case ip.To16() == nil:
		return 99
	case ip.IsLoopback():
		return 80
	case ip.IsLinkLocalUnicast():
		return 50
	case ip.To4() != nil:
		return 0
	default:
		return 10
	}
}
