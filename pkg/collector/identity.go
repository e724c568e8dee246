package collector

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const hostIDFile = "host_id"

// Identity is the stable per-installation host id plus the refreshable
// display name. The id is generated once and persisted for the lifetime of
// the installation; the display name comes from reverse DNS with the OS
// hostname as fallback.
type Identity struct {
	mu       sync.RWMutex
	id       string
	hostname string
	name     string
}

// LoadIdentity reads the persisted host id from stateDir, generating and
// persisting a fresh one on first run.
func LoadIdentity(stateDir string) (*Identity, error) {
	path := filepath.Join(stateDir, hostIDFile)

	var id string

	data, err := os.ReadFile(path)

	switch {
	case err == nil:
		id = strings.TrimSpace(string(data))
	case os.IsNotExist(err):
		id = uuid.New().String()

		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}

		if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
			return nil, fmt.Errorf("failed to persist host id: %w", err)
		}

		log.Printf("Generated new host id %s", id)
	default:
		return nil, fmt.Errorf("failed to read host id: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Identity{id: id, hostname: hostname, name: hostname}, nil
}

func (i *Identity) ID() string {
	return i.id
}

func (i *Identity) Hostname() string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.hostname
}

func (i *Identity) Name() string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.name
}

// SetHostname updates the fallback name from a fresh snapshot.
func (i *Identity) SetHostname(hostname string) {
	if hostname == "" {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.hostname = hostname

	if i.name == "" {
		i.name = hostname
	}
}

// RefreshName re-resolves the display name via reverse DNS. Run on its own
// timer; resolution failures keep the previous name (or the hostname).
func (i *Identity) RefreshName(ctx context.Context) error {
	ip, err := outboundIP()
	if err != nil {
		i.fallbackName()
		return nil //nolint:nilerr // no network is a normal state, not a refresh error
	}

	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		i.fallbackName()
		return nil
	}

	name := strings.TrimSuffix(names[0], ".")

	i.mu.Lock()
	i.name = name
	i.mu.Unlock()

	return nil
}

func (i *Identity) fallbackName() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.name == "" {
		i.name = i.hostname
	}
}

// outboundIP finds the local address a default route would use. No packet is
// sent; UDP dial only selects a source address.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "1.1.1.1:53")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = conn.Close()
	}()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local addr type %T", conn.LocalAddr())
	}

	return addr.IP.String(), nil
}
