package identity

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

// DefaultFingerprint is the ClientHello identities present on TLS.
var DefaultFingerprint = utls.HelloChrome_Auto

// browserTransport is a transport whose TLS handshakes carry the hello of
// fp. ALPN is pinned to http/1.1: net/http cannot run h2 over a conn it did
// not handshake itself.
func browserTransport(fp utls.ClientHelloID, roots *x509.CertPool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ForceAttemptHTTP2 = false
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialTLS(ctx, d, network, addr, fp, roots)
	}
	return t
}

func dialTLS(ctx context.Context, d *net.Dialer, network, addr string, fp utls.ClientHelloID, roots *x509.CertPool) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	spec, err := utls.UTLSIdToSpec(fp)
	if err != nil {
		return nil, fmt.Errorf("tls fingerprint %s: %w", fp.Str(), err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	raw, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	conn := utls.UClient(raw, &utls.Config{ServerName: host, RootCAs: roots}, utls.HelloCustom)
	if err := conn.ApplyPreset(&spec); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls fingerprint %s: %w", fp.Str(), err)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	return conn, nil
}
