package probe

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Timeout     time.Duration
	DefaultPort int
	TLS         bool
}

type Result struct {
	Latency   time.Duration
	BytesRead int64
	Issuer    string
	Expires   time.Time
}

// Address appends the default port to host unless it already has one.
func Address(host string, defaultPort int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	return net.JoinHostPort(host, strconv.Itoa(defaultPort))
}

// Check dials host and, when TLS is enabled, completes a handshake and
// verifies the certificate against the host name. A nil error means the
// host is reachable.
func Check(ctx context.Context, host string, opts Options) (Result, error) {
	addr := Address(host, opts.DefaultPort)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()

	dialer := &net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{}, err
	}

	conn := &countingConn{Conn: raw}
	defer conn.Close()

	if !opts.TLS {
		return Result{Latency: time.Since(start)}, nil
	}

	serverName, _, _ := net.SplitHostPort(addr)

	tlsConn := tls.Client(conn, &tls.Config{ServerName: serverName})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return Result{Latency: time.Since(start), BytesRead: conn.read.Load()}, err
	}

	res := Result{
		Latency:   time.Since(start),
		BytesRead: conn.read.Load(),
	}

	peerCertificates := tlsConn.ConnectionState().PeerCertificates
	if len(peerCertificates) == 0 {
		return res, nil
	}

	res.Expires = peerCertificates[0].NotAfter
	if org := peerCertificates[0].Issuer.Organization; len(org) > 0 {
		res.Issuer = org[0]
	}

	for _, cert := range peerCertificates {
		logrus.Debugf("Host %s, notAfter %s, issuer %s, subject %s", host, cert.NotAfter, cert.Issuer, cert.Subject)

		if cert.NotAfter.Before(res.Expires) {
			res.Expires = cert.NotAfter
		}
	}

	return res, nil
}

type countingConn struct {
	net.Conn
	read atomic.Int64
}

func (c *countingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.read.Add(int64(n))

	return n, err
}
