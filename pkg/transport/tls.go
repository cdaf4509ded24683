package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertificates indicates a CA file contained no usable certificates.
var ErrNoCertificates = errors.New("no certificates found")

// TLSConfig holds configuration for hub TLS connections.
type TLSConfig struct {
	// RootCAs is the pool of trusted CA certificates.
	// Nil uses the system pool.
	RootCAs *x509.CertPool

	// ServerName overrides the name checked against the hub certificate.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing against a local hub.
	InsecureSkipVerify bool
}

// NewClientTLSConfig creates a TLS configuration for the websocket dial.
// A nil cfg yields a config that verifies against the system pool.
func NewClientTLSConfig(cfg *TLSConfig) *tls.Config {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if cfg == nil {
		return tlsConfig
	}

	tlsConfig.RootCAs = cfg.RootCAs
	tlsConfig.ServerName = cfg.ServerName
	tlsConfig.InsecureSkipVerify = cfg.InsecureSkipVerify
	return tlsConfig
}

// LoadRootCAs reads PEM certificates from path into a new pool.
func LoadRootCAs(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCertificates)
	}
	return pool, nil
}
