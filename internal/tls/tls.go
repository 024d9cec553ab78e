package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/mlexec/internal/config"
)

// parseTLSVersion parses a TLS version name.
func parseTLSVersion(ver string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(ver)) {
	case "", "default", "1.3", "tls1.3":
		return tls.VersionTLS13, nil
	case "1.2", "tls1.2":
		return tls.VersionTLS12, nil
	}
	return 0, fmt.Errorf("unsupported TLS version %q", ver)
}

// certificateFunc reloads the key pair on every handshake so rotated
// certificates are picked up without a restart.
func certificateFunc(certFile, keyFile string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		certPEM, err := os.ReadFile(filepath.Clean(certFile))
		if err != nil {
			return nil, err
		}
		keyPEM, err := os.ReadFile(filepath.Clean(keyFile))
		if err != nil {
			return nil, err
		}
		c, err := tls.X509KeyPair(certPEM, keyPEM)
		return &c, err
	}
}

// Setup returns the server TLS configuration, or nil when c serves plain HTTP.
// With TLSAutoGenerate a self-signed pair is written when the files are missing.
func Setup(c config.HTTPConfig) (*tls.Config, error) {
	if c.TLSCert == "" && c.TLSKey == "" {
		return nil, nil
	}
	if c.TLSCert == "" || c.TLSKey == "" {
		return nil, errors.New("tls_cert and tls_key must be set together")
	}
	minVer, err := parseTLSVersion(c.TLSMinVersion)
	if err != nil {
		return nil, err
	}
	if !exists(c.TLSCert) || !exists(c.TLSKey) {
		if !c.TLSAutoGenerate {
			return nil, fmt.Errorf("certificate %s or key %s not found", c.TLSCert, c.TLSKey)
		}
		if err := GenerateSelfSignedCert(CertConfig{
			CommonName: "mlexec",
			DNSNames:   []string{"localhost"},
			IPs:        []string{"127.0.0.1", "::1"},
			CertPath:   c.TLSCert,
			KeyPath:    c.TLSKey,
		}); err != nil {
			return nil, fmt.Errorf("certificate generation failed: %w", err)
		}
	}
	getCert := certificateFunc(c.TLSCert, c.TLSKey)
	if _, err := getCert(nil); err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		MinVersion:     minVer,
		GetCertificate: getCert,
	}, nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
