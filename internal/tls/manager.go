package tls

import (
	"crypto/tls"
	"fmt"
	"os"
	"sync"

	"otp-auth-service/internal/config"
	"otp-auth-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

// TLSManager resolves the serving certificate: ACME first when enabled,
// then the configured key pair, then a self-signed development cert.
type TLSManager struct {
	config   config.ServerConfig
	autoCert *autocert.Manager

	mu       sync.Mutex
	fallback *tls.Certificate
}

func NewTLSManager(serverConfig config.ServerConfig) *TLSManager {
	manager := &TLSManager{
		config: serverConfig,
	}

	if serverConfig.AutoCert && serverConfig.EnableTLS {
		manager.setupAutoCert()
	}

	return manager
}

func (m *TLSManager) setupAutoCert() {
	if err := os.MkdirAll(m.config.AutoCertDir, 0700); err != nil {
		util.Warn("Could not create autocert directory", zap.Error(err))
		return
	}

	m.autoCert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(m.config.Domain),
		Cache:      autocert.DirCache(m.config.AutoCertDir),
		Email:      m.config.Email,
	}

	util.Info("AutoCert configured",
		zap.String("domain", m.config.Domain),
		zap.String("cache_dir", m.config.AutoCertDir))
}

func (m *TLSManager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		cert, err := m.autoCert.GetCertificate(hello)
		if err == nil {
			return cert, nil
		}
		util.Warn("AutoCert lookup failed, using fallback certificate",
			zap.String("server_name", hello.ServerName), zap.Error(err))
	}

	return m.fallbackCertificate()
}

// fallbackCertificate loads the configured pair or a self-signed one once
// and reuses it for every handshake.
func (m *TLSManager) fallbackCertificate() (*tls.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fallback != nil {
		return m.fallback, nil
	}

	if m.config.CertFile != "" && m.config.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.config.CertFile, m.config.KeyFile)
		if err == nil {
			m.fallback = &cert
			return m.fallback, nil
		}
		util.Warn("Could not load configured certificate", zap.String("cert_file", m.config.CertFile), zap.Error(err))
	}

	cert, err := m.generateSelfSignedCert()
	if err != nil {
		return nil, err
	}
	m.fallback = cert
	return cert, nil
}

func (m *TLSManager) generateSelfSignedCert() (*tls.Certificate, error) {
	generator := NewDevCertGenerator(m.config.AutoCertDir)
	hosts := []string{
		m.config.Domain,
		"localhost",
		"127.0.0.1",
		"::1",
	}

	cert, err := generator.GenerateCert(hosts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}

	util.Info("Generated self-signed certificate", zap.Strings("hosts", hosts))
	return &cert, nil
}

func (m *TLSManager) GetTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}
}

// GetAutocertManager returns nil unless ACME is enabled.
func (m *TLSManager) GetAutocertManager() *autocert.Manager {
	return m.autoCert
}
