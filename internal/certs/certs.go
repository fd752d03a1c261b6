// Package certs provisions the certificate the API server listens with.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// Mode selects where the certificate comes from.
type Mode string

const (
	// ModeOff serves plain HTTP.
	ModeOff        Mode = "off"
	ModeSelfSigned Mode = "self-signed"
	ModeACME       Mode = "acme"
	ModeManual     Mode = "manual"
)

// ParseMode validates a mode name. An empty string yields ModeOff.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeOff, nil
	case ModeOff, ModeSelfSigned, ModeACME, ModeManual:
		return m, nil
	default:
		return "", fmt.Errorf("unknown tls mode %q (want off, self-signed, acme or manual)", s)
	}
}

// Config describes the certificate source.
type Config struct {
	Mode     string
	Domain   string // acme
	Email    string // acme, optional
	CertFile string // manual
	KeyFile  string // manual
	// Dir holds generated self-signed pairs and the acme cache.
	Dir string
	// Hosts are added to a self-signed certificate next to localhost.
	Hosts []string
}

// Provider hands out the server's tls.Config.
type Provider struct {
	mode  Mode
	tls   *tls.Config
	acme  *autocert.Manager
	hosts []string
}

// New provisions certificates for cfg. It returns a nil Provider and no
// error for ModeOff.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeOff {
		return nil, nil
	}

	p := &Provider{mode: mode}
	switch mode {
	case ModeManual:
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, fmt.Errorf("manual tls mode requires cert_file and key_file")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load certificate: %w", err)
		}
		p.tls = &tls.Config{Certificates: []tls.Certificate{cert}}
		logger.Info("tls_configured", "mode", mode, "cert_file", cfg.CertFile, "component", "certs")

	case ModeACME:
		if cfg.Domain == "" {
			return nil, fmt.Errorf("acme tls mode requires a domain")
		}
		p.acme = &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.Domain),
			Cache:      autocert.DirCache(filepath.Join(cfg.Dir, "acme")),
			Email:      cfg.Email,
		}
		p.tls = p.acme.TLSConfig()
		logger.Info("tls_configured", "mode", mode, "domain", cfg.Domain, "component", "certs")

	case ModeSelfSigned:
		cert, generated, err := selfSigned(cfg.Dir, cfg.Hosts)
		if err != nil {
			return nil, err
		}
		p.tls = &tls.Config{Certificates: []tls.Certificate{cert}}
		logger.Info("tls_configured", "mode", mode, "dir", cfg.Dir, "generated", generated, "component", "certs")
	}

	p.tls.MinVersion = tls.VersionTLS12
	return p, nil
}

// Mode reports the active mode.
func (p *Provider) Mode() Mode { return p.mode }

// TLSConfig is the configuration to hand to http.Server.
func (p *Provider) TLSConfig() *tls.Config { return p.tls }

// ChallengeHandler answers ACME HTTP-01 challenges and passes everything
// else to fallback. Outside acme mode it is fallback itself.
func (p *Provider) ChallengeHandler(fallback http.Handler) http.Handler {
	if p.acme == nil {
		return fallback
	}
	return p.acme.HTTPHandler(fallback)
}

// CertificatePath is the PEM file the server will read for cfg, or "" when
// the certificate is not kept on disk as a single file.
func CertificatePath(cfg Config) string {
	switch Mode(cfg.Mode) {
	case ModeManual:
		return cfg.CertFile
	case ModeSelfSigned:
		return filepath.Join(cfg.Dir, certFileName)
	}
	return ""
}

// NotAfter reads the expiry of the first certificate in a PEM file.
func NotAfter(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return time.Time{}, fmt.Errorf("%s: no certificate block", path)
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", path, err)
	}
	return leaf.NotAfter, nil
}
