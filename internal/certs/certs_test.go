package certs

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func leafOf(t *testing.T, p *Provider) *x509.Certificate {
	t.Helper()
	certs := p.TLSConfig().Certificates
	if len(certs) == 0 {
		t.Fatal("no certificate configured")
	}
	leaf, err := x509.ParseCertificate(certs[0].Certificate[0])
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return leaf
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeOff, "off": ModeOff, "self-signed": ModeSelfSigned, "acme": ModeACME, "manual": ModeManual} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("letsencrypt"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNew_Off(t *testing.T) {
	p, err := New(Config{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p != nil {
		t.Error("off mode should not return a provider")
	}
}

func TestNew_SelfSigned(t *testing.T) {
	dir := t.TempDir()
	p, err := New(Config{Mode: "self-signed", Dir: dir, Hosts: []string{"qr.internal", "10.0.0.7"}}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Mode() != ModeSelfSigned {
		t.Errorf("expected self-signed, got %s", p.Mode())
	}
	if p.TLSConfig().MinVersion != tls.VersionTLS12 {
		t.Error("MinVersion should be TLS 1.2")
	}

	leaf := leafOf(t, p)
	if leaf.Subject.CommonName != "qrcomposer self-signed" {
		t.Errorf("unexpected CN %q", leaf.Subject.CommonName)
	}
	for _, host := range []string{"localhost", "127.0.0.1", "qr.internal", "10.0.0.7"} {
		if err := leaf.VerifyHostname(host); err != nil {
			t.Errorf("certificate should cover %s: %v", host, err)
		}
	}

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key permissions = %o, want 600", info.Mode().Perm())
	}
}

func TestNew_SelfSignedReusesPair(t *testing.T) {
	dir := t.TempDir()
	first, err := New(Config{Mode: "self-signed", Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("New (1st): %v", err)
	}
	second, err := New(Config{Mode: "self-signed", Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("New (2nd): %v", err)
	}
	if leafOf(t, first).SerialNumber.Cmp(leafOf(t, second).SerialNumber) != 0 {
		t.Error("stored pair should be reused")
	}

	// A new host forces a fresh pair.
	third, err := New(Config{Mode: "self-signed", Dir: dir, Hosts: []string{"qr.example"}}, testLogger())
	if err != nil {
		t.Fatalf("New (3rd): %v", err)
	}
	if leafOf(t, first).SerialNumber.Cmp(leafOf(t, third).SerialNumber) == 0 {
		t.Error("pair without the requested host should be regenerated")
	}
}

func TestSelfSigned_CorruptPairRegenerated(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, certFileName), []byte("not a cert"), 0o644)
	os.WriteFile(filepath.Join(dir, keyFileName), []byte("not a key"), 0o600)

	_, generated, err := selfSigned(dir, nil)
	if err != nil {
		t.Fatalf("selfSigned: %v", err)
	}
	if !generated {
		t.Error("corrupt pair should be regenerated")
	}
}

func TestUsable_NearExpiry(t *testing.T) {
	dir := t.TempDir()
	cert, err := generate(dir, nil, time.Now().Add(-validity+renewBefore/2))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if usable(cert, nil, time.Now()) {
		t.Error("certificate inside the renewal window should not be usable")
	}
	if !usable(cert, nil, time.Now().Add(-validity/2)) {
		t.Error("certificate well before expiry should be usable")
	}
}

func TestNew_Manual(t *testing.T) {
	dir := t.TempDir()
	if _, err := generate(dir, nil, time.Now()); err != nil {
		t.Fatalf("generate: %v", err)
	}

	p, err := New(Config{
		Mode:     "manual",
		CertFile: filepath.Join(dir, certFileName),
		KeyFile:  filepath.Join(dir, keyFileName),
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Mode() != ModeManual {
		t.Errorf("expected manual, got %s", p.Mode())
	}
}

func TestNew_ManualErrors(t *testing.T) {
	if _, err := New(Config{Mode: "manual"}, testLogger()); err == nil {
		t.Error("expected error without cert and key files")
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "bad.crt")
	keyFile := filepath.Join(dir, "bad.key")
	os.WriteFile(certFile, []byte("not a cert"), 0o644)
	os.WriteFile(keyFile, []byte("not a key"), 0o600)
	if _, err := New(Config{Mode: "manual", CertFile: certFile, KeyFile: keyFile}, testLogger()); err == nil {
		t.Error("expected error for invalid files")
	}
}

func TestNew_ACME(t *testing.T) {
	if _, err := New(Config{Mode: "acme", Dir: t.TempDir()}, testLogger()); err == nil {
		t.Error("acme without a domain should fail")
	}

	p, err := New(Config{Mode: "acme", Domain: "qr.example.com", Email: "ops@example.com", Dir: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Mode() != ModeACME || p.TLSConfig().GetCertificate == nil {
		t.Error("acme provider should fetch certificates on demand")
	}
}

func TestChallengeHandler(t *testing.T) {
	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	p, err := New(Config{Mode: "self-signed", Dir: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := httptest.NewRecorder()
	p.ChallengeHandler(fallback).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("non-acme handler should be the fallback, got %d", rec.Code)
	}
}

func TestCertificatePathAndNotAfter(t *testing.T) {
	dir := t.TempDir()
	if got := CertificatePath(Config{Mode: "off"}); got != "" {
		t.Errorf("off mode should have no certificate path, got %q", got)
	}
	if got := CertificatePath(Config{Mode: "manual", CertFile: "/etc/qr.crt"}); got != "/etc/qr.crt" {
		t.Errorf("manual path = %q", got)
	}

	now := time.Now().Truncate(time.Second)
	if _, err := generate(dir, nil, now); err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := CertificatePath(Config{Mode: "self-signed", Dir: dir})
	notAfter, err := NotAfter(path)
	if err != nil {
		t.Fatalf("NotAfter: %v", err)
	}
	if !notAfter.Equal(now.Add(validity)) {
		t.Errorf("NotAfter = %v, want %v", notAfter, now.Add(validity))
	}

	if _, err := NotAfter(filepath.Join(dir, keyFileName)); err == nil {
		t.Error("a key file should not parse as a certificate")
	}
}
