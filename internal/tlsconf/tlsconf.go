// Package tlsconf derives the TLS identity of the TCP listener from the
// shared token.
//
// The private key is derived deterministically, so daemon and clients holding
// the same token agree on the server's public key. Clients verify that key
// directly instead of a certificate chain: the same token connects, a
// different token fails the handshake. The certificate itself is generated
// fresh on every start.
//
//	HKDF-SHA256(ikm=token, salt="stash-tls-v1", info="listener-key")
//	→ 64 bytes → reduced mod curve order → ECDSA P-256 key
package tlsconf

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/hkdf"
	"google.golang.org/grpc/credentials"
)

// DefaultToken is used when the listener runs without --token. It still
// encrypts traffic but does not authenticate anyone.
const DefaultToken = "stash"

const serverName = "stash"

// Credentials is a derived server identity plus the matching client check.
type Credentials struct {
	cert tls.Certificate
	pub  []byte
}

// New derives the identity for token.
func New(token string) (*Credentials, error) {
	if token == "" {
		token = DefaultToken
	}
	key, err := deriveKey(token)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: marshal public key: %w", err)
	}
	der, err := selfSigned(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: certificate: %w", err)
	}
	return &Credentials{
		cert: tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key},
		pub:  pub,
	}, nil
}

// Server is the listener config. ALPN offers h2 for gRPC and http/1.1 for
// the JSON gateway on the same port.
func (c *Credentials) Server() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.cert},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS13,
	}
}

// ClientConfig accepts only a server presenting the derived public key.
func (c *Credentials) ClientConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify:    true, //nolint:gosec // the public key is pinned below
		ServerName:            serverName,
		MinVersion:            tls.VersionTLS13,
		VerifyPeerCertificate: c.verify,
	}
}

// Client is ClientConfig as gRPC transport credentials.
func (c *Credentials) Client() credentials.TransportCredentials {
	return credentials.NewTLS(c.ClientConfig())
}

// Fingerprint is a short hex digest of the public key for display.
func (c *Credentials) Fingerprint() string {
	sum := sha256.Sum256(c.pub)
	return hex.EncodeToString(sum[:8])
}

func (c *Credentials) verify(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("tlsconf: server presented no certificate")
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("tlsconf: parse server certificate: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return fmt.Errorf("tlsconf: marshal server public key: %w", err)
	}
	if !bytes.Equal(pub, c.pub) {
		return errors.New("tlsconf: server key does not match token")
	}
	return nil
}

func deriveKey(token string) (*ecdsa.PrivateKey, error) {
	r := hkdf.New(sha256.New, []byte(token), []byte("stash-tls-v1"), []byte("listener-key"))
	buf := make([]byte, 64)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("hkdf read: %w", err)
	}

	curve := elliptic.P256()
	n := curve.Params().N
	k := new(big.Int).SetBytes(buf)
	k.Mod(k, new(big.Int).Sub(n, big.NewInt(1)))
	k.Add(k, big.NewInt(1))

	key := &ecdsa.PrivateKey{D: k}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(k.FillBytes(make([]byte, 32)))
	return key, nil
}

func selfSigned(key *ecdsa.PrivateKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: serverName},
		DNSNames:              []string{serverName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	return x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
}
