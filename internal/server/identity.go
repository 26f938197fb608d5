package server

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// fingerprintPublicKeyDER computes the server's self-reported identity:
// a SHA-256 fingerprint of its TLS certificate's public key, the same shape an
// operator would paste into a peer's allow-list to pin this server
// (grounded on server-identity.cpp's fingerprint_public_key/
// fill_server_fingerprint, which hashes the DER-encoded public key
// rather than the whole certificate so re-issuing a certificate over
// the same key pair keeps the fingerprint stable).
func fingerprintPublicKeyDER(certDER []byte) (string, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return "", fmt.Errorf("parsing certificate: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}
	sum := sha256.Sum256(pubDER)
	return hex.EncodeToString(sum[:]), nil
}

// identityString renders "[address]:port:fingerprint", matching
// ServerIdentity::get_identity_string's layout. Returns a placeholder
// fingerprint of zeros if no certificate is configured (tlsConfig nil
// in tests) or fingerprinting fails, mirroring the original's "all
// zero if none was given" fallback for CA-signed certificates.
func (s *Server) identityString() string {
	hash := s.identityHash
	if hash == "" {
		hash = strings.Repeat("0", sha256.Size*2)
	}
	return fmt.Sprintf("[%s]:%d:%s", s.cfg.BindAddress, s.cfg.Port, hash)
}

// Identity exposes the server's fingerprint line to callers outside
// the package (cmd/server logs it at startup alongside the admin
// console's "showidentity" command).
func (s *Server) Identity() string {
	return s.identityString()
}
