package support

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SigningKeyEnv names the environment variable holding a base64 or hex
// ed25519 seed or private key.
const SigningKeyEnv = "GAMECHECK_SIGNING_KEY"

// ErrNoSigningKey is returned by LoadSigningKey when no key is configured.
var ErrNoSigningKey = errors.New("no signing key configured")

type Certificate struct {
	Version         string            `json:"version"`
	GeneratedAtUtc  string            `json:"generatedAtUtc"`
	RunID           string            `json:"runId"`
	Mode            string            `json:"mode"`
	Pass            bool              `json:"pass"`
	Reason          string            `json:"reason"`
	Passed          int               `json:"passed"`
	Warnings        int               `json:"warnings"`
	Failed          int               `json:"failed"`
	Coverage        int               `json:"coverage"`
	Tier            string            `json:"tier"`
	Policy          PolicyInfo        `json:"policy"`
	EvidenceHashes  map[string]string `json:"evidence_hashes,omitempty"`
	Signature       string            `json:"signature,omitempty"`
	SignatureMethod string            `json:"signature_method,omitempty"`
}

type PolicyInfo struct {
	FailOnFail    bool   `json:"fail_on_fail"`
	AllowWarnings bool   `json:"allow_warnings"`
	MaxFail       *int   `json:"max_fail,omitempty"`
	MaxWarnings   *int   `json:"max_warnings,omitempty"`
	Expr          string `json:"expr,omitempty"`
}

func NewCertificate(mode, runID string, now time.Time) Certificate {
	return Certificate{
		Version:        "1.0",
		GeneratedAtUtc: now.UTC().Format(time.RFC3339),
		RunID:          runID,
		Mode:           mode,
		Policy:         PolicyInfo{FailOnFail: true, AllowWarnings: true},
	}
}

func SignCertificate(cert *Certificate, priv ed25519.PrivateKey) error {
	payload, err := marshalCertPayload(cert)
	if err != nil {
		return err
	}
	cert.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(priv, payload))
	cert.SignatureMethod = "ed25519"
	return nil
}

func VerifyCertificate(cert *Certificate, pub ed25519.PublicKey) (bool, error) {
	if cert.Signature == "" {
		return false, errors.New("missing signature")
	}
	sig, err := base64.StdEncoding.DecodeString(cert.Signature)
	if err != nil {
		return false, err
	}
	payload, err := marshalCertPayload(cert)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, payload, sig), nil
}

// VerifyEvidence re-hashes every evidence file relative to base and returns
// the entries whose content no longer matches.
func VerifyEvidence(cert *Certificate, base string) []string {
	var mismatched []string
	for rel, want := range cert.EvidenceHashes {
		got, err := HashFile(filepath.Join(base, filepath.FromSlash(rel)))
		if err != nil || got != want {
			mismatched = append(mismatched, rel)
		}
	}
	sort.Strings(mismatched)
	return mismatched
}

// LoadSigningKey reads the key from the environment, then from
// <outputDir>/keys/signing_ed25519.
func LoadSigningKey(outputDir string) (ed25519.PrivateKey, error) {
	if env := os.Getenv(SigningKeyEnv); env != "" {
		return decodePrivateKey(env)
	}
	data, err := os.ReadFile(filepath.Join(outputDir, "keys", "signing_ed25519"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSigningKey
	}
	if err != nil {
		return nil, err
	}
	return decodePrivateKey(string(data))
}

func LoadCertificate(path string) (*Certificate, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var cert Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, nil, fmt.Errorf("parse certificate %s: %w", path, err)
	}
	return &cert, data, nil
}

func decodePrivateKey(raw string) (ed25519.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty key")
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return normalizePrivateKey(b)
	}
	if b, err := hex.DecodeString(raw); err == nil {
		return normalizePrivateKey(b)
	}
	return nil, errors.New("invalid private key format")
}

func normalizePrivateKey(b []byte) (ed25519.PrivateKey, error) {
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	}
	return nil, fmt.Errorf("invalid key length: %d", len(b))
}

func marshalCertPayload(cert *Certificate) ([]byte, error) {
	tmp := *cert
	tmp.Signature = ""
	tmp.SignatureMethod = ""
	return json.Marshal(tmp)
}
