package main

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/support"
)

const certificateFile = "certificate.json"

// writeCertificate writes <output>/certificate.json for rec, hashing each
// evidence file. The certificate is signed when a key is configured.
func (a *app) writeCertificate(mode string, rec report.Record, evidence []string) (string, error) {
	out := a.cfg.OutputDir()
	cert := support.NewCertificate(mode, rec.RunID, nowUTC())
	cert.Pass = rec.Verdict.Pass
	cert.Reason = rec.Verdict.Message
	cert.Passed = rec.Summary.Passed
	cert.Warnings = rec.Summary.Warnings
	cert.Failed = rec.Summary.Failed
	cert.Coverage = rec.Summary.Coverage
	cert.Tier = string(rec.Summary.Tier)
	cert.Policy = support.PolicyInfo{
		FailOnFail:    rec.Policy.EffectiveFailOnFail(),
		AllowWarnings: rec.Policy.EffectiveAllowWarnings(),
		MaxFail:       rec.Policy.MaxFail,
		MaxWarnings:   rec.Policy.MaxWarnings,
		Expr:          rec.Policy.Expr,
	}
	cert.EvidenceHashes = collectEvidenceHashes(out, evidence)

	priv, err := support.LoadSigningKey(out)
	switch {
	case errors.Is(err, support.ErrNoSigningKey):
		a.log.Debug("certificate left unsigned", "reason", err)
	case err != nil:
		return "", fmt.Errorf("signing key: %w", err)
	default:
		if err := support.SignCertificate(&cert, priv); err != nil {
			return "", err
		}
	}

	certPath := filepath.Join(out, certificateFile)
	if err := support.WriteJSONAtomic(certPath, cert); err != nil {
		return "", err
	}
	return support.HashFile(certPath)
}

// collectEvidenceHashes keys each file by its slash path relative to base.
func collectEvidenceHashes(base string, paths []string) map[string]string {
	hashes := map[string]string{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			rel = p
		}
		if h, err := support.HashFile(p); err == nil {
			hashes[filepath.ToSlash(rel)] = h
		}
	}
	return hashes
}

func newVerifyCertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-cert [path]",
		Short: "Verify a run certificate's signature and evidence hashes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.cfg.OutputDir()
			path := filepath.Join(out, certificateFile)
			if len(args) == 1 {
				path = args[0]
			}
			cert, data, err := support.LoadCertificate(path)
			if err != nil {
				return err
			}
			priv, err := support.LoadSigningKey(out)
			if err != nil {
				return err
			}
			ok, err := support.VerifyCertificate(cert, priv.Public().(ed25519.PublicKey))
			if err != nil {
				return fmt.Errorf("verify %s: %w", path, err)
			}
			mismatched := support.VerifyEvidence(cert, filepath.Dir(path))

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Certificate: %s\n", path)
			fmt.Fprintf(w, "SHA-256: %s\n", support.HashBytes(data))
			fmt.Fprintf(w, "Run: %s (%s)\n", cert.RunID, cert.Mode)
			if !ok {
				fmt.Fprintln(w, "Signature: INVALID")
				return exitError{code: 1}
			}
			fmt.Fprintln(w, "Signature: VALID")
			if len(mismatched) > 0 {
				for _, rel := range mismatched {
					fmt.Fprintf(w, "Evidence changed: %s\n", rel)
				}
				return exitError{code: 1}
			}
			fmt.Fprintf(w, "Evidence: %d files verified\n", len(cert.EvidenceHashes))
			return nil
		},
	}
}
