package support

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// AuditFile is the audit log's name inside the output directory.
const AuditFile = "audit.log"

type AuditEntry struct {
	TimestampUtc   string `json:"timestampUtc"`
	RunID          string `json:"runId,omitempty"`
	Mode           string `json:"mode"`
	Passed         int    `json:"passed"`
	Warnings       int    `json:"warnings"`
	Failed         int    `json:"failed"`
	Missing        int    `json:"missing,omitempty"`
	Coverage       int    `json:"coverage"`
	Fixes          string `json:"fixes,omitempty"`
	Applied        int    `json:"applied,omitempty"`
	Artifact       string `json:"artifact,omitempty"`
	BackupID       string `json:"backupId,omitempty"`
	CertificateSHA string `json:"certificate_hash,omitempty"`
	DryRun         bool   `json:"dryRun,omitempty"`
	Result         string `json:"result,omitempty"`
}

// AppendAudit appends one JSON line to <outputDir>/audit.log.
func AppendAudit(outputDir string, entry AuditEntry) error {
	if entry.TimestampUtc == "" {
		entry.TimestampUtc = time.Now().UTC().Format(time.RFC3339)
	}
	path := filepath.Join(outputDir, AuditFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
