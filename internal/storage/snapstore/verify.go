package snapstore

import (
	"encoding/json"
	"fmt"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
)

// VerificationResult is the outcome of structural snapshot verification.
// Warnings do not make a record invalid; they flag forward-compatibility
// concerns the operator should know about.
type VerificationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *VerificationResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *VerificationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Verify structurally validates raw plaintext record bytes: the payload must
// deserialize, carry the required top-level fields, and have at least one of
// the settings bundles. An unrecognized but parseable schema version is a
// warning, not an error. Zero-length or undecodable payloads are always
// invalid.
func Verify(raw []byte) VerificationResult {
	var res VerificationResult

	if len(raw) == 0 {
		res.errorf("record is empty")
		return res
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		res.errorf("record does not deserialize: %v", err)
		return res
	}

	if rec.Metadata.ID == "" {
		res.errorf("metadata.id is missing")
	} else if err := domain.ParseSnapshotID(rec.Metadata.ID); err != nil {
		res.errorf("metadata.id is malformed: %v", err)
	}
	if rec.Metadata.CreatedAt.IsZero() {
		res.errorf("metadata.createdAt is missing")
	}
	if rec.Resource.ID == "" {
		res.errorf("resource.id is missing")
	}
	if !domain.Category(rec.Metadata.Type).Valid() {
		res.errorf("metadata.type %q is not a known category", rec.Metadata.Type)
	}

	if rec.Sealed != "" {
		res.warnf("record is sealed; settings payload not inspected")
	} else {
		hasSettings := rec.Settings != nil && len(rec.Settings.ResourceSettings) > 0
		hasLocal := rec.Settings != nil && len(rec.Settings.LocalConfig) > 0
		if !hasSettings && !hasLocal {
			res.errorf("record carries neither resourceSettings nor localConfig")
		}

		if rec.Metadata.Checksum == "" {
			res.warnf("metadata.checksum is absent; integrity not verifiable")
		} else {
			sum, err := payloadChecksum(rec.Settings, rec.Firewall)
			if err != nil {
				res.errorf("checksum computation failed: %v", err)
			} else if sum != rec.Metadata.Checksum {
				res.errorf("checksum mismatch: stored %s, computed %s", rec.Metadata.Checksum, sum)
			}
		}

		if snap, err := rec.SnapshotOf(); err == nil {
			for _, k := range snap.UnknownKeys() {
				res.warnf("unrecognized key %s", k)
			}
		}
	}

	if rec.Metadata.Version == "" {
		res.warnf("metadata.version is absent")
	} else if !domain.RecognizedSchemaVersions[rec.Metadata.Version] {
		res.warnf("schema version %q is not recognized by this engine", rec.Metadata.Version)
	}

	res.Valid = len(res.Errors) == 0
	return res
}
