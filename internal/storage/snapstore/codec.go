package snapstore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/pkg/crypto/sealbox"
)

// Record is the stable wire layout of a stored snapshot. Key names are part
// of the on-disk contract and never change meaning across schema versions.
type Record struct {
	Metadata RecordMeta      `json:"metadata"`
	Resource domain.Resource `json:"resource"`

	// Settings and Firewall are present on plaintext records.
	Settings *RecordSettings `json:"settings,omitempty"`
	Firewall *RecordFirewall `json:"firewall,omitempty"`
	Merge    *RecordMerge    `json:"merge,omitempty"`

	// Sealed replaces settings/firewall/merge when the store encrypts at
	// rest. Metadata stays plaintext so listings work without the key.
	Sealed string `json:"sealed,omitempty"`
}

// RecordMeta mirrors the snapshot's identity fields.
type RecordMeta struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`

	// Checksum is the hex sha256 of the canonical settings+firewall payload.
	Checksum string `json:"checksum,omitempty"`
}

// RecordSettings carries both settings bundles.
type RecordSettings struct {
	ResourceSettings map[string]any `json:"resourceSettings"`
	LocalConfig      map[string]any `json:"localConfig"`
}

// RecordFirewall carries the ordered firewall rule list.
type RecordFirewall struct {
	Rules []domain.FirewallRule `json:"rules"`
}

// RecordMerge carries merge provenance for merged snapshots.
type RecordMerge struct {
	MergedFrom []string          `json:"mergedFrom"`
	Conflicts  []domain.Conflict `json:"conflicts,omitempty"`
}

// sealedPayload is the plaintext that gets encrypted for sealed records.
type sealedPayload struct {
	Settings *RecordSettings `json:"settings"`
	Firewall *RecordFirewall `json:"firewall"`
	Merge    *RecordMerge    `json:"merge,omitempty"`
}

// RecordOf converts a snapshot into its wire record, computing the integrity
// checksum.
func RecordOf(s *domain.Snapshot) (*Record, error) {
	rec := &Record{
		Metadata: RecordMeta{
			ID:          s.ID,
			CreatedAt:   s.CreatedAt.UTC(),
			CreatedBy:   s.CreatedBy,
			Version:     s.SchemaVersion,
			Type:        string(s.Category),
			Description: s.Description,
		},
		Resource: domain.Resource{ID: s.ResourceID, Name: s.ResourceName, Status: s.Status},
		Settings: &RecordSettings{
			ResourceSettings: s.ResourceSettings,
			LocalConfig:      s.LocalConfig,
		},
		Firewall: &RecordFirewall{Rules: s.FirewallRules},
	}
	if s.Category == domain.CategoryMerged {
		rec.Merge = &RecordMerge{MergedFrom: s.MergedFrom, Conflicts: s.Conflicts}
	}

	sum, err := payloadChecksum(rec.Settings, rec.Firewall)
	if err != nil {
		return nil, err
	}
	rec.Metadata.Checksum = sum
	return rec, nil
}

// SnapshotOf converts a wire record back into the domain entity. Sealed
// records must be unsealed first.
func (r *Record) SnapshotOf() (*domain.Snapshot, error) {
	if r.Sealed != "" {
		return nil, domain.ErrPersist.WithDetails("record is sealed; decryption key required")
	}
	s := &domain.Snapshot{
		ID:            r.Metadata.ID,
		ResourceID:    r.Resource.ID,
		ResourceName:  r.Resource.Name,
		Status:        r.Resource.Status,
		Category:      domain.Category(r.Metadata.Type),
		CreatedAt:     r.Metadata.CreatedAt,
		CreatedBy:     r.Metadata.CreatedBy,
		Description:   r.Metadata.Description,
		SchemaVersion: r.Metadata.Version,
	}
	if r.Settings != nil {
		s.ResourceSettings = r.Settings.ResourceSettings
		s.LocalConfig = r.Settings.LocalConfig
	}
	if r.Firewall != nil {
		s.FirewallRules = r.Firewall.Rules
	}
	if r.Merge != nil {
		s.MergedFrom = r.Merge.MergedFrom
		s.Conflicts = r.Merge.Conflicts
	}
	return s, nil
}

// Encode renders a snapshot as its plaintext wire bytes.
func Encode(s *domain.Snapshot) ([]byte, error) {
	rec, err := RecordOf(s)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(rec, "", "  ")
}

// EncodeSealed renders a snapshot with the settings payload encrypted.
func EncodeSealed(s *domain.Snapshot, cipher sealbox.Cipher) ([]byte, error) {
	rec, err := RecordOf(s)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(sealedPayload{Settings: rec.Settings, Firewall: rec.Firewall, Merge: rec.Merge})
	if err != nil {
		return nil, domain.ErrPersist.WithDetails("marshal sealed payload").WithCause(err)
	}
	// The record id binds the ciphertext to its snapshot.
	sealed, err := cipher.Encrypt(plain, []byte(rec.Metadata.ID))
	if err != nil {
		return nil, domain.ErrPersist.WithDetails("seal record").WithCause(err)
	}
	rec.Settings, rec.Firewall, rec.Merge = nil, nil, nil
	rec.Sealed = base64.StdEncoding.EncodeToString(sealed)
	return json.MarshalIndent(rec, "", "  ")
}

// Decode parses wire bytes into a snapshot, unsealing with cipher when the
// record is sealed. A nil cipher decodes plaintext records only.
func Decode(raw []byte, cipher sealbox.Cipher) (*domain.Snapshot, error) {
	rec, err := DecodeRecord(raw, cipher)
	if err != nil {
		return nil, err
	}
	return rec.SnapshotOf()
}

// DecodeRecord parses wire bytes into the record form, unsealing if needed
// and verifying the integrity checksum.
func DecodeRecord(raw []byte, cipher sealbox.Cipher) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, domain.ErrValidation.WithDetails("undecodable snapshot record").WithCause(err)
	}
	if rec.Sealed != "" {
		if cipher == nil {
			return nil, domain.ErrPersist.WithDetails("record is sealed; decryption key required")
		}
		sealed, err := base64.StdEncoding.DecodeString(rec.Sealed)
		if err != nil {
			return nil, domain.ErrValidation.WithDetails("malformed sealed payload").WithCause(err)
		}
		plain, err := cipher.Decrypt(sealed, []byte(rec.Metadata.ID))
		if err != nil {
			return nil, domain.ErrPersist.WithDetails("unseal record").WithCause(err)
		}
		var payload sealedPayload
		if err := json.Unmarshal(plain, &payload); err != nil {
			return nil, domain.ErrValidation.WithDetails("undecodable sealed payload").WithCause(err)
		}
		rec.Settings, rec.Firewall, rec.Merge = payload.Settings, payload.Firewall, payload.Merge
		rec.Sealed = ""
	}

	if rec.Metadata.Checksum != "" {
		sum, err := payloadChecksum(rec.Settings, rec.Firewall)
		if err != nil {
			return nil, err
		}
		if sum != rec.Metadata.Checksum {
			return nil, domain.ErrChecksumMismatch.WithDetails(rec.Metadata.ID)
		}
	}
	return &rec, nil
}

// payloadChecksum hashes the canonical JSON of the settings and firewall
// sections. encoding/json sorts map keys, so the rendering is deterministic.
func payloadChecksum(settings *RecordSettings, firewall *RecordFirewall) (string, error) {
	raw, err := json.Marshal(sealedPayload{Settings: settings, Firewall: firewall})
	if err != nil {
		return "", domain.ErrPersist.WithDetails("checksum payload").WithCause(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
