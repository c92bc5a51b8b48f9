package snapstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/pkg/crypto/sealbox"
)

const (
	fileExtension  = ".json"
	fileTimeLayout = "20060102T150405Z" // ISO 8601 basic; filesystem-safe
	tempSuffix     = ".tmp"
)

// FileStore persists one JSON record per snapshot under
// {root}/{category}/{resourceName}_{createdAt}_{id}.json.
type FileStore struct {
	root   string
	cipher sealbox.Cipher
}

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Root is the backup root directory. Required.
	Root string

	// Cipher, when set, seals the settings payload of every record at rest.
	Cipher sealbox.Cipher
}

// NewFileStore creates the backup root (and one directory per category) and
// returns the store.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Root == "" {
		return nil, domain.ErrValidation.WithDetails("backup root is required")
	}
	for _, c := range domain.Categories {
		if err := os.MkdirAll(filepath.Join(cfg.Root, string(c)), 0o750); err != nil {
			return nil, domain.ErrPersist.WithDetails("create backup root").WithCause(err)
		}
	}
	return &FileStore{root: cfg.Root, cipher: cfg.Cipher}, nil
}

// Put persists a snapshot. The record is written to a temp file and committed
// with a single rename, so a failed write never leaves a partial record
// visible.
func (fs *FileStore) Put(ctx context.Context, s *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if existing, _ := fs.pathOf(s.ID); existing != "" {
		return domain.ErrSnapshotImmutable.WithDetails(s.ID)
	}

	var raw []byte
	var err error
	if fs.cipher != nil {
		raw, err = EncodeSealed(s, fs.cipher)
	} else {
		raw, err = Encode(s)
	}
	if err != nil {
		return err
	}

	final := filepath.Join(fs.root, string(s.Category), fileName(s))
	tmp := final + tempSuffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return domain.ErrPersist.WithDetails("create temp record").WithCause(err)
	}
	defer os.Remove(tmp)

	if _, err := f.Write(raw); err != nil {
		f.Close()
		return domain.ErrPersist.WithDetails("write record").WithCause(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return domain.ErrPersist.WithDetails("sync record").WithCause(err)
	}
	if err := f.Close(); err != nil {
		return domain.ErrPersist.WithDetails("close record").WithCause(err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return domain.ErrPersist.WithDetails("commit record").WithCause(err)
	}
	return nil
}

// Get loads a snapshot by id.
func (fs *FileStore) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	raw, err := fs.GetRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return Decode(raw, nil)
}

// GetRaw returns the plaintext wire bytes of a stored snapshot. Sealed
// records are unsealed and re-rendered, so callers always see the stable
// plaintext layout.
func (fs *FileStore) GetRaw(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := fs.pathOf(id)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, domain.ErrSnapshotNotFound.WithDetails(id)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrPersist.WithDetails("read record").WithCause(err)
	}
	if fs.cipher == nil {
		return raw, nil
	}
	rec, err := DecodeRecord(raw, fs.cipher)
	if err != nil {
		return nil, err
	}
	plain, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, domain.ErrPersist.WithDetails("render record").WithCause(err)
	}
	return plain, nil
}

// List returns metadata for matching snapshots, newest first. Only the
// metadata and resource sections of each record are decoded.
func (fs *FileStore) List(ctx context.Context, f Filter) ([]Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	categories := domain.Categories
	if f.Category != "" {
		if !f.Category.Valid() {
			return nil, domain.ErrValidation.WithDetails(fmt.Sprintf("unknown category %q", f.Category))
		}
		categories = []domain.Category{f.Category}
	}

	var metas []Meta
	for _, c := range categories {
		dir := filepath.Join(fs.root, string(c))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, domain.ErrPersist.WithDetails("list category " + string(c)).WithCause(err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), fileExtension) {
				continue
			}
			meta, err := fs.readMeta(filepath.Join(dir, e.Name()), c)
			if err != nil {
				// A half-written or foreign file must not break listings.
				continue
			}
			if f.ResourceID != "" && meta.ResourceID != f.ResourceID {
				continue
			}
			metas = append(metas, meta)
		}
	}

	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].CreatedAt.After(metas[j].CreatedAt)
		}
		return metas[i].ID > metas[j].ID
	})
	if f.Limit > 0 && len(metas) > f.Limit {
		metas = metas[:f.Limit]
	}
	return metas, nil
}

// Delete removes a snapshot by id.
func (fs *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := fs.pathOf(id)
	if err != nil {
		return err
	}
	if path == "" {
		return domain.ErrSnapshotNotFound.WithDetails(id)
	}
	if err := os.Remove(path); err != nil {
		return domain.ErrPersist.WithDetails("delete record").WithCause(err)
	}
	return nil
}

// Verify runs structural verification against the stored record.
func (fs *FileStore) Verify(ctx context.Context, id string) (VerificationResult, error) {
	raw, err := fs.GetRaw(ctx, id)
	if err != nil {
		return VerificationResult{}, err
	}
	return Verify(raw), nil
}

// readMeta decodes only the metadata and resource sections of a record.
func (fs *FileStore) readMeta(path string, c domain.Category) (Meta, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Meta{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, err
	}
	var head struct {
		Metadata RecordMeta      `json:"metadata"`
		Resource domain.Resource `json:"resource"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Meta{}, err
	}
	if head.Metadata.ID == "" {
		return Meta{}, domain.ErrValidation.WithDetails("record without id")
	}
	return Meta{
		ID:           head.Metadata.ID,
		ResourceID:   head.Resource.ID,
		ResourceName: head.Resource.Name,
		Category:     c,
		CreatedAt:    head.Metadata.CreatedAt,
		Description:  head.Metadata.Description,
		Size:         st.Size(),
	}, nil
}

// pathOf locates the record file carrying the given id, or "" when absent.
func (fs *FileStore) pathOf(id string) (string, error) {
	if err := domain.ParseSnapshotID(id); err != nil {
		return "", err
	}
	suffix := "_" + id + fileExtension
	for _, c := range domain.Categories {
		dir := filepath.Join(fs.root, string(c))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", domain.ErrPersist.WithDetails("scan category " + string(c)).WithCause(err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}
	return "", nil
}

// fileName derives the record file name. Resource names are sanitized so a
// hostile zone name cannot escape the category directory.
func fileName(s *domain.Snapshot) string {
	return fmt.Sprintf("%s_%s_%s%s",
		sanitizeName(s.ResourceName),
		s.CreatedAt.UTC().Format(fileTimeLayout),
		s.ID,
		fileExtension)
}

func sanitizeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
