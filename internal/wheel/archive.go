package wheel

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Archive is an extracted wheel: a scratch directory holding its payload
// plus the parsed dist-info metadata. Its lifecycle is scoped to a single
// show/repair invocation, per spec.md §3's "no persistent state".
type Archive struct {
	ScratchDir   string
	SourcePath   string
	Filename     Filename
	DistInfoDir  string // e.g. "mypkg-1.0.dist-info", relative to ScratchDir
	Metadata     WheelMetadata
	Record       []RecordEntry
	ELFPaths     []string // paths relative to ScratchDir classified as ELF
	HasAnyFiles  bool
}

// NewScratchDir creates a fresh scratch directory under base (os.TempDir
// when base is ""), named with a random UUID so concurrent invocations
// over different archives never collide.
func NewScratchDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "auditwheel-go-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Extract opens the zip archive at path and extracts every entry into
// scratchDir, preserving file modes and using securejoin to keep each
// entry's resolved path inside scratchDir regardless of "../" segments a
// hostile or malformed archive might carry.
func Extract(path, scratchDir string) (*Archive, error) {
	base := filepath.Base(path)
	fn, err := ParseFilename(base)
	if err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "wheel: open archive")
	}
	defer zr.Close()

	a := &Archive{ScratchDir: scratchDir, SourcePath: path, Filename: fn}

	for _, zf := range zr.File {
		a.HasAnyFiles = true
		target, err := securejoin.SecureJoin(scratchDir, zf.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "wheel: insecure entry path %q", zf.Name)
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := extractEntry(zf, target); err != nil {
			return nil, errors.Wrapf(err, "wheel: extract %q", zf.Name)
		}

		rel := filepath.ToSlash(strings.TrimPrefix(zf.Name, "/"))
		if strings.HasSuffix(rel, ".dist-info/WHEEL") {
			a.DistInfoDir = strings.TrimSuffix(rel, "/WHEEL")
		}
		if isELFFile(target) {
			a.ELFPaths = append(a.ELFPaths, rel)
		}
	}

	if a.DistInfoDir == "" {
		return nil, ErrNoDistInfo
	}

	wheelData, err := os.ReadFile(filepath.Join(scratchDir, a.DistInfoDir, "WHEEL"))
	if err != nil {
		return nil, errors.Wrap(err, "wheel: read WHEEL")
	}
	a.Metadata, err = ParseWheelMetadata(wheelData)
	if err != nil {
		return nil, err
	}

	recordPath := filepath.Join(scratchDir, a.DistInfoDir, "RECORD")
	if data, err := os.ReadFile(recordPath); err == nil {
		a.Record, err = ParseRecord(data)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

func extractEntry(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := zf.Mode()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// isELFFile peeks a file's first 4 bytes for the ELF magic number.
func isELFFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic == [4]byte{0x7f, 'E', 'L', 'F'}
}

// RecomputeRecord walks a.ScratchDir, recomputing every entry's SHA-256
// digest (base64 urlsafe, unpadded, per PEP 376) and length, and rewrites
// RECORD inside the dist-info directory. The RECORD file's own entry is
// written with an empty digest/length, as the format requires.
func (a *Archive) RecomputeRecord() error {
	recordRel := filepath.ToSlash(filepath.Join(a.DistInfoDir, "RECORD"))

	var entries []RecordEntry
	err := filepath.WalkDir(a.ScratchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.ScratchDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == recordRel {
			entries = append(entries, RecordEntry{Path: rel})
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		entries = append(entries, RecordEntry{
			Path:   rel,
			Digest: "sha256=" + base64.RawURLEncoding.EncodeToString(sum[:]),
			Length: int64(len(data)),
		})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "wheel: recompute RECORD")
	}

	a.Record = entries
	return os.WriteFile(filepath.Join(a.ScratchDir, a.DistInfoDir, "RECORD"), RecordBytes(entries), 0o644)
}

// RewriteWheelTags replaces the platform segment of every Tag line in
// WHEEL with platTag (a single, possibly dot-joined, tag string built by
// BuildPlatTag) and persists the rewritten WHEEL file.
func (a *Archive) RewriteWheelTags(platTag string) error {
	seen := map[string]bool{}
	var tags []string
	for _, t := range a.Metadata.Tags {
		parts := strings.SplitN(t, "-", 3)
		if len(parts) != 3 {
			tags = append(tags, t)
			continue
		}
		nt := parts[0] + "-" + parts[1] + "-" + platTag
		if !seen[nt] {
			seen[nt] = true
			tags = append(tags, nt)
		}
	}
	a.Metadata.Tags = tags

	return os.WriteFile(filepath.Join(a.ScratchDir, a.DistInfoDir, "WHEEL"), a.Metadata.Bytes(), 0o644)
}

// BuildPlatTag joins primary with any legacy aliases (dot-separated, per
// PEP 600) unless onlyPlat is set.
func BuildPlatTag(primary string, aliases []string, onlyPlat bool) string {
	if onlyPlat || len(aliases) == 0 {
		return primary
	}
	return strings.Join(append([]string{primary}, aliases...), ".")
}

// Repack re-packs a.ScratchDir into a deterministic zip archive at
// outputPath: entries sorted by name, DEFLATE-compressed, mtimes taken from
// sourceDateEpoch when non-zero (else a fixed epoch).
func (a *Archive) Repack(outputPath string, sourceDateEpoch int64) error {
	mtime := time.Unix(315532800, 0).UTC() // 1980-01-01, the zip format floor
	if sourceDateEpoch != 0 {
		mtime = time.Unix(sourceDateEpoch, 0).UTC()
	}

	var relPaths []string
	err := filepath.WalkDir(a.ScratchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.ScratchDir, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "wheel: repack: walk")
	}
	sort.Strings(relPaths)

	out, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrap(err, "wheel: repack: create output")
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, rel := range relPaths {
		full := filepath.Join(a.ScratchDir, rel)
		info, err := os.Stat(full)
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = rel
		hdr.Method = zip.Deflate
		hdr.Modified = mtime

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return zw.Close()
}
