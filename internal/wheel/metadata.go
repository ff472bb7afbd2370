package wheel

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WheelMetadata is the parsed contents of a *.dist-info/WHEEL text record.
type WheelMetadata struct {
	WheelVersion  string
	Generator     string
	RootIsPurelib bool
	Tags          []string // "py-abi-plat" combinations, in file order
}

// ParseWheelMetadata parses a WHEEL file's "Key: Value" lines.
func ParseWheelMetadata(data []byte) (WheelMetadata, error) {
	var m WheelMetadata
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		line := strings.TrimRight(s.Text(), "\r")
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "Wheel-Version":
			m.WheelVersion = val
		case "Generator":
			m.Generator = val
		case "Root-Is-Purelib":
			m.RootIsPurelib = strings.EqualFold(val, "true")
		case "Tag":
			m.Tags = append(m.Tags, val)
		}
	}
	if m.WheelVersion == "" {
		return m, errors.New("wheel: WHEEL record missing Wheel-Version")
	}
	return m, nil
}

// Bytes renders m back into WHEEL text form.
func (m WheelMetadata) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Wheel-Version: %s\r\n", m.WheelVersion)
	fmt.Fprintf(&b, "Generator: %s\r\n", m.Generator)
	fmt.Fprintf(&b, "Root-Is-Purelib: %s\r\n", boolStr(m.RootIsPurelib))
	for _, t := range m.Tags {
		fmt.Fprintf(&b, "Tag: %s\r\n", t)
	}
	return b.Bytes()
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// IsUniversal reports whether m carries only the py3-none-any tag family
// (no platform-specific ABI), spec.md §7's NonPlatformWheel condition.
func (m WheelMetadata) IsUniversal() bool {
	for _, t := range m.Tags {
		if !strings.HasSuffix(t, "-none-any") {
			return false
		}
	}
	return len(m.Tags) > 0
}

// RecordEntry is one *.dist-info/RECORD line: a payload path, its
// "sha256=<urlsafe-base64>" digest, and byte length. The RECORD file's own
// self-referential entry carries an empty Digest and Length of 0.
type RecordEntry struct {
	Path   string
	Digest string
	Length int64
}

// ParseRecord parses a RECORD file's CSV rows.
func ParseRecord(data []byte) ([]RecordEntry, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "wheel: parse RECORD")
	}

	entries := make([]RecordEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 1 {
			continue
		}
		e := RecordEntry{Path: row[0]}
		if len(row) > 1 {
			e.Digest = row[1]
		}
		if len(row) > 2 && row[2] != "" {
			n, err := strconv.ParseInt(row[2], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "wheel: RECORD length for %s", e.Path)
			}
			e.Length = n
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// RecordBytes renders entries into RECORD CSV, sorted by plain byte order
// of Path. The self-referential RECORD entry gets no special place: it
// lands wherever its path sorts (e.g. "pkg-1.0.dist-info/RECORD" comes
// before "pkg/..." because '-' < '/').
func RecordBytes(entries []RecordEntry) []byte {
	sorted := append([]RecordEntry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var b bytes.Buffer
	w := csv.NewWriter(&b)
	for _, e := range sorted {
		length := ""
		if e.Digest != "" {
			length = strconv.FormatInt(e.Length, 10)
		}
		_ = w.Write([]string{e.Path, e.Digest, length})
	}
	w.Flush()
	return b.Bytes()
}
