package resolve

import "strings"

// ExpandTokens replaces the dynamic linker's special tokens in a RPATH/
// RUNPATH entry: $ORIGIN (and ${ORIGIN}) with the directory containing the
// binary that carries the entry, $LIB with libDir ("lib" or "lib64"), and
// $PLATFORM with platform (the policy architecture token).
func ExpandTokens(entry, originDir, libDir, platform string) string {
	r := strings.NewReplacer(
		"$ORIGIN", originDir,
		"${ORIGIN}", originDir,
		"$LIB", libDir,
		"${LIB}", libDir,
		"$PLATFORM", platform,
		"${PLATFORM}", platform,
	)
	return r.Replace(entry)
}
