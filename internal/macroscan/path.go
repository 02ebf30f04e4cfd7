package macroscan

import "strings"

// NormalizePath resolves `.` and `..` components of p lexically, without
// touching the filesystem. Unlike path.Clean, a `..` that would climb
// above everything already in the stack is preserved rather than
// discarded: the caller has already rejected absolute include! paths, so
// p is always relative, and a leading `..` here means "the include!
// target sits outside the Bazel package" rather than an error.
func NormalizePath(p string) string {
	segs := strings.Split(p, "/")
	var stack []string
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			if n := len(stack); n > 0 && stack[n-1] != ".." {
				stack = stack[:n-1]
			} else {
				stack = append(stack, "..")
			}
		default:
			stack = append(stack, s)
		}
	}
	return strings.Join(stack, "/")
}
