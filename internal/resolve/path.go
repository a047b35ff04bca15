package resolve

import "path"

// firstExisting returns the first candidate RepoIndex reports as a
// real file, or "" if none match.
func firstExisting(index RepoIndex, candidates []string) string {
	for _, c := range candidates {
		if index.FileExists(c) {
			return c
		}
	}
	return ""
}

// joinRel joins a directory and a relative import specifier and
// cleans the result, so "a/b" + "../c" becomes "a/c".
func joinRel(dir, rel string) string {
	return path.Clean(path.Join(dir, rel))
}

// dirOf returns the repo-relative directory containing filePath.
func dirOf(filePath string) string {
	d := path.Dir(filePath)
	if d == "." {
		return ""
	}
	return d
}
