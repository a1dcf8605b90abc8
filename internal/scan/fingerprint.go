package scan

// Fingerprint is the cheap, locally-computable signature used to decide
// whether a source file needs reprocessing. No file contents are read;
// large-tree scans stay cheap and contents are only read for files flagged
// changed or new.
type Fingerprint struct {
	Mtime int64
	Size  int64
}

// Changed reports whether the file differs from the stored fingerprint.
// A nil stored fingerprint means the file is new. A content change that
// alters neither size nor mtime goes undetected; that is a known,
// accepted limitation of the signature (a full re-sync resets stored
// fingerprints to force reprocessing).
func (f Fingerprint) Changed(stored *Fingerprint) bool {
	if stored == nil {
		return true
	}
	return f.Mtime != stored.Mtime || f.Size != stored.Size
}
