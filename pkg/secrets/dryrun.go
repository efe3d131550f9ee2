package secrets

// DryRun wraps a Store for report-only passes. Reads pass through so
// change detection stays truthful; writes are swallowed, so Publish still
// reports whether a write would have happened without touching the backend.
type DryRun struct {
	Store Store
}

func (d DryRun) Read(entry string) (string, error) {
	return d.Store.Read(entry)
}

func (d DryRun) Write(entry, value string) error {
	return nil
}
