package remote

// DryRun wraps a Host: reads pass through, mutations are skipped but still
// report whether they would have changed anything, so a dry-run pass shows
// the same restart decision as a real one.
type DryRun struct {
	Host *Host
}

func (d DryRun) ReadFile(path string) (string, bool, error) {
	return d.Host.ReadFile(path)
}

func (d DryRun) Put(path, content, mode string) (bool, error) {
	current, found, err := d.Host.ReadFile(path)
	if err != nil {
		return false, err
	}
	return !found || current != content, nil
}

func (d DryRun) EnsureService(name string, enabled, running, restart bool) error {
	return nil
}

func (d DryRun) EnsurePackages(packages []string) error {
	return nil
}
