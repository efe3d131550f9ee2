package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"wgnest/pkg/keys"
	"wgnest/pkg/model"
	"wgnest/pkg/secrets"
	"wgnest/pkg/wireguard"
)

// fakeHost keeps files in memory and records every collaborator call.
type fakeHost struct {
	files    map[string]string
	puts     int
	installs int
	services []string // "enabled/running/restart" per call
}

func newFakeHost() *fakeHost {
	return &fakeHost{files: map[string]string{}}
}

func (h *fakeHost) ReadFile(path string) (string, bool, error) {
	content, ok := h.files[path]
	return content, ok, nil
}

func (h *fakeHost) Put(path, content, mode string) (bool, error) {
	if mode != "600" {
		return false, fmt.Errorf("unexpected mode %s", mode)
	}
	prior, ok := h.files[path]
	h.files[path] = content
	h.puts++
	return !ok || prior != content, nil
}

func (h *fakeHost) EnsureService(name string, enabled, running, restart bool) error {
	h.services = append(h.services, fmt.Sprintf("%s enabled=%v running=%v restart=%v", name, enabled, running, restart))
	return nil
}

func (h *fakeHost) EnsurePackages(packages []string) error {
	h.installs++
	return nil
}

// fakeKeys hands out deterministic sequential keypairs.
type fakeKeys struct{ n int }

func (f *fakeKeys) Generate() (keys.KeyPair, error) {
	f.n++
	return keys.KeyPair{
		PrivateKey: fmt.Sprintf("PRIV%d", f.n),
		PublicKey:  fmt.Sprintf("PUB%d", f.n),
	}, nil
}

type failingKeys struct{}

func (failingKeys) Generate() (keys.KeyPair, error) {
	return keys.KeyPair{}, keys.ErrToolUnavailable
}

// fakeSecrets implements secrets.Store in memory.
type fakeSecrets struct {
	values map[string]string
	writes int
	fail   error
}

func (s *fakeSecrets) Read(entry string) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	return s.values[entry], nil
}

func (s *fakeSecrets) Write(entry, value string) error {
	if s.fail != nil {
		return s.fail
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[entry] = value
	s.writes++
	return nil
}

func motherSpec() model.MotherSpec {
	return model.MotherSpec{
		Name:       "mother",
		Address:    "10.0.0.1/24",
		ListenPort: 51820,
		Children: []model.PeerDescriptor{
			{Name: "alice", PublicKey: "AAA", AllowedIPs: "10.0.0.2/32"},
		},
	}
}

func childSpec() model.ChildSpec {
	return model.ChildSpec{
		Name:    "alice",
		Address: "10.0.0.2/32",
		Mother: model.PeerDescriptor{
			Name:       "mother",
			PublicKey:  "MPUB",
			AllowedIPs: "10.0.0.0/24",
			Endpoint:   "vpn.example.org:51820",
		},
	}
}

func TestMotherFirstRunProvisions(t *testing.T) {
	host := newFakeHost()
	rc := &Reconciler{Keys: &fakeKeys{}}

	res, err := rc.Mother(host, motherSpec())
	if err != nil {
		t.Fatalf("mother: %v", err)
	}
	if !res.KeyGenerated || !res.Wrote || !res.Restarted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if host.puts != 1 {
		t.Fatalf("expected exactly one write, got %d", host.puts)
	}

	text := host.files[ConfigPath]
	cfg := wireguard.Parse(text)
	if cfg.Interface.PrivateKey != "PRIV1" || cfg.Interface.Address != "10.0.0.1/24" || cfg.Interface.ListenPort != 51820 {
		t.Fatalf("interface mismatch: %+v", cfg.Interface)
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0].Name != "alice" {
		t.Fatalf("expected single alice block: %+v", cfg.Peers)
	}
	if strings.Contains(text, "Endpoint") || strings.Contains(text, "PersistentKeepalive") {
		t.Fatalf("children dialed in, no endpoint lines expected:\n%s", text)
	}
	if len(host.services) != 1 || !strings.Contains(host.services[0], "restart=true") {
		t.Fatalf("restart expected: %v", host.services)
	}
}

func TestMotherSecondRunIsNoop(t *testing.T) {
	host := newFakeHost()
	rc := &Reconciler{Keys: &fakeKeys{}}
	spec := motherSpec()

	if _, err := rc.Mother(host, spec); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := host.files[ConfigPath]

	res, err := rc.Mother(host, spec)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.KeyGenerated || res.Wrote || res.Restarted || len(res.PeersAdded) != 0 {
		t.Fatalf("second run must be a no-op: %+v", res)
	}
	if host.puts != 1 {
		t.Fatalf("no further writes expected, got %d", host.puts)
	}
	if host.files[ConfigPath] != before {
		t.Fatal("second run altered bytes")
	}
	if !strings.Contains(host.services[1], "restart=false") {
		t.Fatalf("no restart expected: %v", host.services)
	}
}

func TestMotherAppendsOnlyNewChildren(t *testing.T) {
	host := newFakeHost()
	rc := &Reconciler{Keys: &fakeKeys{}}
	spec := motherSpec()

	if _, err := rc.Mother(host, spec); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := host.files[ConfigPath]

	spec.Children = append(spec.Children, model.PeerDescriptor{Name: "bob", PublicKey: "BBB", AllowedIPs: "10.0.0.3/32"})
	res, err := rc.Mother(host, spec)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.KeyGenerated {
		t.Fatal("interface must not be reprovisioned")
	}
	if len(res.PeersAdded) != 1 || res.PeersAdded[0] != "bob" {
		t.Fatalf("expected bob appended: %+v", res.PeersAdded)
	}
	// Restart aggregation: interface untouched, one append, restart true.
	if !res.Restarted {
		t.Fatal("append must trigger restart")
	}
	text := host.files[ConfigPath]
	if !strings.HasPrefix(text, before) {
		t.Fatal("append must preserve existing bytes")
	}
	cfg := wireguard.Parse(text)
	if len(cfg.Peers) != 2 || cfg.Peers[0].Name != "alice" || cfg.Peers[1].Name != "bob" {
		t.Fatalf("declared order not preserved: %+v", cfg.Peers)
	}
}

func TestMotherKeyPreservedAcrossDesiredStateChanges(t *testing.T) {
	host := newFakeHost()
	fk := &fakeKeys{}
	rc := &Reconciler{Keys: fk}
	spec := motherSpec()

	if _, err := rc.Mother(host, spec); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Operator changes address and port; the existing key and interface
	// section must survive untouched.
	spec.Address = "10.9.0.1/24"
	spec.ListenPort = 51821
	res, err := rc.Mother(host, spec)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.KeyGenerated || res.Wrote {
		t.Fatalf("interface must not be rewritten: %+v", res)
	}
	cfg := wireguard.Parse(host.files[ConfigPath])
	if cfg.Interface.PrivateKey != "PRIV1" || cfg.Interface.Address != "10.0.0.1/24" {
		t.Fatalf("interface mutated: %+v", cfg.Interface)
	}
	if fk.n != 1 {
		t.Fatalf("key generated again: %d generations", fk.n)
	}
}

func TestMotherDuplicateDeclaredChildYieldsOneBlock(t *testing.T) {
	host := newFakeHost()
	rc := &Reconciler{Keys: &fakeKeys{}}
	spec := motherSpec()
	spec.Children = append(spec.Children, spec.Children[0])

	if _, err := rc.Mother(host, spec); err != nil {
		t.Fatalf("mother: %v", err)
	}
	if n := strings.Count(host.files[ConfigPath], "# alice"); n != 1 {
		t.Fatalf("expected one alice block, got %d", n)
	}
}

func TestMotherPublishesKeyOnce(t *testing.T) {
	host := newFakeHost()
	store := &fakeSecrets{}
	rc := &Reconciler{Keys: &fakeKeys{}, Secrets: store}
	spec := motherSpec()
	spec.PassEntry = "vpn/mother"

	res, err := rc.Mother(host, spec)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !res.SecretStored || store.values["vpn/mother"] != "PUB1" {
		t.Fatalf("public key not stored: %+v %+v", res, store.values)
	}

	res, err = rc.Mother(host, spec)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.SecretStored || store.writes != 1 {
		t.Fatalf("redundant secret write: %+v writes=%d", res, store.writes)
	}
}

func TestChildProvisioningAndNoop(t *testing.T) {
	host := newFakeHost()
	store := &fakeSecrets{}
	rc := &Reconciler{Keys: &fakeKeys{}, Secrets: store}
	spec := childSpec()
	spec.PassEntry = "vpn/alice"

	res, err := rc.Child(host, spec)
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	if !res.KeyGenerated || !res.Wrote || !res.Restarted || !res.SecretStored {
		t.Fatalf("unexpected result: %+v", res)
	}

	text := host.files[ConfigPath]
	cfg := wireguard.Parse(text)
	if !cfg.Provisioned() || cfg.Interface.ListenPort != 0 {
		t.Fatalf("child interface mismatch: %+v", cfg.Interface)
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0].Name != "mother" {
		t.Fatalf("expected single mother peer: %+v", cfg.Peers)
	}
	if cfg.Peers[0].Endpoint != "vpn.example.org:51820" || cfg.Peers[0].Keepalive != 25 {
		t.Fatalf("dial-out peer needs endpoint and keepalive: %+v", cfg.Peers[0])
	}
	if store.values["vpn/alice"] != "PUB1" {
		t.Fatalf("public key not stored: %+v", store.values)
	}

	res, err = rc.Child(host, spec)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.KeyGenerated || res.Wrote || res.Restarted {
		t.Fatalf("provisioned child must be a no-op: %+v", res)
	}
	if host.puts != 1 || store.writes != 1 {
		t.Fatalf("no further writes expected: puts=%d secretWrites=%d", host.puts, store.writes)
	}
	if !strings.Contains(host.services[1], "enabled=true running=true restart=false") {
		t.Fatalf("service must still be ensured: %v", host.services)
	}
}

func TestChildReportOnlyPassLeavesSecretStoreUntouched(t *testing.T) {
	host := newFakeHost()
	store := &fakeSecrets{}
	rc := &Reconciler{Keys: &fakeKeys{}, Secrets: secrets.DryRun{Store: store}}
	spec := childSpec()
	spec.PassEntry = "vpn/alice"

	res, err := rc.Child(host, spec)
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	if !res.SecretStored {
		t.Fatalf("would-be publication must still be reported: %+v", res)
	}
	if store.writes != 0 {
		t.Fatalf("secret store written %d time(s) on a report-only pass", store.writes)
	}
	if _, ok := store.values["vpn/alice"]; ok {
		t.Fatalf("key leaked into the store: %v", store.values)
	}
}

func TestChildSecretFailureDoesNotFailProvisioning(t *testing.T) {
	host := newFakeHost()
	rc := &Reconciler{Keys: &fakeKeys{}, Secrets: &fakeSecrets{fail: errors.New("pass unavailable")}}
	spec := childSpec()
	spec.PassEntry = "vpn/alice"

	res, err := rc.Child(host, spec)
	if err != nil {
		t.Fatalf("pass must succeed despite secret failure: %v", err)
	}
	if res.SecretWarning == "" {
		t.Fatal("operator must be warned about the unsaved key")
	}
	if _, ok := host.files[ConfigPath]; !ok {
		t.Fatal("config write must not be rolled back")
	}
}

func TestKeyToolUnavailableAbortsPass(t *testing.T) {
	host := newFakeHost()
	rc := &Reconciler{Keys: failingKeys{}}

	_, err := rc.Child(host, childSpec())
	if !errors.Is(err, keys.ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
	if host.puts != 0 {
		t.Fatal("no file may be written without a real key")
	}

	_, err = rc.Mother(host, motherSpec())
	if !errors.Is(err, keys.ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}

func TestMalformedInputSurfacesBeforeAnyRemoteCall(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.ChildSpec)
	}{
		{"empty address", func(s *model.ChildSpec) { s.Address = "" }},
		{"empty mother pubkey", func(s *model.ChildSpec) { s.Mother.PublicKey = "" }},
		{"empty mother endpoint", func(s *model.ChildSpec) { s.Mother.Endpoint = "" }},
		{"empty mother allowed IPs", func(s *model.ChildSpec) { s.Mother.AllowedIPs = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			host := newFakeHost()
			rc := &Reconciler{Keys: &fakeKeys{}}
			spec := childSpec()
			tc.mutate(&spec)
			_, err := rc.Child(host, spec)
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("expected ErrMalformedInput, got %v", err)
			}
			if host.puts != 0 || host.installs != 0 || len(host.services) != 0 {
				t.Fatal("no remote calls allowed for malformed input")
			}
		})
	}

	host := newFakeHost()
	rc := &Reconciler{Keys: &fakeKeys{}}
	spec := motherSpec()
	spec.ListenPort = 0
	if _, err := rc.Mother(host, spec); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for missing listen port, got %v", err)
	}
}

func TestResultSummaries(t *testing.T) {
	r := Result{KeyGenerated: true, Wrote: true, Restarted: true}
	if r.Action() != "provisioned" {
		t.Fatalf("action: %s", r.Action())
	}
	r = Result{PeersAdded: []string{"bob"}, Wrote: true, Restarted: true}
	if r.Action() != "peers-added" || !strings.Contains(r.Detail(), "bob") {
		t.Fatalf("action=%s detail=%s", r.Action(), r.Detail())
	}
	r = Result{}
	if r.Action() != "noop" || r.Detail() != "no changes" {
		t.Fatalf("action=%s detail=%s", r.Action(), r.Detail())
	}
}
