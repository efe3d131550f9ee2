package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"wgnest/pkg/inventory"
	"wgnest/pkg/keys"
	"wgnest/pkg/model"
	"wgnest/pkg/reconcile"
	"wgnest/pkg/remote"
	"wgnest/pkg/secrets"
	"wgnest/pkg/state"
	"wgnest/pkg/version"
)

func main() {
	_ = loadDotEnv()

	inventoryPath := flag.String("inventory", getenv("WGNEST_INVENTORY", "nest.toml"), "inventory file (env WGNEST_INVENTORY)")
	nodeName := flag.String("node", "", "reconcile only this node (default: mother, then every child)")
	dryRun := flag.Bool("dry-run", false, "report what would change without touching any host")
	history := flag.Int("history", 0, "print the last N journal entries and exit")
	statePath := flag.String("state", getenv("WGNEST_STATE", state.DefaultPath), "journal database path (env WGNEST_STATE)")
	keygen := flag.String("keygen", "builtin", "key generator: builtin|wg (wg uses the local wireguard-tools binary)")
	sshInsecure := flag.Bool("ssh-insecure", false, "skip SSH host key verification (not recommended)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		log.Printf("wgnest version=%s", version.Build)
		return
	}

	if *history > 0 {
		printHistory(*statePath, *history)
		return
	}

	inv, err := inventory.Load(*inventoryPath)
	if err != nil {
		log.Fatalf("inventory: %v", err)
	}

	store, err := buildSecretStore(inv)
	if err != nil {
		log.Fatalf("secret store: %v", err)
	}
	if *dryRun && store != nil {
		store = secrets.DryRun{Store: store}
	}
	provider, err := buildKeyProvider(*keygen)
	if err != nil {
		log.Fatal(err)
	}
	rc := &reconcile.Reconciler{Keys: provider, Secrets: store}

	var journal *state.Journal
	if !*dryRun {
		journal, err = state.Open(*statePath)
		if err != nil {
			log.Printf("journal unavailable, outcomes will not be recorded: %v", err)
		} else {
			defer journal.Close()
		}
	}

	d := deployer{
		rc:          rc,
		inv:         inv,
		store:       store,
		journal:     journal,
		dryRun:      *dryRun,
		sshInsecure: *sshInsecure,
	}

	failed := 0
	switch {
	case *nodeName == "" || *nodeName == inv.Mother.Name:
		if !d.runMother() {
			failed++
		}
		if *nodeName == "" {
			for _, c := range inv.Children {
				if !d.runChild(c) {
					failed++
				}
			}
		}
	default:
		child, ok := inv.ChildByName(*nodeName)
		if !ok {
			log.Fatalf("node %q not in inventory", *nodeName)
		}
		if !d.runChild(child) {
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("%d node(s) failed to reconcile", failed)
	}
}

type deployer struct {
	rc          *reconcile.Reconciler
	inv         inventory.Inventory
	store       secrets.Store
	journal     *state.Journal
	dryRun      bool
	sshInsecure bool
}

func (d deployer) runMother() bool {
	m := d.inv.Mother
	spec := model.MotherSpec{
		Name:       m.Name,
		Address:    m.Address,
		ListenPort: m.ListenPort,
		Children:   d.onboardableChildren(),
		PassEntry:  m.PassEntry,
	}
	host := d.hostFor(m.Name, m.Host, m.SSHUser, m.SSHPort, m.SSHKey)
	res, err := d.rc.Mother(host, spec)
	return d.report(res, err)
}

func (d deployer) runChild(c inventory.Child) bool {
	motherKey, err := d.motherPublicKey()
	if err != nil {
		log.Printf("child %s: %v", c.Name, err)
		return false
	}
	spec := model.ChildSpec{
		Name:    c.Name,
		Address: c.Address,
		Mother: model.PeerDescriptor{
			Name:       d.inv.Mother.Name,
			PublicKey:  motherKey,
			AllowedIPs: d.inv.Mother.AllowedIPs,
			Endpoint:   d.inv.Mother.Endpoint,
		},
		PassEntry: c.PassEntry,
	}
	host := d.hostFor(c.Name, c.Host, c.SSHUser, c.SSHPort, c.SSHKey)
	res, err := d.rc.Child(host, spec)
	return d.report(res, err)
}

// onboardableChildren resolves each declared child's public key, inline or
// from the secret store, and skips the ones whose key is not known yet.
// Those get onboarded on the next mother run, after their own deploy has
// published a key.
func (d deployer) onboardableChildren() []model.PeerDescriptor {
	var out []model.PeerDescriptor
	for _, c := range d.inv.Children {
		pub := c.PublicKey
		if pub == "" && d.store != nil && c.PassEntry != "" {
			stored, err := d.store.Read(c.PassEntry)
			if err != nil {
				log.Printf("child %s: public key lookup failed: %v", c.Name, err)
			} else {
				pub = stored
			}
		}
		if pub == "" {
			log.Printf("child %s has no public key yet; deploy it first, then re-run the mother", c.Name)
			continue
		}
		out = append(out, model.PeerDescriptor{
			Name:       c.Name,
			PublicKey:  pub,
			AllowedIPs: c.AllowedIPs,
		})
	}
	return out
}

func (d deployer) motherPublicKey() (string, error) {
	if d.inv.Mother.PublicKey != "" {
		return d.inv.Mother.PublicKey, nil
	}
	if d.store != nil && d.inv.Mother.PassEntry != "" {
		pub, err := d.store.Read(d.inv.Mother.PassEntry)
		if err != nil {
			return "", fmt.Errorf("mother public key lookup failed: %v", err)
		}
		if pub != "" {
			return pub, nil
		}
	}
	return "", fmt.Errorf("mother public key unknown; deploy the mother first or set mother.public_key")
}

func (d deployer) hostFor(name, addr, user string, port int, keyPath string) reconcile.HostOps {
	var runner remote.Runner
	if addr == "local" {
		runner = remote.LocalRunner{}
	} else {
		runner = remote.SSHRunner{
			Host:     addr,
			Port:     port,
			User:     user,
			KeyPath:  firstNonEmpty(keyPath, os.Getenv("WGNEST_SSH_KEY")),
			Insecure: d.sshInsecure,
		}
	}
	h := remote.NewHost(name, runner)
	if d.dryRun {
		return remote.DryRun{Host: h}
	}
	return h
}

func (d deployer) report(res reconcile.Result, err error) bool {
	if err != nil {
		log.Printf("reconcile failed: %v", err)
		return false
	}
	prefix := ""
	if d.dryRun {
		prefix = "[dry-run] "
	}
	log.Printf("%s%s %s: %s (%s)", prefix, res.Role, res.Node, res.Action(), res.Detail())
	if res.SecretWarning != "" {
		log.Printf("%s %s: WARNING: %s", res.Role, res.Node, res.SecretWarning)
	}
	if res.SecretStored && res.Role == model.RoleChild {
		log.Printf("%s %s: public key published; re-run the mother to onboard this child", res.Role, res.Node)
	}
	if d.journal != nil {
		entry := model.AuditEntry{Node: res.Node, Role: res.Role, Action: res.Action(), Detail: res.Detail()}
		if err := d.journal.Record(entry); err != nil {
			log.Printf("journal: %v", err)
		}
	}
	return true
}

func printHistory(statePath string, limit int) {
	journal, err := state.Open(statePath)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}
	defer journal.Close()
	entries, err := journal.Recent(limit)
	if err != nil {
		log.Fatalf("journal: %v", err)
	}
	if len(entries) == 0 {
		log.Printf("journal empty")
		return
	}
	for _, e := range entries {
		log.Printf("%s %s %s: %s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Role, e.Node, e.Action, e.Detail)
	}
}

func buildSecretStore(inv inventory.Inventory) (secrets.Store, error) {
	switch inv.SecretBackend {
	case "pass":
		return secrets.Pass{}, nil
	case "consul":
		addr := firstNonEmpty(os.Getenv("CONSUL_ADDR"), inv.ConsulAddr)
		return secrets.NewConsul(addr)
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown secret backend %q", inv.SecretBackend)
}

func buildKeyProvider(name string) (keys.Provider, error) {
	switch name {
	case "builtin":
		return keys.InProcess{}, nil
	case "wg":
		return keys.WgTool{}, nil
	}
	return nil, fmt.Errorf("unknown key generator %q (want builtin or wg)", name)
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
