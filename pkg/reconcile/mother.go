package reconcile

import (
	"fmt"

	"wgnest/pkg/model"
	"wgnest/pkg/wireguard"
)

// Mother reconciles the hub node. The interface section follows the same
// provisioned/unprovisioned logic as a child but with an empty peer list
// and a listen port; declared children are then merged one by one, in the
// operator's order, appending only the blocks not already present. The
// whole pass issues at most one file write: the final merged text replaces
// the file atomically when and only when bytes changed. Restart is
// requested iff the interface was written or any peer was appended; once
// set, the flag never clears within the pass.
func (rc *Reconciler) Mother(host HostOps, spec model.MotherSpec) (Result, error) {
	res := Result{Node: spec.Name, Role: model.RoleMother}
	if err := rc.validateMother(spec); err != nil {
		return res, err
	}

	if err := host.EnsurePackages(wireguardPackages); err != nil {
		return res, fmt.Errorf("mother %s: %w", spec.Name, err)
	}

	content, found, err := host.ReadFile(ConfigPath)
	if err != nil {
		return res, fmt.Errorf("mother %s: %w", spec.Name, err)
	}

	current := content
	publicKey := ""
	if !found || !wireguard.Parse(content).Provisioned() {
		pair, err := rc.Keys.Generate()
		if err != nil {
			return res, fmt.Errorf("mother %s: %w", spec.Name, err)
		}
		res.KeyGenerated = true
		publicKey = pair.PublicKey
		current = wireguard.RenderFull(pair.PrivateKey, spec.Address, nil, spec.ListenPort)
	}

	for _, child := range spec.Children {
		merged, added := wireguard.AppendPeerIfAbsent(current, child)
		if added {
			current = merged
			res.PeersAdded = append(res.PeersAdded, child.Name)
		}
	}

	if current != content || !found {
		changed, err := host.Put(ConfigPath, current, configMode)
		if err != nil {
			return res, fmt.Errorf("mother %s: %w", spec.Name, err)
		}
		res.Wrote = changed
	}

	if res.KeyGenerated {
		rc.publishKey(&res, spec.PassEntry, publicKey)
	}

	res.Restarted = res.Wrote
	if err := host.EnsureService(ServiceName, true, true, res.Restarted); err != nil {
		return res, fmt.Errorf("mother %s: %w", spec.Name, err)
	}
	return res, nil
}

func (rc *Reconciler) validateMother(spec model.MotherSpec) error {
	if err := requireField(spec.Name, "name", spec.Name); err != nil {
		return err
	}
	if err := requireField(spec.Name, "address", spec.Address); err != nil {
		return err
	}
	if spec.ListenPort <= 0 {
		return fmt.Errorf("node %s: %w: listen port is required", spec.Name, ErrMalformedInput)
	}
	for _, child := range spec.Children {
		if err := requireField(spec.Name, "child name", child.Name); err != nil {
			return err
		}
		if err := requireField(child.Name, "public key", child.PublicKey); err != nil {
			return err
		}
		if err := requireField(child.Name, "allowed IPs", child.AllowedIPs); err != nil {
			return err
		}
	}
	return nil
}
