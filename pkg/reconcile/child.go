package reconcile

import (
	"fmt"

	"wgnest/pkg/model"
	"wgnest/pkg/wireguard"
)

// Child reconciles a spoke node. Two states only: a config with a private
// key means provisioned and the pass is a no-op; otherwise the node gets a
// fresh keypair and a config holding exactly one peer, the mother. A child
// is never re-keyed and never gains peers after provisioning.
func (rc *Reconciler) Child(host HostOps, spec model.ChildSpec) (Result, error) {
	res := Result{Node: spec.Name, Role: model.RoleChild}
	if err := rc.validateChild(spec); err != nil {
		return res, err
	}

	if err := host.EnsurePackages(wireguardPackages); err != nil {
		return res, fmt.Errorf("child %s: %w", spec.Name, err)
	}

	content, found, err := host.ReadFile(ConfigPath)
	if err != nil {
		return res, fmt.Errorf("child %s: %w", spec.Name, err)
	}

	if !found || !wireguard.Parse(content).Provisioned() {
		pair, err := rc.Keys.Generate()
		if err != nil {
			return res, fmt.Errorf("child %s: %w", spec.Name, err)
		}
		res.KeyGenerated = true

		text := wireguard.RenderFull(pair.PrivateKey, spec.Address, []model.PeerDescriptor{spec.Mother}, 0)
		changed, err := host.Put(ConfigPath, text, configMode)
		if err != nil {
			return res, fmt.Errorf("child %s: %w", spec.Name, err)
		}
		res.Wrote = changed

		rc.publishKey(&res, spec.PassEntry, pair.PublicKey)
	}

	res.Restarted = res.Wrote
	if err := host.EnsureService(ServiceName, true, true, res.Restarted); err != nil {
		return res, fmt.Errorf("child %s: %w", spec.Name, err)
	}
	return res, nil
}

func (rc *Reconciler) validateChild(spec model.ChildSpec) error {
	if err := requireField(spec.Name, "name", spec.Name); err != nil {
		return err
	}
	if err := requireField(spec.Name, "address", spec.Address); err != nil {
		return err
	}
	if err := requireField(spec.Name, "mother name", spec.Mother.Name); err != nil {
		return err
	}
	if err := requireField(spec.Name, "mother public key", spec.Mother.PublicKey); err != nil {
		return err
	}
	if err := requireField(spec.Name, "mother allowed IPs", spec.Mother.AllowedIPs); err != nil {
		return err
	}
	// The child dials out, so the mother must be reachable without the VPN.
	return requireField(spec.Name, "mother endpoint", spec.Mother.Endpoint)
}
