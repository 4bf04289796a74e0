// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"encoding/json"

	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

const maxProvisioningCASAttempts = 5

// adjustProvisioning applies delta (positive or negative) to a
// project's provisioned-bytes counter, retrying its own CAS loop a
// few times against concurrent sagas racing the same project before
// giving up with a Conflict.
func adjustProvisioning(ctx *saga.Context, projectID string, delta int64) error {
	for attempt := 0; attempt < maxProvisioningCASAttempts; attempt++ {
		var p Provisioning
		gen, err := getProvisioningOrInit(ctx, projectID, &p)
		if err != nil {
			return err
		}
		next := int64(p.ProvisionedBy) + delta
		if next < 0 {
			next = 0
		}
		p.ProjectID = projectID
		p.ProvisionedBy = uint64(next)

		if gen == 0 {
			if err := putResource(ctx, KindProvisioning, projectID, p); err != nil {
				return err
			}
			return nil
		}
		if err := casUpdateProvisioning(ctx, p, gen); err != nil {
			if sagaerr.KindOf(err) == sagaerr.Conflict {
				continue
			}
			return err
		}
		return nil
	}
	return sagaerr.Conflictf("space_account", "project %s provisioning counter kept racing after %d attempts", projectID, maxProvisioningCASAttempts)
}

func getProvisioningOrInit(ctx *saga.Context, projectID string, dst *Provisioning) (int64, error) {
	raw, gen, err := ctx.Datastore.GetResource(ctx.Ctx, KindProvisioning, projectID)
	if err != nil {
		if sagaerr.KindOf(err) == sagaerr.NotFound {
			*dst = Provisioning{ProjectID: projectID}
			return 0, nil
		}
		return 0, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return 0, sagaerr.Internalf("space_account", "decode provisioning for %s: %v", projectID, err)
	}
	return gen, nil
}

func casUpdateProvisioning(ctx *saga.Context, p Provisioning, expectedGen int64) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return sagaerr.Internalf("space_account", "encode provisioning for %s: %v", p.ProjectID, err)
	}
	_, err = ctx.Datastore.CASUpdateResource(ctx.Ctx, KindProvisioning, p.ProjectID, expectedGen, raw)
	return err
}

func spaceAccountForward(ctx *saga.Context) (any, error) {
	projectID, err := lookupStringParam(ctx, "project_id")
	if err != nil {
		return nil, err
	}
	var create CreateParams
	if err := ctx.Param("create_params", &create); err != nil {
		return nil, sagaerr.Internalf("space_account", "param create_params: %v", err)
	}
	if err := adjustProvisioning(ctx, projectID, int64(create.SizeBytes)); err != nil {
		return nil, err
	}
	return create.SizeBytes, nil
}

func spaceAccountUndo(ctx *saga.Context) error {
	projectID, err := lookupStringParam(ctx, "project_id")
	if err != nil {
		return err
	}
	var create CreateParams
	if err := ctx.Param("create_params", &create); err != nil {
		return sagaerr.Internalf("space_account.undo", "param create_params: %v", err)
	}
	return adjustProvisioning(ctx, projectID, -int64(create.SizeBytes))
}
