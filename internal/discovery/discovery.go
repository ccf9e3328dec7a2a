// Package discovery implements Reference Discovery: reconciling an
// integration's import-toggle history, listing its remote, filtering
// by policy, and diffing against what has already been scanned.
package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/config"
	"github.com/fossas/broker/internal/store"
)

// GitAdapter is the subset of gitcli.Adapter Discovery depends on.
type GitAdapter interface {
	ListRefs(ctx context.Context, integration config.Integration) ([]domain.Reference, error)
}

// Discovery runs the reference-discovery algorithm for one integration
// per call to Run.
type Discovery struct {
	Git   GitAdapter
	Store store.Store
}

// New returns a Discovery backed by the given Git Adapter and
// Reference Store.
func New(git GitAdapter, st store.Store) *Discovery {
	return &Discovery{Git: git, Store: st}
}

// Run produces the candidate reference set for integration: toggle
// reconciliation, remote listing, policy filtering, novelty
// filtering, then a deterministic ordering (tags before branches, then
// lexicographic by name).
func (d *Discovery) Run(ctx context.Context, integration config.Integration) ([]domain.Reference, error) {
	if err := d.reconcileToggles(ctx, integration); err != nil {
		return nil, err
	}

	refs, err := d.Git.ListRefs(ctx, integration)
	if err != nil {
		return nil, err
	}

	filtered, err := applyPolicy(integration, refs)
	if err != nil {
		return nil, err
	}

	survivors := make([]domain.Reference, 0, len(filtered))
	for _, ref := range filtered {
		scanned, err := d.Store.HasScanned(ctx, ref.IntegrationID, ref.Kind, ref.Name, ref.Revision)
		if err != nil {
			return nil, err
		}
		if !scanned {
			survivors = append(survivors, ref)
		}
	}

	sortReferences(survivors)
	return survivors, nil
}

// reconcileToggles handles a change in import policy: a true→false flip
// on either toggle forgets every ScanRecord of that kind, so the next
// listing treats everything as new; a false→true flip needs no
// explicit handling because nothing in the store will match yet.
func (d *Discovery) reconcileToggles(ctx context.Context, integration config.Integration) error {
	prev, known, err := d.Store.PreviousToggles(ctx, integration.ID)
	if err != nil {
		return err
	}

	current := domain.IntegrationToggleState{
		IntegrationID:  integration.ID,
		ImportBranches: integration.ImportBranchesOrDefault(),
		ImportTags:     integration.ImportTagsOrDefault(),
	}

	if known {
		if prev.ImportBranches && !current.ImportBranches {
			if err := d.Store.ForgetKind(ctx, integration.ID, domain.RefKindBranch); err != nil {
				return err
			}
		}
		if prev.ImportTags && !current.ImportTags {
			if err := d.Store.ForgetKind(ctx, integration.ID, domain.RefKindTag); err != nil {
				return err
			}
		}
	}

	return d.Store.SaveToggles(ctx, current)
}

// applyPolicy filters refs down to what the integration's import
// toggles and watched_branches patterns permit.
func applyPolicy(integration config.Integration, refs []domain.Reference) ([]domain.Reference, error) {
	importBranches := integration.ImportBranchesOrDefault()
	importTags := integration.ImportTagsOrDefault()

	var branches, tags []domain.Reference
	for _, ref := range refs {
		switch ref.Kind {
		case domain.RefKindTag:
			if importTags {
				tags = append(tags, ref)
			}
		case domain.RefKindBranch:
			if importBranches {
				branches = append(branches, ref)
			}
		}
	}

	if !importBranches {
		return tags, nil
	}

	var kept []domain.Reference
	if len(integration.WatchedBranches) > 0 {
		for _, ref := range branches {
			ok, err := matchAny(integration.WatchedBranches, ref.ShortName())
			if err != nil {
				return nil, fmt.Errorf("matching watched_branches: %w", err)
			}
			if ok {
				kept = append(kept, ref)
			}
		}
	} else {
		kept = fallbackDefaultBranch(branches)
	}

	return append(tags, kept...), nil
}

// fallbackDefaultBranch handles the empty watched_branches case: keep
// "main" if present, else "master" if present, else none.
func fallbackDefaultBranch(branches []domain.Reference) []domain.Reference {
	var master *domain.Reference
	for i := range branches {
		switch branches[i].ShortName() {
		case "main":
			return []domain.Reference{branches[i]}
		case "master":
			master = &branches[i]
		}
	}
	if master != nil {
		return []domain.Reference{*master}
	}
	return nil
}

// sortReferences orders survivors tags-before-branches, then
// lexicographically by name.
func sortReferences(refs []domain.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind == domain.RefKindTag
		}
		return refs[i].Name < refs[j].Name
	})
}
