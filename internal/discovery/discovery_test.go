package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/config"
)

type fakeGit struct {
	refs []domain.Reference
	err  error
}

func (f *fakeGit) ListRefs(ctx context.Context, integration config.Integration) ([]domain.Reference, error) {
	return f.refs, f.err
}

type fakeStore struct {
	scanned map[string]bool
	toggles map[string]domain.IntegrationToggleState
	known   map[string]bool
	forgot  []domain.RefKind
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		scanned: map[string]bool{},
		toggles: map[string]domain.IntegrationToggleState{},
		known:   map[string]bool{},
	}
}

func (s *fakeStore) HasScanned(ctx context.Context, integrationID string, kind domain.RefKind, name, revision string) (bool, error) {
	return s.scanned[integrationID+"/"+string(kind)+"/"+name+"/"+revision], nil
}

func (s *fakeStore) RecordScanned(ctx context.Context, rec domain.ScanRecord) error {
	s.scanned[rec.IntegrationID+"/"+string(rec.Kind)+"/"+rec.Name+"/"+rec.Revision] = true
	return nil
}

func (s *fakeStore) ForgetKind(ctx context.Context, integrationID string, kind domain.RefKind) error {
	s.forgot = append(s.forgot, kind)
	for k := range s.scanned {
		delete(s.scanned, k)
	}
	return nil
}

func (s *fakeStore) PreviousToggles(ctx context.Context, integrationID string) (domain.IntegrationToggleState, bool, error) {
	return s.toggles[integrationID], s.known[integrationID], nil
}

func (s *fakeStore) SaveToggles(ctx context.Context, state domain.IntegrationToggleState) error {
	s.toggles[state.IntegrationID] = state
	s.known[state.IntegrationID] = true
	return nil
}

func (s *fakeStore) Close() error { return nil }

func ref(kind domain.RefKind, name, rev string) domain.Reference {
	return domain.Reference{IntegrationID: "int1", Kind: kind, Name: name, Revision: rev}
}

func TestRunDefaultsToMainWhenWatchedBranchesEmpty(t *testing.T) {
	t.Parallel()

	git := &fakeGit{refs: []domain.Reference{
		ref(domain.RefKindBranch, "refs/heads/main", "aaaa"),
		ref(domain.RefKindBranch, "refs/heads/feature-x", "bbbb"),
		ref(domain.RefKindTag, "refs/tags/v1", "cccc"),
	}}
	st := newFakeStore()
	d := New(git, st)

	integration := config.Integration{ID: "int1", PollInterval: config.Duration(0)}
	refs, err := d.Run(context.Background(), integration)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "refs/heads/main", refs[0].Name)
}

func TestRunFallsBackToMasterWhenNoMain(t *testing.T) {
	t.Parallel()

	git := &fakeGit{refs: []domain.Reference{
		ref(domain.RefKindBranch, "refs/heads/master", "aaaa"),
		ref(domain.RefKindBranch, "refs/heads/feature-x", "bbbb"),
	}}
	st := newFakeStore()
	d := New(git, st)

	refs, err := d.Run(context.Background(), config.Integration{ID: "int1"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "refs/heads/master", refs[0].Name)
}

func TestRunWatchedBranchesGlobFiltersCorrectly(t *testing.T) {
	t.Parallel()

	git := &fakeGit{refs: []domain.Reference{
		ref(domain.RefKindBranch, "refs/heads/release1", "aaaa"),
		ref(domain.RefKindBranch, "refs/heads/release-3", "bbbb"),
		ref(domain.RefKindBranch, "refs/heads/main", "cccc"),
	}}
	st := newFakeStore()
	d := New(git, st)

	integration := config.Integration{ID: "int1", WatchedBranches: []string{"release*"}}
	refs, err := d.Run(context.Background(), integration)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	names := []string{refs[0].Name, refs[1].Name}
	assert.Contains(t, names, "refs/heads/release1")
	assert.Contains(t, names, "refs/heads/release-3")
}

func TestRunDropsTagsWhenImportTagsFalse(t *testing.T) {
	t.Parallel()

	git := &fakeGit{refs: []domain.Reference{
		ref(domain.RefKindBranch, "refs/heads/main", "aaaa"),
		ref(domain.RefKindTag, "refs/tags/v1", "bbbb"),
	}}
	st := newFakeStore()
	d := New(git, st)

	refs, err := d.Run(context.Background(), config.Integration{ID: "int1"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, domain.RefKindBranch, refs[0].Kind)
}

func TestRunNoveltyFilterDropsAlreadyScanned(t *testing.T) {
	t.Parallel()

	git := &fakeGit{refs: []domain.Reference{
		ref(domain.RefKindBranch, "refs/heads/main", "aaaa"),
	}}
	st := newFakeStore()
	st.scanned["int1/branch/refs/heads/main/aaaa"] = true
	d := New(git, st)

	refs, err := d.Run(context.Background(), config.Integration{ID: "int1"})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestRunOrderingTagsBeforeBranchesThenLexicographic(t *testing.T) {
	t.Parallel()

	importTags := true
	git := &fakeGit{refs: []domain.Reference{
		ref(domain.RefKindBranch, "refs/heads/zzz", "aaaa"),
		ref(domain.RefKindTag, "refs/tags/b", "bbbb"),
		ref(domain.RefKindTag, "refs/tags/a", "cccc"),
	}}
	st := newFakeStore()
	d := New(git, st)

	integration := config.Integration{ID: "int1", ImportTags: &importTags, WatchedBranches: []string{"*"}}
	refs, err := d.Run(context.Background(), integration)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "refs/tags/a", refs[0].Name)
	assert.Equal(t, "refs/tags/b", refs[1].Name)
	assert.Equal(t, "refs/heads/zzz", refs[2].Name)
}

func TestRunTogglesForgetKindOnTrueToFalseFlip(t *testing.T) {
	t.Parallel()

	git := &fakeGit{}
	st := newFakeStore()
	st.scanned["int1/branch/refs/heads/main/aaaa"] = true
	st.toggles["int1"] = domain.IntegrationToggleState{IntegrationID: "int1", ImportBranches: true, ImportTags: false}
	st.known["int1"] = true

	d := New(git, st)
	importBranches := false
	_, err := d.Run(context.Background(), config.Integration{ID: "int1", ImportBranches: &importBranches})
	require.NoError(t, err)

	require.Len(t, st.forgot, 1)
	assert.Equal(t, domain.RefKindBranch, st.forgot[0])
}

func TestRunPropagatesGitAdapterError(t *testing.T) {
	t.Parallel()

	git := &fakeGit{err: assertErr("boom")}
	st := newFakeStore()
	d := New(git, st)

	_, err := d.Run(context.Background(), config.Integration{ID: "int1"})
	require.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
