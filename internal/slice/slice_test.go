package slice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-node-tools/dbmaint/internal/kv"
	"github.com/go-node-tools/dbmaint/internal/kv/memkv"
	"github.com/go-node-tools/dbmaint/internal/records"
	"github.com/go-node-tools/dbmaint/internal/triestore"
)

type fakeStore struct {
	copiedRoot *records.Digest
	flushed    bool
}

func (s *fakeStore) CopyStateRoot(root records.Digest, src triestore.Store) error {
	s.copiedRoot = &root
	return nil
}

func (s *fakeStore) Flush() error {
	s.flushed = true
	return nil
}

type fakeOpener struct {
	dest *fakeStore
}

func (o *fakeOpener) Load(dir string) (triestore.Store, error) { return &fakeStore{}, nil }
func (o *fakeOpener) Create(dir string) (triestore.Store, error) {
	o.dest = &fakeStore{}
	return o.dest, nil
}

// registry lets the test Open func hand back the same *memkv.DB across
// repeated Open calls for the same directory, mimicking separate open
// handles onto one on-disk environment.
type registry struct {
	dbs map[string]*memkv.DB
}

func newRegistry() *registry { return &registry{dbs: map[string]*memkv.DB{}} }

func (r *registry) open(dir string, create bool) (kv.DB, error) {
	if db, ok := r.dbs[dir]; ok {
		return db, nil
	}
	db := memkv.New()
	if create {
		for _, table := range kv.SliceDestinationTables {
			if err := db.CreateTable(table); err != nil {
				return nil, err
			}
		}
	} else {
		for _, table := range kv.AllTables {
			if err := db.CreateTable(table); err != nil {
				return nil, err
			}
		}
	}
	r.dbs[dir] = db
	return db, nil
}

func TestExtractCopiesHeaderBodyDeploysAndProjectsResults(t *testing.T) {
	reg := newRegistry()
	sourceDir := "source"

	srcDB, err := reg.open(sourceDir, false)
	require.NoError(t, err)
	tx, err := srcDB.BeginRW()
	require.NoError(t, err)

	deployA := records.DeployHash(digestFor(1))
	deployB := records.DeployHash(digestFor(2))
	body := &records.BlockBody{
		Proposer:     records.PublicKey{Tag: 1, Bytes: []byte{0xFF}},
		DeployHashes: []records.DeployHash{deployA, deployB},
	}
	bodyRaw, err := records.EncodeBlockBody(body)
	require.NoError(t, err)
	bodyHash := records.ContentHash(bodyRaw)
	require.NoError(t, tx.Put(kv.BlockBody, bodyHash.Bytes(), bodyRaw))

	blockHash := digestFor(9)
	stateRoot := digestFor(42)
	header := &records.BlockHeader{Height: 5, EraID: 1, BodyHash: bodyHash, StateRootHash: stateRoot}
	headerRaw, err := records.EncodeBlockHeader(header)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.BlockHeader, blockHash[:], headerRaw))

	require.NoError(t, tx.Put(kv.Deploy, deployA.Bytes(), []byte("deploy-a-body")))
	require.NoError(t, tx.Put(kv.Deploy, deployB.Bytes(), []byte("deploy-b-body")))

	metaA := &records.DeployMetadata{ExecutionResults: map[records.BlockHash]records.ExecutionResult{
		records.BlockHash(blockHash):     {Payload: []byte("result-for-target")},
		records.BlockHash(digestFor(77)): {Payload: []byte("result-for-other-block")},
	}}
	metaARaw, err := records.EncodeDeployMetadata(metaA)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.DeployMetadata, deployA.Bytes(), metaARaw))

	// deployB ran, but never produced a result for the target block — its
	// metadata row exists (every deploy is required to have one) yet carries
	// only results for other blocks.
	metaB := &records.DeployMetadata{ExecutionResults: map[records.BlockHash]records.ExecutionResult{
		records.BlockHash(digestFor(77)): {Payload: []byte("result-for-other-block")},
	}}
	metaBRaw, err := records.EncodeDeployMetadata(metaB)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.DeployMetadata, deployB.Bytes(), metaBRaw))

	require.NoError(t, tx.Commit())

	opener := &fakeOpener{}
	destDir := filepath.Join(t.TempDir(), "dest")
	err = Extract(Options{
		SourceDir: sourceDir,
		DestDir:   destDir,
		BlockHash: records.BlockHash(blockHash),
		Open:      reg.open,
		Trie:      opener,
	})
	require.NoError(t, err)

	destDB, err := reg.open(destDir, true)
	require.NoError(t, err)
	destTx, err := destDB.BeginRO()
	require.NoError(t, err)
	defer destTx.Rollback()

	_, err = destTx.Get(kv.BlockHeader, blockHash[:])
	require.NoError(t, err)
	_, err = destTx.Get(kv.BlockBody, bodyHash.Bytes())
	require.NoError(t, err)
	_, err = destTx.Get(kv.Deploy, deployA.Bytes())
	require.NoError(t, err)
	_, err = destTx.Get(kv.Deploy, deployB.Bytes())
	require.NoError(t, err)

	projectedRaw, err := destTx.Get(kv.DeployMetadata, deployA.Bytes())
	require.NoError(t, err)
	projected, err := records.DecodeDeployMetadata(projectedRaw)
	require.NoError(t, err)
	require.Len(t, projected.ExecutionResults, 1)
	result, ok := projected.ExecutionResults[records.BlockHash(blockHash)]
	require.True(t, ok)
	require.Equal(t, []byte("result-for-target"), result.Payload)

	// deployB never ran an execution result for this block: no metadata row
	// should have been written for it at all.
	_, err = destTx.Get(kv.DeployMetadata, deployB.Bytes())
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	require.NotNil(t, opener.dest)
	require.True(t, opener.dest.flushed)
}

// Every deploy hash reachable from the body is expected to carry a
// deploy_metadata row; a deploy missing one is a fatal inconsistency, not
// something to skip over silently.
func TestExtractFailsOnMissingDeployMetadata(t *testing.T) {
	reg := newRegistry()
	sourceDir := "source"

	srcDB, err := reg.open(sourceDir, false)
	require.NoError(t, err)
	tx, err := srcDB.BeginRW()
	require.NoError(t, err)

	deployA := records.DeployHash(digestFor(1))
	body := &records.BlockBody{
		Proposer:     records.PublicKey{Tag: 1, Bytes: []byte{0xFF}},
		DeployHashes: []records.DeployHash{deployA},
	}
	bodyRaw, err := records.EncodeBlockBody(body)
	require.NoError(t, err)
	bodyHash := records.ContentHash(bodyRaw)
	require.NoError(t, tx.Put(kv.BlockBody, bodyHash.Bytes(), bodyRaw))

	blockHash := digestFor(9)
	header := &records.BlockHeader{Height: 5, EraID: 1, BodyHash: bodyHash, StateRootHash: digestFor(42)}
	headerRaw, err := records.EncodeBlockHeader(header)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.BlockHeader, blockHash[:], headerRaw))

	require.NoError(t, tx.Put(kv.Deploy, deployA.Bytes(), []byte("deploy-a-body")))
	// deliberately no deploy_metadata row for deployA

	require.NoError(t, tx.Commit())

	err = Extract(Options{
		SourceDir: sourceDir,
		DestDir:   filepath.Join(t.TempDir(), "dest"),
		BlockHash: records.BlockHash(blockHash),
		Open:      reg.open,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, kv.ErrKeyNotFound)
}

func TestExtractRejectsExistingDestination(t *testing.T) {
	reg := newRegistry()
	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "marker"), []byte("x"), 0o644))

	err := Extract(Options{
		SourceDir: "source",
		DestDir:   destDir,
		Open:      reg.open,
	})
	require.Error(t, err)
}

func digestFor(b byte) records.Digest {
	var d records.Digest
	d[0] = b
	return d
}
