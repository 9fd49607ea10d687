package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/store"
)

func TestDocsList_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "docs", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents indexed yet")
}

func TestDocsList_EmptyJSONIsArray(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "docs", "list", "-f", "json")

	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestDocsList_Table(t *testing.T) {
	// Given: an indexed document
	env := indexedEnv(t)

	// When: listing documents
	out, err := env.run(t, "docs", "ls")

	// Then: a table row shows its counts
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "PASSAGES")
	assert.Contains(t, out, "biology")
}

func TestDocsDelete(t *testing.T) {
	// Given: an indexed document
	env := indexedEnv(t)

	// When: deleting it
	out, err := env.run(t, "docs", "delete", "biology")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted biology")

	// Then: it is no longer listed or searchable
	out, err = env.run(t, "docs", "list", "-f", "json")
	require.NoError(t, err)
	var docs []*store.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	assert.Empty(t, docs)

	_, err = env.run(t, "search", "biology", "enzyme")
	assert.Equal(t, studyerrors.ErrCodeDocumentNotFound, studyerrors.GetCode(err))
}

func TestDocsDelete_Unknown(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "docs", "rm", "chemistry")

	require.Error(t, err)
	assert.Equal(t, studyerrors.ErrCodeDocumentNotFound, studyerrors.GetCode(err))
}
